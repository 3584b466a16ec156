package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrLockHeld       = errors.New("lock already held")
	ErrDivisionByZero = errors.New("division by zero")
	ErrPairMismatch   = errors.New("swap does not match pair")
	ErrDataIntegrity  = errors.New("data integrity violation")
	ErrFetchFailure   = errors.New("data source fetch failed")
	ErrSuperseded     = errors.New("refresh superseded by a newer one")
	ErrInvalidPair    = errors.New("invalid pair")

	// ErrUnresolvedBook is returned when a resolved book is required but the
	// orientation could not be determined. It is always reported together
	// with ErrDataIntegrity.
	ErrUnresolvedBook = errors.New("order book orientation unresolved")
)
