package market

import (
	"fmt"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

// MaxHistory caps the filled swaps retained in a snapshot.
const MaxHistory = 250

// Reconciliation is the outcome of orienting the data source's two pending
// lists against the requested pair.
type Reconciliation struct {
	Buyers      domain.Book
	Sellers     domain.Book
	Orientation domain.Orientation
}

// Inverted reports whether the lists were swapped and reversed.
func (r Reconciliation) Inverted() bool {
	return r.Orientation == domain.OrientationInverted
}

// RequireResolved fails when neither list carried enough data to decide the
// orientation.
func (r Reconciliation) RequireResolved() error {
	if r.Orientation == domain.OrientationUnknown {
		return fmt.Errorf("market: %w: %w", domain.ErrDataIntegrity, domain.ErrUnresolvedBook)
	}
	return nil
}

// ReconciliationOf recovers the reconciliation a snapshot was published
// from.
func ReconciliationOf(snap *domain.MarketSnapshot) Reconciliation {
	return Reconciliation{Buyers: snap.Buyers, Sellers: snap.Sellers, Orientation: snap.Orientation}
}

// Reconcile orients listA (the buyers query) and listB (the sellers query)
// against pair.
//
// The first element of the first non-empty list decides: if listA leads and
// its maker offers pair.Quote, or listB leads and its maker offers pair.Base,
// the lists are already in the requested orientation. Otherwise the market is
// being viewed inverted and buyers become reverse(listB), sellers
// reverse(listA). With both lists empty the orientation stays unknown and
// both books are unresolved. Lists are never re-sorted by price and the
// inputs are not modified.
func Reconcile(listA, listB []domain.Swap, pair domain.Pair) (Reconciliation, error) {
	if err := pair.Validate(); err != nil {
		return Reconciliation{}, err
	}
	if err := CheckPair(listA, pair); err != nil {
		return Reconciliation{}, fmt.Errorf("market: reconcile buyers: %w", err)
	}
	if err := CheckPair(listB, pair); err != nil {
		return Reconciliation{}, fmt.Errorf("market: reconcile sellers: %w", err)
	}

	var natural bool
	switch {
	case len(listA) > 0:
		natural = listA[0].Maker.Contract == pair.Quote
	case len(listB) > 0:
		natural = listB[0].Maker.Contract == pair.Base
	default:
		return Reconciliation{
			Buyers:      domain.UnresolvedBook(),
			Sellers:     domain.UnresolvedBook(),
			Orientation: domain.OrientationUnknown,
		}, nil
	}

	if natural {
		return Reconciliation{
			Buyers:      domain.ResolvedBook(clone(listA)),
			Sellers:     domain.ResolvedBook(clone(listB)),
			Orientation: domain.OrientationNatural,
		}, nil
	}
	return Reconciliation{
		Buyers:      domain.ResolvedBook(reversed(listB)),
		Sellers:     domain.ResolvedBook(reversed(listA)),
		Orientation: domain.OrientationInverted,
	}, nil
}

// TruncateHistory keeps at most limit swaps from the head of history.
func TruncateHistory(history []domain.Swap, limit int) []domain.Swap {
	if limit < 0 {
		limit = 0
	}
	if len(history) > limit {
		history = history[:limit]
	}
	return clone(history)
}

func clone(swaps []domain.Swap) []domain.Swap {
	out := make([]domain.Swap, len(swaps))
	copy(out, swaps)
	return out
}

func reversed(swaps []domain.Swap) []domain.Swap {
	out := make([]domain.Swap, len(swaps))
	for i, s := range swaps {
		out[len(swaps)-1-i] = s
	}
	return out
}
