package numeric

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

// MaxDecimals is the largest decimal-place count accepted for an asset.
const MaxDecimals = 36

// MaxRawDigits bounds the integer digits of a raw amount; 2^256-1 has 78.
const MaxRawDigits = 78

// ValidateDecimals rejects decimal counts outside [0, MaxDecimals].
func ValidateDecimals(decimals int) error {
	if decimals < 0 || decimals > MaxDecimals {
		return fmt.Errorf("numeric: decimals %d outside [0, %d]: %w", decimals, MaxDecimals, domain.ErrDataIntegrity)
	}
	return nil
}

// ToUnit converts a raw fixed-point amount to units: raw / 10^decimals. The
// conversion is a scale shift and therefore exact.
func ToUnit(raw *big.Int, decimals int) (decimal.Decimal, error) {
	if err := ValidateDecimals(decimals); err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, fmt.Errorf("numeric: to unit: nil amount: %w", domain.ErrDataIntegrity)
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)), nil
}

// ToRaw converts units back to a raw amount: unit * 10^decimals. A unit value
// with more fractional digits than decimals has no raw representation.
func ToRaw(unit decimal.Decimal, decimals int) (*big.Int, error) {
	if err := ValidateDecimals(decimals); err != nil {
		return nil, err
	}
	if int64(unit.NumDigits())+int64(unit.Exponent())+int64(decimals) > MaxRawDigits {
		return nil, fmt.Errorf("numeric: %s at %d decimals exceeds %d raw digits: %w",
			unit.String(), decimals, MaxRawDigits, domain.ErrDataIntegrity)
	}
	shifted := unit.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("numeric: %s has more than %d fractional digits: %w",
			unit.String(), decimals, domain.ErrDataIntegrity)
	}
	return shifted.BigInt(), nil
}

// DisplayUnit renders a raw amount as a display string in units.
func DisplayUnit(raw *big.Int, decimals int) (string, error) {
	u, err := ToUnit(raw, decimals)
	if err != nil {
		return "", err
	}
	return Display(u), nil
}

// ParseRaw parses a raw amount encoded either as 0x-prefixed hex (ICON
// JSON-RPC) or as a base-10 integer string. Negative amounts are rejected.
func ParseRaw(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("numeric: parse raw amount: empty: %w", domain.ErrDataIntegrity)
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeBig(strings.ToLower(s[:2]) + s[2:])
		if err != nil {
			return nil, fmt.Errorf("numeric: parse raw amount %q: %v: %w", s, err, domain.ErrDataIntegrity)
		}
		return v, nil
	}

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("numeric: parse raw amount %q: %w", s, domain.ErrDataIntegrity)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("numeric: negative raw amount %q: %w", s, domain.ErrDataIntegrity)
	}
	return v, nil
}

// ParseHexUint64 decodes a 0x-prefixed quantity such as a swap id or a
// decimals count.
func ParseHexUint64(s string) (uint64, error) {
	v, err := hexutil.DecodeUint64(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("numeric: parse hex quantity %q: %v: %w", s, err, domain.ErrDataIntegrity)
	}
	return v, nil
}
