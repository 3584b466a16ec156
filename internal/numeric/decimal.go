// Package numeric wraps arbitrary-precision decimal arithmetic and the
// conversion between raw fixed-point token balances and human-scale units.
// Nothing in this package uses floating point.
package numeric

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

const (
	// DisplayDigits is the fractional-digit policy for every displayed value.
	DisplayDigits = 7

	// DivisionPrecision is the number of fractional digits kept by Divide.
	DivisionPrecision = 40
)

// Divide returns a / b rounded to DivisionPrecision fractional digits.
func Divide(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, fmt.Errorf("numeric: divide %s by zero: %w", a.String(), domain.ErrDivisionByZero)
	}
	return a.DivRound(b, DivisionPrecision), nil
}

func Multiply(a, b decimal.Decimal) decimal.Decimal { return a.Mul(b) }

func Subtract(a, b decimal.Decimal) decimal.Decimal { return a.Sub(b) }

func Add(a, b decimal.Decimal) decimal.Decimal { return a.Add(b) }

func Abs(a decimal.Decimal) decimal.Decimal { return a.Abs() }

// Truncate rounds v to digits fractional digits, half-up: a value exactly
// halfway between two candidates goes to the larger one, so -0.5 becomes 0
// and 0.5 becomes 1 at zero digits.
func Truncate(v decimal.Decimal, digits int32) decimal.Decimal {
	half := decimal.New(5, -1)
	return v.Shift(digits).Add(half).Floor().Shift(-digits)
}

// Display truncates v to DisplayDigits and renders it in plain fixed notation
// with trailing zeros removed.
func Display(v decimal.Decimal) string {
	return Truncate(v, DisplayDigits).String()
}

// Parse parses a plain decimal string such as "12.5". Exponent notation is
// rejected: "1e9" would let a few bytes of input describe an arbitrarily
// large integer.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("numeric: parse decimal: empty input")
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("numeric: parse decimal %q: exponent notation not accepted: %w", s, domain.ErrDataIntegrity)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("numeric: parse decimal %q: %w", s, err)
	}
	return d, nil
}
