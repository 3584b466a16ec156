package domain

import (
	"fmt"
	"strings"
)

// AssetID is a token contract address, e.g. "cx88fd7df7ddff82f7cc735c871dc519838cb235bb".
type AssetID string

// NativeICX is the pseudo-contract the exchange uses for the native coin.
const NativeICX AssetID = "cx0000000000000000000000000000000000000000"

// Asset bundles the metadata the engine needs per token.
type Asset struct {
	ID       AssetID `json:"id"`
	Decimals int     `json:"decimals"`
	Symbol   string  `json:"symbol"`
}

// Pair is an ordered (base, quote) pair as requested by the caller. Prices are
// expressed as quote units per one base unit.
type Pair struct {
	Base  AssetID `json:"base"`
	Quote AssetID `json:"quote"`
}

// Name returns the data source's pair key, "base/quote".
func (p Pair) Name() string {
	return string(p.Base) + "/" + string(p.Quote)
}

// Flip returns the mirrored pair.
func (p Pair) Flip() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

// Contains reports whether asset is one of the pair's two assets.
func (p Pair) Contains(asset AssetID) bool {
	return asset == p.Base || asset == p.Quote
}

// Validate rejects empty or degenerate pairs.
func (p Pair) Validate() error {
	if strings.TrimSpace(string(p.Base)) == "" || strings.TrimSpace(string(p.Quote)) == "" {
		return fmt.Errorf("%w: base and quote must be set", ErrInvalidPair)
	}
	if p.Base == p.Quote {
		return fmt.Errorf("%w: base and quote are both %s", ErrInvalidPair, p.Base)
	}
	return nil
}

// ParsePair parses "base/quote".
func ParsePair(s string) (Pair, error) {
	base, quote, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Pair{}, fmt.Errorf("%w: %q is not base/quote", ErrInvalidPair, s)
	}
	p := Pair{Base: AssetID(strings.TrimSpace(base)), Quote: AssetID(strings.TrimSpace(quote))}
	if err := p.Validate(); err != nil {
		return Pair{}, err
	}
	return p, nil
}

// Decimals holds the decimal-place counts of a pair's two assets.
type Decimals struct {
	Base  int `json:"base"`
	Quote int `json:"quote"`
}

// Symbols maps asset ids to display symbols.
type Symbols map[AssetID]string

// Lookup returns the symbol for id. A missing id is an error rather than an
// empty string.
func (s Symbols) Lookup(id AssetID) (string, error) {
	sym, ok := s[id]
	if !ok {
		return "", fmt.Errorf("symbol for %s: %w", id, ErrNotFound)
	}
	return sym, nil
}
