package domain

import (
	"math/big"
	"time"
)

// Leg is one side of a swap. Amount is the raw fixed-point integer, scaled by
// the contract's decimal count.
type Leg struct {
	Provider string   `json:"provider"`
	Contract AssetID  `json:"contract"`
	Amount   *big.Int `json:"amount"`
}

// Swap is an exchange order record as returned by the data source. FilledAt
// is zero for swaps that are still pending.
type Swap struct {
	ID       string    `json:"id"`
	Maker    Leg       `json:"maker"`
	Taker    Leg       `json:"taker"`
	FilledAt time.Time `json:"filled_at,omitzero"`
}

// Filled reports whether the swap carries a fill timestamp.
func (s Swap) Filled() bool {
	return !s.FilledAt.IsZero()
}

// FilledSwap is a filled swap as persisted for history queries.
type FilledSwap struct {
	Swap
	PairName   string
	RecordedAt time.Time
}

// Key returns the swap's store key.
func (f FilledSwap) Key() SwapKey {
	return SwapKey{Pair: f.PairName, ID: f.ID}
}
