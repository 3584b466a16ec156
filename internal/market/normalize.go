// Package market holds the order book engine: orientation of raw swaps
// relative to a requested pair, exact pricing, and reconciliation of the
// data source's buyers/sellers lists into canonical books.
package market

import (
	"fmt"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

// IsBuy reports whether swap is a buy from the base asset's point of view:
// its maker offers the quote asset. The answer depends only on the pair's
// current order, not on which list the swap was fetched from.
func IsBuy(swap domain.Swap, pair domain.Pair) bool {
	return swap.Maker.Contract == pair.Quote
}

// SideOf returns the swap's side relative to pair.
func SideOf(swap domain.Swap, pair domain.Pair) domain.OrderSide {
	if IsBuy(swap, pair) {
		return domain.OrderSideBuy
	}
	return domain.OrderSideSell
}

// MatchesPair reports whether the swap's two legs are exactly the pair's two
// assets.
func MatchesPair(swap domain.Swap, pair domain.Pair) bool {
	m, t := swap.Maker.Contract, swap.Taker.Contract
	return (m == pair.Base && t == pair.Quote) || (m == pair.Quote && t == pair.Base)
}

// LegsFor returns the swap's (base, quote) legs for pair.
func LegsFor(swap domain.Swap, pair domain.Pair) (base, quote domain.Leg, err error) {
	if !MatchesPair(swap, pair) {
		return domain.Leg{}, domain.Leg{}, fmt.Errorf("market: swap %s legs %s/%s vs pair %s: %w",
			swap.ID, swap.Maker.Contract, swap.Taker.Contract, pair.Name(), domain.ErrPairMismatch)
	}
	if IsBuy(swap, pair) {
		return swap.Taker, swap.Maker, nil
	}
	return swap.Maker, swap.Taker, nil
}

// CheckPair returns ErrPairMismatch for the first swap whose legs are not the
// pair's two assets.
func CheckPair(swaps []domain.Swap, pair domain.Pair) error {
	for i := range swaps {
		if !MatchesPair(swaps[i], pair) {
			return fmt.Errorf("market: swap %s at index %d (%s/%s) not in pair %s: %w",
				swaps[i].ID, i, swaps[i].Maker.Contract, swaps[i].Taker.Contract, pair.Name(), domain.ErrPairMismatch)
		}
	}
	return nil
}

// IsUserSwap reports whether wallet is the maker or taker of swap.
func IsUserSwap(swap domain.Swap, wallet string) bool {
	if wallet == "" {
		return false
	}
	return swap.Maker.Provider == wallet || swap.Taker.Provider == wallet
}
