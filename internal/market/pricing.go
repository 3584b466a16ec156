package market

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/numeric"
)

var hundred = decimal.NewFromInt(100)

// Price returns the swap's unit price in quote units per base unit. Each leg
// is converted with its own asset's decimals before dividing.
func Price(swap domain.Swap, pair domain.Pair, dec domain.Decimals) (decimal.Decimal, error) {
	baseLeg, quoteLeg, err := LegsFor(swap, pair)
	if err != nil {
		return decimal.Zero, err
	}
	baseUnits, err := numeric.ToUnit(baseLeg.Amount, dec.Base)
	if err != nil {
		return decimal.Zero, fmt.Errorf("market: price %s base leg: %w", swap.ID, err)
	}
	quoteUnits, err := numeric.ToUnit(quoteLeg.Amount, dec.Quote)
	if err != nil {
		return decimal.Zero, fmt.Errorf("market: price %s quote leg: %w", swap.ID, err)
	}
	p, err := numeric.Divide(quoteUnits, baseUnits)
	if err != nil {
		return decimal.Zero, fmt.Errorf("market: price %s: %w", swap.ID, err)
	}
	return p, nil
}

// SpreadPercent returns |(bid - ask) / ((ask + bid) / 2)| * 100 where bid is
// the best seller's price and ask the best buyer's price. When either swap is
// nil the book side is empty and ok is false; the value is then zero.
func SpreadPercent(bestSell, bestBuy *domain.Swap, pair domain.Pair, dec domain.Decimals) (spread decimal.Decimal, ok bool, err error) {
	if bestSell == nil || bestBuy == nil {
		return decimal.Zero, false, nil
	}
	bid, err := Price(*bestSell, pair, dec)
	if err != nil {
		return decimal.Zero, false, err
	}
	ask, err := Price(*bestBuy, pair, dec)
	if err != nil {
		return decimal.Zero, false, err
	}

	mid, err := numeric.Divide(numeric.Add(ask, bid), decimal.NewFromInt(2))
	if err != nil {
		return decimal.Zero, false, err
	}
	ratio, err := numeric.Divide(numeric.Subtract(bid, ask), mid)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("market: spread: %w", err)
	}
	return numeric.Abs(numeric.Multiply(ratio, hundred)), true, nil
}

// CheckPrices fails on the first swap that cannot be priced, such as one
// with a zero base leg.
func CheckPrices(swaps []domain.Swap, pair domain.Pair, dec domain.Decimals) error {
	for i := range swaps {
		if _, err := Price(swaps[i], pair, dec); err != nil {
			return fmt.Errorf("market: swap %s: %w: %w", swaps[i].ID, domain.ErrDataIntegrity, err)
		}
	}
	return nil
}

// BookSpread is SpreadPercent over the top of a snapshot's books. Top of book
// is only meaningful once the orientation is known, so an unresolved
// snapshot fails with ErrDataIntegrity wrapping ErrUnresolvedBook.
func BookSpread(snap *domain.MarketSnapshot) (decimal.Decimal, bool, error) {
	rec := ReconciliationOf(snap)
	if err := rec.RequireResolved(); err != nil {
		return decimal.Zero, false, err
	}
	buyers, _ := rec.Buyers.Swaps()
	sellers, _ := rec.Sellers.Swaps()
	bestSell, bestBuy, err := TopOfBook(buyers, sellers, snap.Pair, snap.Decimals)
	if err != nil {
		return decimal.Zero, false, err
	}
	return SpreadPercent(bestSell, bestBuy, snap.Pair, snap.Decimals)
}

// TopOfBook picks the best seller (lowest price) and best buyer (highest
// price) by comparing prices. On equal prices the last seller and the first
// buyer win. An empty side yields nil.
func TopOfBook(buyers, sellers []domain.Swap, pair domain.Pair, dec domain.Decimals) (bestSell, bestBuy *domain.Swap, err error) {
	var bestSellPrice decimal.Decimal
	for i := range sellers {
		p, err := Price(sellers[i], pair, dec)
		if err != nil {
			return nil, nil, err
		}
		if bestSell == nil || p.LessThanOrEqual(bestSellPrice) {
			bestSell, bestSellPrice = &sellers[i], p
		}
	}

	var bestBuyPrice decimal.Decimal
	for i := range buyers {
		p, err := Price(buyers[i], pair, dec)
		if err != nil {
			return nil, nil, err
		}
		if bestBuy == nil || p.GreaterThan(bestBuyPrice) {
			bestBuy, bestBuyPrice = &buyers[i], p
		}
	}
	return bestSell, bestBuy, nil
}

// CheckOrdering reports whether swaps are in non-increasing price order, and
// the index of the first swap that breaks it (-1 when ordered).
func CheckOrdering(swaps []domain.Swap, pair domain.Pair, dec domain.Decimals) (ordered bool, at int, err error) {
	var prev decimal.Decimal
	for i := range swaps {
		p, err := Price(swaps[i], pair, dec)
		if err != nil {
			return false, -1, err
		}
		if i > 0 && p.GreaterThan(prev) {
			return false, i, nil
		}
		prev = p
	}
	return true, -1, nil
}

// LastPrice returns the price of the most recent filled swap; ok is false
// when history is empty.
func LastPrice(history []domain.Swap, pair domain.Pair, dec domain.Decimals) (decimal.Decimal, bool, error) {
	if len(history) == 0 {
		return decimal.Zero, false, nil
	}
	p, err := Price(history[0], pair, dec)
	if err != nil {
		return decimal.Zero, false, err
	}
	return p, true, nil
}
