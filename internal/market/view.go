package market

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/numeric"
)

const (
	filledAtLayout   = "02 Jan 2006 15:04:05"
	filledDateLayout = "2006-01-02"
)

// Row is one display-ready swap. Amount is in base units and Total in quote
// units, both already truncated to the display precision.
type Row struct {
	ID         string           `json:"id"`
	Number     uint64           `json:"number"`
	Side       domain.OrderSide `json:"side"`
	Price      string           `json:"price"`
	Amount     string           `json:"amount"`
	Total      string           `json:"total"`
	FilledAt   string           `json:"filled_at,omitempty"`
	FilledDate string           `json:"filled_date,omitempty"`
	Mine       bool             `json:"mine"`
}

// MarketView is the rendered form of a snapshot. Sellers and Buyers are nil
// (JSON null) when the book is unresolved.
type MarketView struct {
	Pair        string             `json:"pair"`
	BaseSymbol  string             `json:"base_symbol"`
	QuoteSymbol string             `json:"quote_symbol"`
	Orientation domain.Orientation `json:"orientation"`
	Inverted    bool               `json:"inverted"`
	Generation  uint64             `json:"generation"`
	Sellers     []Row              `json:"sellers"`
	Buyers      []Row              `json:"buyers"`
	History     []Row              `json:"history"`
	Spread      *string            `json:"spread"`
	LastPrice   *string            `json:"last_price"`
	RefreshedAt string             `json:"refreshed_at"`
}

// BuildView renders snap for display. wallet marks the caller's own swaps
// and may be empty.
func BuildView(snap *domain.MarketSnapshot, wallet string) (*MarketView, error) {
	if snap == nil {
		return nil, fmt.Errorf("market: build view: %w", domain.ErrNotFound)
	}
	baseSym, err := snap.Symbols.Lookup(snap.Pair.Base)
	if err != nil {
		return nil, fmt.Errorf("market: build view: %w", err)
	}
	quoteSym, err := snap.Symbols.Lookup(snap.Pair.Quote)
	if err != nil {
		return nil, fmt.Errorf("market: build view: %w", err)
	}

	v := &MarketView{
		Pair:        baseSym + "/" + quoteSym,
		BaseSymbol:  baseSym,
		QuoteSymbol: quoteSym,
		Orientation: snap.Orientation,
		Inverted:    snap.Inverted(),
		Generation:  snap.Generation,
		RefreshedAt: snap.RefreshedAt.UTC().Format(filledAtLayout),
	}

	buyers, buyersOK := snap.Buyers.Swaps()
	sellers, sellersOK := snap.Sellers.Swaps()

	if sellersOK {
		if v.Sellers, err = rows(sellers, snap, wallet); err != nil {
			return nil, err
		}
	}
	if buyersOK {
		if v.Buyers, err = rows(buyers, snap, wallet); err != nil {
			return nil, err
		}
	}
	if v.History, err = rows(snap.History, snap, wallet); err != nil {
		return nil, err
	}

	spread, ok, err := BookSpread(snap)
	switch {
	case errors.Is(err, domain.ErrUnresolvedBook):
	case err != nil:
		return nil, err
	case ok:
		s := numeric.Display(spread)
		v.Spread = &s
	}

	last, ok, err := LastPrice(snap.History, snap.Pair, snap.Decimals)
	if err != nil {
		return nil, err
	}
	if ok {
		s := numeric.Display(last)
		v.LastPrice = &s
	}
	return v, nil
}

func rows(swaps []domain.Swap, snap *domain.MarketSnapshot, wallet string) ([]Row, error) {
	out := make([]Row, 0, len(swaps))
	for _, s := range swaps {
		r, err := BuildRow(s, snap.Pair, snap.Decimals, wallet)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// BuildRow renders a single swap.
func BuildRow(swap domain.Swap, pair domain.Pair, dec domain.Decimals, wallet string) (Row, error) {
	baseLeg, quoteLeg, err := LegsFor(swap, pair)
	if err != nil {
		return Row{}, err
	}
	price, err := Price(swap, pair, dec)
	if err != nil {
		return Row{}, err
	}
	amount, err := numeric.DisplayUnit(baseLeg.Amount, dec.Base)
	if err != nil {
		return Row{}, err
	}
	total, err := numeric.DisplayUnit(quoteLeg.Amount, dec.Quote)
	if err != nil {
		return Row{}, err
	}

	r := Row{
		ID:     swap.ID,
		Side:   SideOf(swap, pair),
		Price:  numeric.Display(price),
		Amount: amount,
		Total:  total,
		Mine:   IsUserSwap(swap, wallet),
	}
	if strings.HasPrefix(swap.ID, "0x") {
		if r.Number, err = numeric.ParseHexUint64(swap.ID); err != nil {
			return Row{}, err
		}
	}
	if swap.Filled() {
		t := swap.FilledAt.UTC()
		r.FilledAt = t.Format(filledAtLayout)
		r.FilledDate = t.Format(filledDateLayout)
	}
	return r, nil
}
