package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/numeric"
)

func TestPriceUsesEachAssetsDecimals(t *testing.T) {
	s := swapOf(t, "0x1", assetB, "2000000", assetA, "1000000000000000000")
	require.True(t, IsBuy(s, pairAB))

	p, err := Price(s, pairAB, decAB)
	require.NoError(t, err)
	assert.Equal(t, "2", numeric.Display(p))
}

func TestPriceFlippedPair(t *testing.T) {
	s := swapOf(t, "0x1", assetB, "2000000", assetA, "1000000000000000000")
	p, err := Price(s, pairAB.Flip(), domain.Decimals{Base: 6, Quote: 18})
	require.NoError(t, err)
	assert.Equal(t, "0.5", numeric.Display(p))
}

func TestPriceSellSide(t *testing.T) {
	s := sellAt(t, "0x1", "1500000")
	p, err := Price(s, pairAB, decAB)
	require.NoError(t, err)
	assert.Equal(t, "1.5", numeric.Display(p))
}

func TestPriceZeroBaseLeg(t *testing.T) {
	s := swapOf(t, "0x1", assetB, "2000000", assetA, "0")
	_, err := Price(s, pairAB, decAB)
	assert.ErrorIs(t, err, domain.ErrDivisionByZero)
}

func TestPriceMismatch(t *testing.T) {
	s := swapOf(t, "0x1", assetC, "1", assetA, "1")
	_, err := Price(s, pairAB, decAB)
	assert.ErrorIs(t, err, domain.ErrPairMismatch)
}

func TestSpreadPercent(t *testing.T) {
	bestSell := sellAt(t, "0x1", "2200000")
	bestBuy := buyAt(t, "0x2", "1800000")

	s, ok, err := SpreadPercent(&bestSell, &bestBuy, pairAB, decAB)
	require.NoError(t, err)
	require.True(t, ok)
	// |(2.2 - 1.8) / 2| * 100
	assert.Equal(t, "20", numeric.Display(s))
}

func TestSpreadPercentEmptySide(t *testing.T) {
	bestBuy := buyAt(t, "0x2", "1800000")

	s, ok, err := SpreadPercent(nil, &bestBuy, pairAB, decAB)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, s.IsZero())

	s, ok, err = SpreadPercent(&bestBuy, nil, pairAB, decAB)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, s.IsZero())
}

func TestSpreadPercentEqualPrices(t *testing.T) {
	a := sellAt(t, "0x1", "2000000")
	b := buyAt(t, "0x2", "2000000")
	s, ok, err := SpreadPercent(&a, &b, pairAB, decAB)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.IsZero())
}

func TestTopOfBook(t *testing.T) {
	buyers := []domain.Swap{buyAt(t, "0x1", "1900000"), buyAt(t, "0x2", "1800000"), buyAt(t, "0x3", "1900000")}
	sellers := []domain.Swap{sellAt(t, "0x4", "2300000"), sellAt(t, "0x5", "2100000"), sellAt(t, "0x6", "2100000")}

	bestSell, bestBuy, err := TopOfBook(buyers, sellers, pairAB, decAB)
	require.NoError(t, err)
	require.NotNil(t, bestSell)
	require.NotNil(t, bestBuy)
	assert.Equal(t, "0x6", bestSell.ID)
	assert.Equal(t, "0x1", bestBuy.ID)
}

func TestTopOfBookEmpty(t *testing.T) {
	bestSell, bestBuy, err := TopOfBook(nil, nil, pairAB, decAB)
	require.NoError(t, err)
	assert.Nil(t, bestSell)
	assert.Nil(t, bestBuy)
}

func TestCheckOrdering(t *testing.T) {
	desc := []domain.Swap{buyAt(t, "0x1", "3000000"), buyAt(t, "0x2", "2000000"), buyAt(t, "0x3", "2000000")}
	ordered, at, err := CheckOrdering(desc, pairAB, decAB)
	require.NoError(t, err)
	assert.True(t, ordered)
	assert.Equal(t, -1, at)

	unordered := []domain.Swap{buyAt(t, "0x1", "2000000"), buyAt(t, "0x2", "3000000")}
	ordered, at, err = CheckOrdering(unordered, pairAB, decAB)
	require.NoError(t, err)
	assert.False(t, ordered)
	assert.Equal(t, 1, at)
}

func TestLastPrice(t *testing.T) {
	_, ok, err := LastPrice(nil, pairAB, decAB)
	require.NoError(t, err)
	assert.False(t, ok)

	hist := []domain.Swap{sellAt(t, "0x9", "2500000"), buyAt(t, "0x8", "1000000")}
	p, ok, err := LastPrice(hist, pairAB, decAB)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2.5", numeric.Display(p))
}

func TestCheckPrices(t *testing.T) {
	require.NoError(t, CheckPrices([]domain.Swap{buyAt(t, "0x1", "1"), sellAt(t, "0x2", "1")}, pairAB, decAB))

	zero := swapOf(t, "0x3", assetB, "2000000", assetA, "0")
	err := CheckPrices([]domain.Swap{buyAt(t, "0x1", "1"), zero}, pairAB, decAB)
	assert.ErrorIs(t, err, domain.ErrDataIntegrity)
	assert.ErrorIs(t, err, domain.ErrDivisionByZero)
	assert.Contains(t, err.Error(), "0x3")
}

func TestBookSpread(t *testing.T) {
	rec, err := Reconcile(
		[]domain.Swap{buyAt(t, "0x1", "1800000")},
		[]domain.Swap{sellAt(t, "0x2", "2200000")},
		pairAB,
	)
	require.NoError(t, err)
	snap := &domain.MarketSnapshot{Pair: pairAB, Buyers: rec.Buyers, Sellers: rec.Sellers, Orientation: rec.Orientation, Decimals: decAB}

	s, ok, err := BookSpread(snap)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "20", numeric.Display(s))
}

func TestBookSpreadNeedsResolvedBooks(t *testing.T) {
	rec, err := Reconcile(nil, nil, pairAB)
	require.NoError(t, err)
	snap := &domain.MarketSnapshot{Pair: pairAB, Buyers: rec.Buyers, Sellers: rec.Sellers, Orientation: rec.Orientation, Decimals: decAB}

	_, ok, err := BookSpread(snap)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrDataIntegrity)
	assert.ErrorIs(t, err, domain.ErrUnresolvedBook)
}
