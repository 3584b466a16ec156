package market

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

func testSnapshot(t *testing.T) *domain.MarketSnapshot {
	t.Helper()
	filled := sellAt(t, "0x1f", "2500000")
	filled.FilledAt = time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
	filled.Maker.Provider = "hxme"

	return &domain.MarketSnapshot{
		Pair:        pairAB,
		Buyers:      domain.ResolvedBook([]domain.Swap{buyAt(t, "0x2", "1800000")}),
		Sellers:     domain.ResolvedBook([]domain.Swap{sellAt(t, "0x3", "2200000")}),
		History:     []domain.Swap{filled},
		Decimals:    decAB,
		Symbols:     domain.Symbols{assetA: "AAA", assetB: "BBB"},
		Orientation: domain.OrientationNatural,
		Generation:  4,
		RefreshedAt: time.Date(2022, 3, 4, 6, 0, 0, 0, time.UTC),
	}
}

func TestBuildView(t *testing.T) {
	v, err := BuildView(testSnapshot(t), "hxme")
	require.NoError(t, err)

	assert.Equal(t, "AAA/BBB", v.Pair)
	assert.False(t, v.Inverted)
	assert.Equal(t, uint64(4), v.Generation)
	require.NotNil(t, v.Spread)
	assert.Equal(t, "20", *v.Spread)
	require.NotNil(t, v.LastPrice)
	assert.Equal(t, "2.5", *v.LastPrice)

	require.Len(t, v.History, 1)
	h := v.History[0]
	assert.Equal(t, uint64(0x1f), h.Number)
	assert.Equal(t, domain.OrderSideSell, h.Side)
	assert.Equal(t, "1", h.Amount)
	assert.Equal(t, "2.5", h.Total)
	assert.Equal(t, "04 Mar 2022 05:06:07", h.FilledAt)
	assert.Equal(t, "2022-03-04", h.FilledDate)
	assert.True(t, h.Mine)

	require.Len(t, v.Buyers, 1)
	assert.Equal(t, domain.OrderSideBuy, v.Buyers[0].Side)
	assert.Equal(t, "1.8", v.Buyers[0].Price)
	assert.False(t, v.Buyers[0].Mine)
	assert.Empty(t, v.Buyers[0].FilledAt)
}

func TestBuildViewUnresolvedBooksRenderNull(t *testing.T) {
	snap := testSnapshot(t)
	snap.Buyers = domain.UnresolvedBook()
	snap.Sellers = domain.UnresolvedBook()
	snap.Orientation = domain.OrientationUnknown

	v, err := BuildView(snap, "")
	require.NoError(t, err)
	assert.Nil(t, v.Buyers)
	assert.Nil(t, v.Sellers)
	assert.Nil(t, v.Spread)

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Nil(t, m["buyers"])
	assert.Nil(t, m["spread"])
}

func TestBuildViewEmptyBookHasNoSpread(t *testing.T) {
	snap := testSnapshot(t)
	snap.Sellers = domain.ResolvedBook(nil)

	v, err := BuildView(snap, "")
	require.NoError(t, err)
	assert.NotNil(t, v.Sellers)
	assert.Empty(t, v.Sellers)
	assert.Nil(t, v.Spread)
}

func TestBuildViewMissingSymbol(t *testing.T) {
	snap := testSnapshot(t)
	delete(snap.Symbols, assetB)

	_, err := BuildView(snap, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBuildRowTruncatesDisplay(t *testing.T) {
	s := swapOf(t, "0x1", assetA, "1234567891234567891", assetB, "3000000")
	r, err := BuildRow(s, pairAB, decAB, "")
	require.NoError(t, err)
	assert.Equal(t, "1.2345679", r.Amount)
	assert.Equal(t, "3", r.Total)
}
