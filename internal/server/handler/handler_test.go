package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/market"
)

const (
	assetA domain.AssetID = "cxaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	assetB domain.AssetID = "cxbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

var pairAB = domain.Pair{Base: assetA, Quote: assetB}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func raw(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

// sellAt is a sell of one A (18 decimals) for rawB of B (6 decimals).
func sellAt(id, rawB string) domain.Swap {
	return domain.Swap{
		ID:    id,
		Maker: domain.Leg{Provider: "hxseller", Contract: assetA, Amount: raw("1000000000000000000")},
		Taker: domain.Leg{Provider: "hxbuyer", Contract: assetB, Amount: raw(rawB)},
	}
}

func snapshotFor(pair domain.Pair) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Pair:        pair,
		Buyers:      domain.ResolvedBook(nil),
		Sellers:     domain.ResolvedBook([]domain.Swap{sellAt("0x10", "2500000")}),
		Decimals:    domain.Decimals{Base: 18, Quote: 6},
		Symbols:     domain.Symbols{assetA: "AAA", assetB: "BBB"},
		Orientation: domain.OrientationNatural,
		Generation:  3,
		RefreshedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type fakeSession struct {
	pair    domain.Pair
	current *domain.MarketSnapshot
	err     error
	history []domain.FilledSwap

	setPairs []domain.Pair
	swapped  int
	opts     domain.ListOpts
}

func (f *fakeSession) Pair() domain.Pair               { return f.pair }
func (f *fakeSession) Current() *domain.MarketSnapshot { return f.current }

func (f *fakeSession) Refresh(context.Context) (*domain.MarketSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.current, nil
}

func (f *fakeSession) SetPair(_ context.Context, p domain.Pair) (*domain.MarketSnapshot, error) {
	f.setPairs = append(f.setPairs, p)
	if f.err != nil {
		return nil, f.err
	}
	f.pair = p
	f.current = snapshotFor(p)
	return f.current, nil
}

func (f *fakeSession) SwapSides(context.Context) (*domain.MarketSnapshot, error) {
	f.swapped++
	if f.err != nil {
		return nil, f.err
	}
	f.pair = f.pair.Flip()
	f.current = snapshotFor(f.pair)
	return f.current, nil
}

func (f *fakeSession) History(_ context.Context, opts domain.ListOpts) ([]domain.FilledSwap, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGetMarketBeforeFirstSnapshot(t *testing.T) {
	h := NewMarketHandler(&fakeSession{pair: pairAB}, discardLogger())

	rec := httptest.NewRecorder()
	h.GetMarket(rec, httptest.NewRequest(http.MethodGet, "/api/market", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMarketRendersView(t *testing.T) {
	h := NewMarketHandler(&fakeSession{pair: pairAB, current: snapshotFor(pairAB)}, discardLogger())

	rec := httptest.NewRecorder()
	h.GetMarket(rec, httptest.NewRequest(http.MethodGet, "/api/market?wallet=hxseller", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[market.MarketView](t, rec)
	assert.Equal(t, "AAA/BBB", view.Pair)
	assert.Equal(t, uint64(3), view.Generation)
	require.Len(t, view.Sellers, 1)
	assert.Equal(t, "2.5", view.Sellers[0].Price)
	assert.Equal(t, uint64(16), view.Sellers[0].Number)
	assert.True(t, view.Sellers[0].Mine)
	assert.NotNil(t, view.Buyers)
	assert.Empty(t, view.Buyers)
}

func TestGetMarketUnresolvedBooksAreNull(t *testing.T) {
	snap := snapshotFor(pairAB)
	snap.Buyers = domain.UnresolvedBook()
	snap.Sellers = domain.UnresolvedBook()
	snap.Orientation = domain.OrientationUnknown
	h := NewMarketHandler(&fakeSession{pair: pairAB, current: snap}, discardLogger())

	rec := httptest.NewRecorder()
	h.GetMarket(rec, httptest.NewRequest(http.MethodGet, "/api/market", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]json.RawMessage](t, rec)
	assert.JSONEq(t, "null", string(body["buyers"]))
	assert.JSONEq(t, "null", string(body["sellers"]))
	assert.JSONEq(t, "null", string(body["spread"]))
}

func TestSetPair(t *testing.T) {
	s := &fakeSession{pair: pairAB}
	h := NewMarketHandler(s, discardLogger())

	body := fmt.Sprintf(`{"base":%q,"quote":%q}`, assetB, assetA)
	rec := httptest.NewRecorder()
	h.SetPair(rec, httptest.NewRequest(http.MethodPut, "/api/market/pair", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.setPairs, 1)
	assert.Equal(t, pairAB.Flip(), s.setPairs[0])
	assert.Equal(t, "BBB/AAA", decode[market.MarketView](t, rec).Pair)
}

func TestSetPairRejectsBadInput(t *testing.T) {
	s := &fakeSession{pair: pairAB}
	h := NewMarketHandler(s, discardLogger())

	for name, body := range map[string]string{
		"malformed":     `{"base":`,
		"unknown field": `{"base":"cx1","quote":"cx2","extra":1}`,
		"same asset":    fmt.Sprintf(`{"base":%q,"quote":%q}`, assetA, assetA),
		"missing quote": fmt.Sprintf(`{"base":%q}`, assetA),
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.SetPair(rec, httptest.NewRequest(http.MethodPut, "/api/market/pair", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, s.setPairs)
}

func TestSwapSides(t *testing.T) {
	s := &fakeSession{pair: pairAB, current: snapshotFor(pairAB)}
	h := NewMarketHandler(s, discardLogger())

	rec := httptest.NewRecorder()
	h.SwapSides(rec, httptest.NewRequest(http.MethodPost, "/api/market/swap-sides", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.swapped)
	assert.Equal(t, "BBB/AAA", decode[market.MarketView](t, rec).Pair)
}

func TestRefreshErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get buyers: %w", domain.ErrFetchFailure), http.StatusBadGateway},
		{domain.ErrSuperseded, http.StatusConflict},
		{fmt.Errorf("history: %w", domain.ErrPairMismatch), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %w", domain.ErrDataIntegrity, domain.ErrUnresolvedBook), http.StatusUnprocessableEntity},
		{fmt.Errorf("price: %w", domain.ErrDivisionByZero), http.StatusUnprocessableEntity},
		{domain.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			h := NewMarketHandler(&fakeSession{pair: pairAB, err: tc.err}, discardLogger())

			rec := httptest.NewRecorder()
			h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/market/refresh", nil))

			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "boom")
			}
		})
	}
}

func TestHistory(t *testing.T) {
	fill := sellAt("0x2", "3000000")
	fill.FilledAt = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	s := &fakeSession{
		pair:    pairAB,
		current: snapshotFor(pairAB),
		history: []domain.FilledSwap{{Swap: fill, PairName: pairAB.Name()}},
	}
	h := NewMarketHandler(s, discardLogger())

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/market/history?limit=10&offset=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ListOpts{Limit: 10, Offset: 5}, s.opts)
	resp := decode[historyResponse](t, rec)
	require.Len(t, resp.Swaps, 1)
	assert.Equal(t, "3", resp.Swaps[0].Price)
	assert.Equal(t, "03 Feb 2025 04:05:06", resp.Swaps[0].FilledAt)
	assert.Equal(t, "2025-02-03", resp.Swaps[0].FilledDate)
}

func TestHistoryNeedsSnapshotOfCurrentPair(t *testing.T) {
	s := &fakeSession{pair: pairAB.Flip(), current: snapshotFor(pairAB)}
	h := NewMarketHandler(s, discardLogger())

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/market/history", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseListOptsClamps(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=9999&offset=-3", nil)
	assert.Equal(t, domain.ListOpts{Limit: 500, Offset: 0}, parseListOpts(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, domain.ListOpts{Limit: 50, Offset: 0}, parseListOpts(r))
}

func TestUnitsToRaw(t *testing.T) {
	h := NewUnitsHandler(discardLogger())

	rec := httptest.NewRecorder()
	h.ToRaw(rec, httptest.NewRequest(http.MethodGet, "/api/units/to-raw?amount=1.5&decimals=18", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1500000000000000000", decode[map[string]any](t, rec)["raw"])
}

func TestUnitsToUnit(t *testing.T) {
	h := NewUnitsHandler(discardLogger())

	rec := httptest.NewRecorder()
	h.ToUnit(rec, httptest.NewRequest(http.MethodGet, "/api/units/to-unit?raw=0x14d1120d7b160000&decimals=18", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "1500000000000000000", body["raw"])
	assert.Equal(t, "1.5", body["display"])
}

func TestUnitsRejectBadInput(t *testing.T) {
	h := NewUnitsHandler(discardLogger())

	for _, target := range []string{
		"/api/units/to-raw?amount=1.5",
		"/api/units/to-raw?amount=1.5&decimals=x",
		"/api/units/to-raw?amount=1.5&decimals=37",
		"/api/units/to-raw?amount=0.001&decimals=2",
		"/api/units/to-raw?amount=abc&decimals=2",
		"/api/units/to-raw?amount=1e1000000000&decimals=18",
	} {
		rec := httptest.NewRecorder()
		h.ToRaw(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	rec := httptest.NewRecorder()
	h.ToUnit(rec, httptest.NewRequest(http.MethodGet, "/api/units/to-unit?raw=-5&decimals=2", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]HealthCheck{"redis": ok}, discardLogger()).
		HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]HealthCheck{"redis": ok, "postgres": down}, discardLogger()).
		HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"redis": "ok", "postgres": "connection refused"}, body["dependencies"])
}
