package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/server/handler"
)

type idleSession struct{ pair domain.Pair }

func (s idleSession) Pair() domain.Pair               { return s.pair }
func (s idleSession) Current() *domain.MarketSnapshot { return nil }
func (s idleSession) Refresh(context.Context) (*domain.MarketSnapshot, error) {
	return nil, domain.ErrFetchFailure
}
func (s idleSession) SetPair(context.Context, domain.Pair) (*domain.MarketSnapshot, error) {
	return nil, domain.ErrFetchFailure
}
func (s idleSession) SwapSides(context.Context) (*domain.MarketSnapshot, error) {
	return nil, domain.ErrFetchFailure
}
func (s idleSession) History(context.Context, domain.ListOpts) ([]domain.FilledSwap, error) {
	return nil, nil
}

func newTestHandler(apiKey string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(Config{APIKey: apiKey}, Handlers{
		Health: handler.NewHealthHandler(nil, logger),
		Market: handler.NewMarketHandler(idleSession{pair: domain.Pair{Base: "cxa", Quote: "cxb"}}, logger),
		Units:  handler.NewUnitsHandler(logger),
	}, nil, logger)
}

func TestRoutes(t *testing.T) {
	h := newTestHandler("")

	cases := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/market", http.StatusNotFound},
		{http.MethodPost, "/api/market/refresh", http.StatusBadGateway},
		{http.MethodPost, "/api/market/swap-sides", http.StatusBadGateway},
		{http.MethodGet, "/api/units/to-raw?amount=2&decimals=3", http.StatusOK},
		{http.MethodGet, "/api/market/refresh", http.StatusMethodNotAllowed},
		{http.MethodGet, "/ws", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler("secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swapmarket_snapshot_generation")
}

func TestAuthGuardsMarketRoutes(t *testing.T) {
	h := newTestHandler("secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/market", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/market", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
