package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	h := Auth("secret", "/api/health")(okHandler)

	cases := []struct {
		name   string
		target string
		header [2]string
		want   int
	}{
		{"no token", "/api/market", [2]string{}, http.StatusUnauthorized},
		{"wrong token", "/api/market", [2]string{"X-API-Key", "nope"}, http.StatusUnauthorized},
		{"api key", "/api/market", [2]string{"X-API-Key", "secret"}, http.StatusOK},
		{"bearer", "/api/market", [2]string{"Authorization", "Bearer secret"}, http.StatusOK},
		{"public path", "/api/health", [2]string{}, http.StatusOK},
		{"ws query token", "/ws?token=secret", [2]string{}, http.StatusOK},
		{"query token elsewhere", "/api/market?token=secret", [2]string{}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header[0] != "" {
				req.Header.Set(tc.header[0], tc.header[1])
			}
			assert.Equal(t, tc.want, serve(h, req).Code)
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	rec := serve(Auth("")(okHandler), httptest.NewRequest(http.MethodGet, "/api/market", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example"})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/market", nil)
	req.Header.Set("Origin", "https://app.example")
	assert.Equal(t, "https://app.example", serve(h, req).Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/market", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.Empty(t, serve(h, req).Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/market", nil)
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code)
}

func TestLoggingSetsRequestID(t *testing.T) {
	h := Logging(discardLogger())(okHandler)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/market", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/market", nil)
	req.Header.Set(RequestIDHeader, "abc")
	assert.Equal(t, "abc", serve(h, req).Header().Get(RequestIDHeader))
}

type fakeLimiter struct {
	counts map[string]int
	err    error
}

func (f *fakeLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.counts[key]++
	return f.counts[key] <= limit, nil
}

func TestRateLimit(t *testing.T) {
	lim := &fakeLimiter{counts: map[string]int{}}
	h := RateLimit(lim, 2, time.Second, discardLogger())(okHandler)

	req := func(ip string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/market", nil)
		r.Header.Set("X-Forwarded-For", ip+", 10.0.0.9")
		return r
	}
	assert.Equal(t, http.StatusOK, serve(h, req("1.1.1.1")).Code)
	assert.Equal(t, http.StatusOK, serve(h, req("1.1.1.1")).Code)
	rec := serve(h, req("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, serve(h, req("2.2.2.2")).Code)
	require.Equal(t, 3, lim.counts["api:1.1.1.1"])
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(&fakeLimiter{err: errors.New("redis down")}, 1, time.Second, discardLogger())(okHandler)
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}
