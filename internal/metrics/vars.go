// Package metrics exposes Prometheus instruments for the market engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapmarket_refresh_total",
		Help: "Market refresh cycles by outcome (published, superseded, failed)",
	}, []string{"outcome"})

	RefreshLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapmarket_refresh_latency_seconds",
		Help:    "Time from refresh start to publish or failure",
		Buckets: prometheus.DefBuckets,
	})

	FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapmarket_fetch_errors_total",
		Help: "Data source call failures by call",
	}, []string{"call"})

	BookDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swapmarket_book_depth",
		Help: "Pending swaps per side in the current snapshot",
	}, []string{"side"})

	SpreadPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swapmarket_spread_percent",
		Help: "Spread of the current snapshot in percent; 0 when a side is empty",
	})

	Generation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swapmarket_snapshot_generation",
		Help: "Generation of the currently published snapshot",
	})

	UnorderedBooks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapmarket_unordered_book_total",
		Help: "Refreshes whose book side was not in non-increasing price order",
	}, []string{"side"})

	ArchivedSwaps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swapmarket_archived_swaps_total",
		Help: "Filled swaps written to cold storage",
	})

	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swapmarket_ws_clients",
		Help: "Connected WebSocket clients",
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swapmarket_http_requests_total",
		Help: "HTTP requests by method and status code",
	}, []string{"method", "code"})

	HTTPLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapmarket_http_request_duration_seconds",
		Help:    "HTTP request latency by method",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swapmarket_http_rate_limited_total",
		Help: "Requests rejected by the per-client rate limit",
	})
)

func init() {
	prometheus.MustRegister(
		RefreshTotal,
		RefreshLatency,
		FetchErrors,
		BookDepth,
		SpreadPercent,
		Generation,
		UnorderedBooks,
		ArchivedSwaps,
		WSClients,
		HTTPRequests,
		HTTPLatency,
		RateLimited,
	)
}
