package upstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts upstream API requests by endpoint.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyscope_upstream_requests_total",
		Help: "Total upstream API requests by endpoint",
	}, []string{"endpoint"})

	// ErrorsTotal counts upstream failures by endpoint and error kind.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyscope_upstream_errors_total",
		Help: "Total upstream API errors by endpoint and kind",
	}, []string{"endpoint", "kind"})

	// RateLimitedTotal counts HTTP 429 responses by endpoint.
	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyscope_upstream_rate_limited_total",
		Help: "Total upstream requests rejected with HTTP 429",
	}, []string{"endpoint"})

	// RequestDuration tracks upstream request latency by endpoint.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polyscope_upstream_request_duration_seconds",
		Help:    "Upstream API request latency by endpoint",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// MarketsFetchedTotal counts markets returned by the metadata API.
	MarketsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_upstream_markets_fetched_total",
		Help: "Total markets returned by the metadata API",
	})

	// TradesFetchedTotal counts trades returned by the trades feed before
	// local filtering.
	TradesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_upstream_trades_fetched_total",
		Help: "Total trades returned by the trades feed before filtering",
	})

	// BreakerState exposes the circuit breaker state (0 closed, 1 half-open,
	// 2 open).
	BreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscope_upstream_breaker_state",
		Help: "Upstream circuit breaker state (0 closed, 1 half-open, 2 open)",
	})

	// BreakerRejections counts requests rejected while the circuit is open.
	BreakerRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_upstream_breaker_rejections_total",
		Help: "Total requests rejected by the open circuit breaker",
	})
)
