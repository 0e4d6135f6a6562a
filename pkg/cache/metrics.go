package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_cache_misses_total",
		Help: "Total number of cache misses",
	})

	CacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_cache_sets_total",
		Help: "Total number of cache sets",
	})

	CacheDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_cache_deletes_total",
		Help: "Total number of cache deletes",
	})

	CacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscope_cache_hit_rate",
		Help: "Observed cache hit rate",
	})

	CacheOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polyscope_cache_operation_duration_seconds",
		Help:    "Duration of cache operations",
		Buckets: prometheus.ExponentialBuckets(0.00001, 10, 6),
	}, []string{"operation"})
)
