package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AlertsCreated counts alerts created, by analyzer.
	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyscope_alerts_created_total",
		Help: "Total alerts created by analyzer",
	}, []string{"analyzer"})

	// AnalyzerFailures counts failed analyzer passes.
	AnalyzerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyscope_analyzer_failures_total",
		Help: "Total failed analyzer passes",
	}, []string{"analyzer"})

	// AnalyzerDuration tracks per-analyzer pass latency.
	AnalyzerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polyscope_analyzer_duration_seconds",
		Help:    "Analyzer pass latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"analyzer"})
)
