package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobRuns counts completed invocations by terminal status.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyscope_job_runs_total",
		Help: "Completed job invocations by status",
	}, []string{"job", "status"})

	// JobDuration tracks wall time per invocation.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polyscope_job_duration_seconds",
		Help:    "Job invocation duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)
