package scoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SafeOpportunities is the safe pick count from the last evaluation.
	SafeOpportunities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscope_safe_opportunities",
		Help: "Markets meeting the strict safety profile in the last evaluation",
	})

	// LearningOpportunities is the relaxed-profile count from the last evaluation.
	LearningOpportunities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscope_learning_opportunities",
		Help: "Markets meeting only the relaxed profile in the last evaluation",
	})
)
