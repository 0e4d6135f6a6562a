package retention

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsRemoved counts rows expired or deleted by retention sweeps.
	RowsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_retention_rows_removed_total",
		Help: "Rows expired or deleted by retention sweeps",
	})

	// TableRows is the post-sweep row count per swept table.
	TableRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyscope_table_rows",
		Help: "Approximate row count per table after the last sweep",
	}, []string{"table"})
)
