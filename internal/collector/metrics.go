package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsSynced is the size of the tracked market universe after the
	// last sync.
	MarketsSynced = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscope_markets_synced",
		Help: "Markets stored by the last market sync",
	})

	// TradeableMarkets counts markets with order books enabled after the
	// last sync.
	TradeableMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyscope_markets_tradeable",
		Help: "Markets with order books enabled after the last sync",
	})

	// BooksCollected counts order books stored across all passes.
	BooksCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_orderbooks_collected_total",
		Help: "Total order books fetched and stored",
	})

	// BookCollectErrors counts tokens skipped by a collection pass.
	BookCollectErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_orderbook_collect_errors_total",
		Help: "Total per-token order book collection failures",
	})

	// TradesCollected counts new trades stored across all passes.
	TradesCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_trades_collected_total",
		Help: "Total new trades stored",
	})

	// TradesDeduplicated counts trades skipped as already stored.
	TradesDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyscope_trades_deduplicated_total",
		Help: "Total trades skipped as duplicates",
	})
)
