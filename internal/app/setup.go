package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/analyzer"
	"github.com/polyscope/polyscope/internal/collector"
	"github.com/polyscope/polyscope/internal/retention"
	"github.com/polyscope/polyscope/internal/scheduler"
	"github.com/polyscope/polyscope/internal/scoring"
	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/internal/upstream"
	"github.com/polyscope/polyscope/pkg/cache"
	"github.com/polyscope/polyscope/pkg/config"
	"github.com/polyscope/polyscope/pkg/healthprobe"
	"github.com/polyscope/polyscope/pkg/httpserver"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	store, err := setupStorage(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	client, err := setupUpstreamClient(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup upstream client: %w", err)
	}

	marketCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthprobe.New(),
		store:         store,
		client:        client,
		marketCache:   marketCache,
		ctx:           ctx,
		cancel:        cancel,
	}

	err = a.setupPipeline()
	if err != nil {
		cancel()
		return nil, err
	}

	a.healthChecker.SetDataTimestamp(dataTimestampProbe(store))

	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: a.healthChecker,
		Store:         store,
		Scorer:        a.scorer,
		Cache:         marketCache,
	})

	return a, nil
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage.Store, error) {
	store, err := storage.New(&storage.Config{
		DatabaseURL: cfg.DatabaseURL,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	err = store.Migrate(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return store, nil
}

func setupUpstreamClient(cfg *config.Config, logger *zap.Logger) (*upstream.Client, error) {
	var creds *upstream.Credentials
	if cfg.HasAPICredentials() {
		creds = &upstream.Credentials{
			APIKey:     cfg.APIKey,
			Secret:     cfg.APISecret,
			Passphrase: cfg.APIPassphrase,
			Address:    cfg.WalletAddress,
		}
	}

	return upstream.NewClient(&upstream.Config{
		GammaURL: cfg.MetadataAPIURL,
		ClobURL:  cfg.OrderBookAPIURL,
		Timeout:  cfg.UpstreamTimeout,
		Retry: upstream.RetryPolicy{
			MaxAttempts: cfg.APIMaxRetries,
			BaseDelay:   cfg.APIRetryBaseDelay,
			MaxDelay:    cfg.APIRetryMaxDelay,
		},
		Credentials: creds,
		Logger:      logger,
	})
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items (1000 markets)
		MaxCost:     1000,  // Maximum 1000 items in cache
		BufferItems: 64,    // Buffer size for Get operations
		Logger:      logger,
	})
}

// setupPipeline wires collectors, analyzers, the scorer, the sweeper, and the
// scheduler around the shared store and upstream client.
func (a *App) setupPipeline() error {
	var err error

	a.markets, err = collector.NewMarketCollector(&collector.MarketCollectorConfig{
		Fetcher: a.client,
		Store:   a.store,
		Logger:  a.logger,
	})
	if err != nil {
		return fmt.Errorf("setup market collector: %w", err)
	}

	a.books, err = collector.NewBookCollector(&collector.BookCollectorConfig{
		Fetcher:     a.client,
		Store:       a.store,
		Concurrency: a.cfg.OrderBookConcurrency,
		Logger:      a.logger,
	})
	if err != nil {
		return fmt.Errorf("setup book collector: %w", err)
	}

	a.trades, err = collector.NewTradeCollector(&collector.TradeCollectorConfig{
		Fetcher:  a.client,
		Store:    a.store,
		Lookback: a.cfg.TradeLookback,
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("setup trade collector: %w", err)
	}

	a.volume, err = collector.NewVolumeAggregator(&collector.VolumeAggregatorConfig{
		Store:  a.store,
		Logger: a.logger,
	})
	if err != nil {
		return fmt.Errorf("setup volume aggregator: %w", err)
	}

	a.analysis, err = setupAnalysis(a.cfg, a.store, a.logger)
	if err != nil {
		return fmt.Errorf("setup analysis: %w", err)
	}

	a.scorer, err = scoring.New(&scoring.Config{Store: a.store, Logger: a.logger})
	if err != nil {
		return fmt.Errorf("setup scorer: %w", err)
	}

	a.sweeper, err = retention.New(&retention.Config{
		Store:  a.store,
		Policy: retention.PolicyFromDays(a.cfg.DataRetentionDays, a.cfg.AlertRetentionDays),
		Logger: a.logger,
	})
	if err != nil {
		return fmt.Errorf("setup sweeper: %w", err)
	}

	a.sched, err = scheduler.New(&scheduler.Config{Store: a.store, Logger: a.logger})
	if err != nil {
		return fmt.Errorf("setup scheduler: %w", err)
	}
	return a.registerJobs()
}

func setupAnalysis(cfg *config.Config, store *storage.Store, logger *zap.Logger) (*analyzer.Runner, error) {
	volume, err := analyzer.NewVolumeAnalyzer(&analyzer.VolumeAnalyzerConfig{
		Store:     store,
		Threshold: cfg.VolumeSpikeThreshold,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	spread, err := analyzer.NewSpreadAnalyzer(&analyzer.SpreadAnalyzerConfig{
		Store:     store,
		Threshold: cfg.SpreadAlertThreshold,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	pullback, err := analyzer.NewPullbackAnalyzer(&analyzer.PullbackAnalyzerConfig{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	intra, err := analyzer.NewIntraMarketAnalyzer(&analyzer.IntraMarketAnalyzerConfig{
		Store:     store,
		MinProfit: cfg.ArbitrageMinProfit,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	cross, err := analyzer.NewCrossMarketAnalyzer(&analyzer.CrossMarketAnalyzerConfig{
		Store:        store,
		MinProfit:    cfg.ArbitrageMinProfit,
		MinLiquidity: cfg.ArbMinLiquidity,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	return analyzer.NewRunner(&analyzer.RunnerConfig{
		Analyzers: []analyzer.Analyzer{volume, spread, pullback, intra, cross},
		Logger:    logger,
	})
}

// dataTimestampProbe reports the newer of the latest trade and the latest
// order book snapshot.
func dataTimestampProbe(store *storage.Store) healthprobe.DataTimestampFunc {
	return func(ctx context.Context) (time.Time, error) {
		snap, err := store.LatestSnapshotTimestamp(ctx)
		if err != nil {
			return time.Time{}, err
		}
		trade, err := store.LatestTradeTimestamp(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if trade.After(snap) {
			return trade, nil
		}
		return snap, nil
	}
}
