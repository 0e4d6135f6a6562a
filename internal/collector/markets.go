package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

// MarketFetcher fetches market metadata from the upstream API.
type MarketFetcher interface {
	FetchActiveMarkets(ctx context.Context) ([]*types.Market, error)
}

// MarketStore persists the synced market universe.
type MarketStore interface {
	ReplaceActiveMarkets(ctx context.Context, markets []*types.Market) error
}

// MarketCollector syncs the tracked market universe from the metadata API.
type MarketCollector struct {
	fetcher MarketFetcher
	store   MarketStore
	logger  *zap.Logger
}

// MarketCollectorConfig holds market collector configuration.
type MarketCollectorConfig struct {
	Fetcher MarketFetcher
	Store   MarketStore
	Logger  *zap.Logger
}

// NewMarketCollector creates a market collector.
func NewMarketCollector(cfg *MarketCollectorConfig) (*MarketCollector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &MarketCollector{fetcher: cfg.Fetcher, store: cfg.Store, logger: cfg.Logger}, nil
}

// Collect fetches all active markets and replaces the stored universe so only
// currently tradeable markets keep their order books enabled. Returns the
// number of markets synced and how many of them are tradeable.
func (c *MarketCollector) Collect(ctx context.Context) (synced, tradeable int, err error) {
	markets, err := c.fetcher.FetchActiveMarkets(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch active markets: %w", err)
	}

	for _, m := range markets {
		if m.Tradeable() {
			tradeable++
		}
	}

	err = c.store.ReplaceActiveMarkets(ctx, markets)
	if err != nil {
		return 0, 0, fmt.Errorf("replace active markets: %w", err)
	}

	MarketsSynced.Set(float64(len(markets)))
	TradeableMarkets.Set(float64(tradeable))
	c.logger.Info("markets-synced",
		zap.Int("total", len(markets)),
		zap.Int("tradeable", tradeable))

	return len(markets), tradeable, nil
}
