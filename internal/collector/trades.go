package collector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/pkg/types"
)

// TradeFetcher fetches recent trades from the upstream API.
type TradeFetcher interface {
	FetchRecentTrades(ctx context.Context) ([]*types.Trade, error)
}

// TradeStore persists trades for tracked tokens.
type TradeStore interface {
	TrackedTokens(ctx context.Context) ([]storage.TokenRef, error)
	ExistingTradeIDs(ctx context.Context, ids []string) (map[string]bool, error)
	InsertTrades(ctx context.Context, trades []*types.Trade) (int, error)
}

// TradeCollector ingests the recent-trades feed: one paginated crawl, then
// local filtering down to tracked tokens, the lookback window, and valid
// records.
type TradeCollector struct {
	fetcher  TradeFetcher
	store    TradeStore
	lookback time.Duration
	logger   *zap.Logger
}

// TradeCollectorConfig holds trade collector configuration.
type TradeCollectorConfig struct {
	Fetcher  TradeFetcher
	Store    TradeStore
	Lookback time.Duration
	Logger   *zap.Logger
}

// NewTradeCollector creates a trade collector.
func NewTradeCollector(cfg *TradeCollectorConfig) (*TradeCollector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Lookback <= 0 {
		return nil, fmt.Errorf("lookback must be positive")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &TradeCollector{
		fetcher:  cfg.Fetcher,
		store:    cfg.Store,
		lookback: cfg.Lookback,
		logger:   cfg.Logger,
	}, nil
}

// Collect fetches the feed once and stores every new trade for a tracked
// token within the lookback window. Returns (new, duplicate) counts.
func (c *TradeCollector) Collect(ctx context.Context) (inserted, duplicates int, err error) {
	refs, err := c.store.TrackedTokens(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load tracked tokens: %w", err)
	}
	tracked := make(map[string]bool, len(refs))
	for _, r := range refs {
		tracked[r.TokenID] = true
	}
	if len(tracked) == 0 {
		c.logger.Info("trade-collection-skipped", zap.String("reason", "no tracked tokens"))
		return 0, 0, nil
	}

	trades, err := c.fetcher.FetchRecentTrades(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch recent trades: %w", err)
	}

	candidates := c.filter(trades, tracked, time.Now().UTC())
	if len(candidates) == 0 {
		c.logger.Info("trade-collection-complete",
			zap.Int("fetched", len(trades)),
			zap.Int("new", 0),
			zap.Int("duplicates", 0))
		return 0, 0, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, t := range candidates {
		ids = append(ids, t.ID)
	}
	existing, err := c.store.ExistingTradeIDs(ctx, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("check existing trades: %w", err)
	}

	fresh := make([]*types.Trade, 0, len(candidates))
	for _, t := range candidates {
		if existing[t.ID] {
			duplicates++
			continue
		}
		fresh = append(fresh, t)
	}

	inserted, err = c.store.InsertTrades(ctx, fresh)
	if err != nil {
		return 0, 0, fmt.Errorf("insert trades: %w", err)
	}
	// Conflict-ignored rows raced an earlier insert; count them as dups.
	duplicates += len(fresh) - inserted

	TradesCollected.Add(float64(inserted))
	TradesDeduplicated.Add(float64(duplicates))
	c.logger.Info("trade-collection-complete",
		zap.Int("fetched", len(trades)),
		zap.Int("new", inserted),
		zap.Int("duplicates", duplicates))

	return inserted, duplicates, nil
}

// filter keeps valid trades for tracked tokens inside the lookback window,
// deduplicated by id within the batch. Trades without an id get a
// content-derived one.
func (c *TradeCollector) filter(trades []*types.Trade, tracked map[string]bool, now time.Time) []*types.Trade {
	cutoff := now.Add(-c.lookback)
	seen := make(map[string]bool, len(trades))

	var kept []*types.Trade
	for _, t := range trades {
		if !tracked[t.TokenID] {
			continue
		}
		if t.Timestamp.Before(cutoff) {
			continue
		}
		if !t.Valid(now) {
			continue
		}
		t.EnsureID()
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		kept = append(kept, t)
	}
	return kept
}
