package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/pkg/types"
)

// BookFetcher fetches one order book from the upstream API.
type BookFetcher interface {
	FetchBook(ctx context.Context, tokenID string) (*types.Book, error)
}

// BookStore persists order-book snapshots and the latest raw ladders.
type BookStore interface {
	TrackedTokens(ctx context.Context) ([]storage.TokenRef, error)
	InsertSnapshot(ctx context.Context, snap *types.OrderBookSnapshot) error
	UpsertLatestRaw(ctx context.Context, raw *types.OrderBookLatestRaw) error
}

// BookCollector polls order books for every tracked token with bounded
// concurrency, persisting computed metrics plus the raw ladder.
type BookCollector struct {
	fetcher     BookFetcher
	store       BookStore
	concurrency int64
	logger      *zap.Logger
}

// BookCollectorConfig holds order-book collector configuration.
type BookCollectorConfig struct {
	Fetcher     BookFetcher
	Store       BookStore
	Concurrency int
	Logger      *zap.Logger
}

// NewBookCollector creates an order-book collector.
func NewBookCollector(cfg *BookCollectorConfig) (*BookCollector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &BookCollector{
		fetcher:     cfg.Fetcher,
		store:       cfg.Store,
		concurrency: int64(cfg.Concurrency),
		logger:      cfg.Logger,
	}, nil
}

// Collect fetches the order book for every tracked token. A failed token is
// logged and skipped; the pass continues. Returns how many books were stored.
func (c *BookCollector) Collect(ctx context.Context) (int, error) {
	refs, err := c.store.TrackedTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("load tracked tokens: %w", err)
	}

	sem := semaphore.NewWeighted(c.concurrency)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		stored int
		failed int
	)

	for _, ref := range refs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(ref storage.TokenRef) {
			defer wg.Done()
			defer sem.Release(1)

			err := c.collectOne(ctx, ref)
			mu.Lock()
			if err != nil {
				failed++
			} else {
				stored++
			}
			mu.Unlock()
			if err != nil {
				c.logger.Warn("orderbook-collect-failed",
					zap.String("token-id", ref.TokenID),
					zap.String("market-id", ref.MarketID),
					zap.Error(err))
			}
		}(ref)
	}
	wg.Wait()

	BooksCollected.Add(float64(stored))
	BookCollectErrors.Add(float64(failed))
	c.logger.Info("orderbooks-collected",
		zap.Int("tokens", len(refs)),
		zap.Int("stored", stored),
		zap.Int("failed", failed))

	if ctx.Err() != nil {
		return stored, ctx.Err()
	}
	return stored, nil
}

func (c *BookCollector) collectOne(ctx context.Context, ref storage.TokenRef) error {
	book, err := c.fetcher.FetchBook(ctx, ref.TokenID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	snap := book.Snapshot(ref.TokenID, ref.MarketID, now)
	if err := c.store.InsertSnapshot(ctx, snap); err != nil {
		return err
	}

	raw := &types.OrderBookLatestRaw{
		TokenID:   ref.TokenID,
		MarketID:  ref.MarketID,
		Timestamp: now,
		Bids:      book.Bids,
		Asks:      book.Asks,
	}
	return c.store.UpsertLatestRaw(ctx, raw)
}
