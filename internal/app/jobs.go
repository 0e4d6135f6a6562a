package app

import (
	"context"
	"fmt"
	"time"

	"github.com/polyscope/polyscope/internal/scheduler"
)

// analysisInterval is fixed: analyzers window over 30-60m of history, so a
// faster collection cadence must not speed them up.
const analysisInterval = 15 * time.Minute

// Staggered first runs: markets land before order books, order books before
// trades and the first analysis pass.
const (
	marketsStartDelay  = 5 * time.Second
	booksStartDelay    = 45 * time.Second
	tradesStartDelay   = 60 * time.Second
	analysisStartDelay = 90 * time.Second
	volumeStartDelay   = 5 * time.Minute
	cleanupStartDelay  = 10 * time.Minute
)

func (a *App) jobSpecs() []*scheduler.Job {
	return []*scheduler.Job{
		{
			ID:    "collect_markets",
			Every: a.cfg.SchedulerInterval,
			Delay: marketsStartDelay,
			Run: func(ctx context.Context) (int, error) {
				synced, _, err := a.markets.Collect(ctx)
				return synced, err
			},
		},
		{
			ID:    "collect_orderbooks",
			Every: a.cfg.SchedulerInterval,
			Delay: booksStartDelay,
			Run:   a.books.Collect,
		},
		{
			ID:    "collect_trades",
			Every: a.cfg.TradeInterval,
			Delay: tradesStartDelay,
			Run: func(ctx context.Context) (int, error) {
				inserted, _, err := a.trades.Collect(ctx)
				return inserted, err
			},
		},
		{
			ID:    "run_analysis",
			Every: analysisInterval,
			Delay: analysisStartDelay,
			Run: func(ctx context.Context) (int, error) {
				return a.analysis.RunAll(ctx, time.Now().UTC())
			},
		},
		{
			ID:    "aggregate_volume",
			Every: time.Hour,
			Delay: volumeStartDelay,
			Run: func(ctx context.Context) (int, error) {
				return a.volume.Aggregate(ctx, time.Now().UTC())
			},
		},
		{
			ID:    "cleanup_old_data",
			Every: 24 * time.Hour,
			Delay: cleanupStartDelay,
			Run: func(ctx context.Context) (int, error) {
				return a.sweeper.Run(ctx, time.Now().UTC())
			},
		},
	}
}

// registerJobs fills the scheduler's registry.
func (a *App) registerJobs() error {
	for _, job := range a.jobSpecs() {
		if err := a.sched.Register(job); err != nil {
			return fmt.Errorf("register job: %w", err)
		}
	}
	return nil
}
