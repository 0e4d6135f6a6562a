package analyzer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/pkg/types"
)

// Analyzer is one detection pass. Each implementation opens its own
// transaction, computes candidate alerts from batch queries, deduplicates
// against active alerts of its kind, and inserts survivors.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, now time.Time) (int, error)
}

// Store is the persistence surface analyzers share.
type Store interface {
	TrackedTokens(ctx context.Context) ([]storage.TokenRef, error)
	TradeWindows(ctx context.Context, tokens []string, now time.Time) (map[string]*storage.TradeWindowStats, error)
	LatestSnapshots(ctx context.Context, tokens []string) (map[string]*types.OrderBookSnapshot, error)
	OldestSnapshotsSince(ctx context.Context, tokens []string, since time.Time) (map[string]*types.OrderBookSnapshot, error)
	ActiveMarkets(ctx context.Context) ([]*types.Market, error)
	MarketsByIDs(ctx context.Context, ids []string) (map[string]*types.Market, error)
	ListRelationships(ctx context.Context) ([]*types.MarketRelationship, error)
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	InsertAlertTx(ctx context.Context, tx *sql.Tx, alert *types.Alert) (bool, error)
	ActiveDedupKeysTx(ctx context.Context, tx *sql.Tx, kind types.AlertKind) (map[string]bool, error)
}

// persistAlerts writes candidates of one kind in a single transaction,
// skipping any whose dedup key (or a key in its suppression list) is already
// active. The unique index remains the authority under races: a conflicting
// insert rolls back its savepoint and counts as a duplicate.
func persistAlerts(ctx context.Context, store Store, kind types.AlertKind, candidates []*candidateAlert) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	var created int
	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		active, err := store.ActiveDedupKeysTx(ctx, tx, kind)
		if err != nil {
			return err
		}

	next:
		for _, c := range candidates {
			if active[c.alert.DedupKey] {
				continue
			}
			for _, key := range c.suppressedBy {
				if active[key] {
					continue next
				}
			}
			ok, err := store.InsertAlertTx(ctx, tx, c.alert)
			if err != nil {
				return err
			}
			if ok {
				created++
				active[c.alert.DedupKey] = true
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("persist %s alerts: %w", kind, err)
	}
	return created, nil
}

// candidateAlert pairs an alert with additional dedup keys whose presence in
// the active set suppresses it.
type candidateAlert struct {
	alert        *types.Alert
	suppressedBy []string
}

func newCandidate(alert *types.Alert, suppressedBy ...string) *candidateAlert {
	return &candidateAlert{alert: alert, suppressedBy: suppressedBy}
}

// Runner executes all registered analyzers in parallel, each in its own
// transaction. One analyzer failing does not prevent the others from
// committing; failures are aggregated into the returned error.
type Runner struct {
	analyzers []Analyzer
	logger    *zap.Logger
}

// RunnerConfig holds runner configuration.
type RunnerConfig struct {
	Analyzers []Analyzer
	Logger    *zap.Logger
}

// NewRunner creates an analysis runner.
func NewRunner(cfg *RunnerConfig) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Analyzers) == 0 {
		return nil, fmt.Errorf("at least one analyzer is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Runner{analyzers: cfg.Analyzers, logger: cfg.Logger}, nil
}

// RunAll runs every analyzer against the same logical instant. Returns the
// total number of alerts created and the joined per-analyzer failures.
func (r *Runner) RunAll(ctx context.Context, now time.Time) (int, error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)

	for _, a := range r.analyzers {
		wg.Add(1)
		go func(a Analyzer) {
			defer wg.Done()

			start := time.Now()
			n, err := a.Analyze(ctx, now)
			AnalyzerDuration.WithLabelValues(a.Name()).Observe(time.Since(start).Seconds())

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				AnalyzerFailures.WithLabelValues(a.Name()).Inc()
				errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
				r.logger.Error("analyzer-failed",
					zap.String("analyzer", a.Name()),
					zap.Error(err))
				return
			}
			created += n
			AlertsCreated.WithLabelValues(a.Name()).Add(float64(n))
			r.logger.Info("analyzer-complete",
				zap.String("analyzer", a.Name()),
				zap.Int("alerts", n))
		}(a)
	}
	wg.Wait()

	return created, errors.Join(errs...)
}
