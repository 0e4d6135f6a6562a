package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/storage"
)

// Store is the persistence surface of the sweeper.
type Store interface {
	Sweep(ctx context.Context, policy *storage.RetentionPolicy, now time.Time) (*storage.RetentionReport, error)
	Reclaim(ctx context.Context) error
	TableSizes(ctx context.Context) (map[string]int64, error)
	LogSweep(report *storage.RetentionReport, sizes map[string]int64)
}

// Sweeper runs the periodic retention pass: expire and delete inside one
// transaction, then reclaim storage outside it.
type Sweeper struct {
	store  Store
	policy storage.RetentionPolicy
	logger *zap.Logger
}

// Config holds sweeper configuration.
type Config struct {
	Store  Store
	Policy storage.RetentionPolicy
	Logger *zap.Logger
}

// New creates a retention sweeper.
func New(cfg *Config) (*Sweeper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Policy.SnapshotTTL <= 0 || cfg.Policy.TradeTTL <= 0 || cfg.Policy.InactiveAlertTTL <= 0 {
		return nil, fmt.Errorf("retention TTLs must be positive")
	}
	return &Sweeper{store: cfg.Store, policy: cfg.Policy, logger: cfg.Logger}, nil
}

// PolicyFromDays translates day-based retention settings into a policy.
func PolicyFromDays(dataDays, alertDays int) storage.RetentionPolicy {
	return storage.RetentionPolicy{
		SnapshotTTL:      time.Duration(dataDays) * 24 * time.Hour,
		TradeTTL:         time.Duration(dataDays) * 24 * time.Hour,
		InactiveAlertTTL: time.Duration(alertDays) * 24 * time.Hour,
	}
}

// Run performs one sweep. Returns the total rows removed or expired. Reclaim
// failure is logged but does not fail the run: the deletes already committed.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (int, error) {
	report, err := s.store.Sweep(ctx, &s.policy, now)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}

	if err := s.store.Reclaim(ctx); err != nil {
		s.logger.Warn("storage-reclaim-failed", zap.Error(err))
	}

	sizes, err := s.store.TableSizes(ctx)
	if err != nil {
		s.logger.Warn("table-size-check-failed", zap.Error(err))
		sizes = map[string]int64{}
	}
	s.store.LogSweep(report, sizes)

	removed := report.AlertsExpired + report.SnapshotsDeleted + report.TradesDeleted +
		report.AlertsDeleted + report.SnapshotsCapped + report.TradesCapped
	RowsRemoved.Add(float64(removed))
	for table, count := range sizes {
		TableRows.WithLabelValues(table).Set(float64(count))
	}
	return int(removed), nil
}
