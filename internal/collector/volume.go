package collector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

// VolumeStore aggregates raw trades into volume stat windows.
type VolumeStore interface {
	AggregateVolumeStats(ctx context.Context, periodStart, periodEnd time.Time, periodType types.PeriodType) (int64, error)
}

// VolumeAggregator rolls trades up into hourly windows, plus a daily window
// for the previous UTC day on the first run after midnight, plus a weekly
// window when that midnight starts a new ISO week.
type VolumeAggregator struct {
	store  VolumeStore
	logger *zap.Logger
}

// VolumeAggregatorConfig holds volume aggregator configuration.
type VolumeAggregatorConfig struct {
	Store  VolumeStore
	Logger *zap.Logger
}

// NewVolumeAggregator creates a volume aggregator.
func NewVolumeAggregator(cfg *VolumeAggregatorConfig) (*VolumeAggregator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &VolumeAggregator{store: cfg.Store, logger: cfg.Logger}, nil
}

// Aggregate rolls up the most recent completed hour. When that hour closed a
// UTC day it also rolls up the completed day, and when the day closed an ISO
// week (Monday 00:00 UTC) the completed week too. All writes are idempotent,
// so a re-run after a failed job is safe.
func (a *VolumeAggregator) Aggregate(ctx context.Context, now time.Time) (int, error) {
	hourEnd := now.UTC().Truncate(time.Hour)
	hourStart := hourEnd.Add(-time.Hour)

	rows, err := a.store.AggregateVolumeStats(ctx, hourStart, hourEnd, types.PeriodHour)
	if err != nil {
		return 0, fmt.Errorf("aggregate hour %s: %w", hourStart.Format(time.RFC3339), err)
	}
	total := rows

	if hourEnd.Hour() == 0 {
		dayEnd := hourEnd
		dayStart := dayEnd.AddDate(0, 0, -1)
		rows, err := a.store.AggregateVolumeStats(ctx, dayStart, dayEnd, types.PeriodDay)
		if err != nil {
			return int(total), fmt.Errorf("aggregate day %s: %w", dayStart.Format("2006-01-02"), err)
		}
		total += rows

		if dayEnd.Weekday() == time.Monday {
			weekStart := dayEnd.AddDate(0, 0, -7)
			rows, err := a.store.AggregateVolumeStats(ctx, weekStart, dayEnd, types.PeriodWeek)
			if err != nil {
				return int(total), fmt.Errorf("aggregate week %s: %w", weekStart.Format("2006-01-02"), err)
			}
			total += rows
		}
	}

	a.logger.Info("volume-aggregated",
		zap.Time("hour-start", hourStart),
		zap.Int64("rows", total))
	return int(total), nil
}
