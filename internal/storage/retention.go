package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetentionPolicy bounds the store's growth.
type RetentionPolicy struct {
	SnapshotTTL      time.Duration
	TradeTTL         time.Duration
	InactiveAlertTTL time.Duration

	// Hard row caps; 0 disables the cap for that table.
	MaxSnapshotRows int64
	MaxTradeRows    int64
}

// RetentionReport summarizes one sweep.
type RetentionReport struct {
	AlertsExpired     int64
	SnapshotsDeleted  int64
	TradesDeleted     int64
	AlertsDeleted     int64
	SnapshotsCapped   int64
	TradesCapped      int64
}

// Sweep runs the retention pass in one transaction: expire alerts past their
// expires_at, delete rows past TTL, and enforce hard row caps by deleting the
// oldest rows. Storage reclaim runs separately via Reclaim.
func (s *Store) Sweep(ctx context.Context, policy *RetentionPolicy, now time.Time) (*RetentionReport, error) {
	report := &RetentionReport{}
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var err error

		report.AlertsExpired, err = execCount(ctx, tx, `
			UPDATE alerts SET is_active = FALSE, dismissed_at = $1
			WHERE is_active AND expires_at IS NOT NULL AND expires_at < $1`, now)
		if err != nil {
			return fmt.Errorf("expire alerts: %w", err)
		}

		report.SnapshotsDeleted, err = execCount(ctx, tx,
			`DELETE FROM order_book_snapshots WHERE timestamp < $1`,
			now.Add(-policy.SnapshotTTL))
		if err != nil {
			return fmt.Errorf("delete old snapshots: %w", err)
		}

		report.TradesDeleted, err = execCount(ctx, tx,
			`DELETE FROM trades WHERE timestamp < $1`,
			now.Add(-policy.TradeTTL))
		if err != nil {
			return fmt.Errorf("delete old trades: %w", err)
		}

		report.AlertsDeleted, err = execCount(ctx, tx, `
			DELETE FROM alerts
			WHERE NOT is_active AND created_at < $1`,
			now.Add(-policy.InactiveAlertTTL))
		if err != nil {
			return fmt.Errorf("delete inactive alerts: %w", err)
		}

		if policy.MaxSnapshotRows > 0 {
			report.SnapshotsCapped, err = execCount(ctx, tx, `
				DELETE FROM order_book_snapshots WHERE id IN (
					SELECT id FROM order_book_snapshots
					ORDER BY timestamp DESC OFFSET $1
				)`, policy.MaxSnapshotRows)
			if err != nil {
				return fmt.Errorf("cap snapshot rows: %w", err)
			}
		}

		if policy.MaxTradeRows > 0 {
			report.TradesCapped, err = execCount(ctx, tx, `
				DELETE FROM trades WHERE id IN (
					SELECT id FROM trades
					ORDER BY timestamp DESC OFFSET $1
				)`, policy.MaxTradeRows)
			if err != nil {
				return fmt.Errorf("cap trade rows: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Reclaim runs storage reclamation. Must run outside a transaction.
func (s *Store) Reclaim(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `VACUUM ANALYZE`)
	if err != nil {
		return fmt.Errorf("vacuum analyze: %w", err)
	}
	return nil
}

// TableSizes returns approximate row counts for the swept tables.
func (s *Store) TableSizes(ctx context.Context) (map[string]int64, error) {
	sizes := make(map[string]int64)
	for _, table := range []string{"order_book_snapshots", "trades", "alerts"} {
		var count int64
		// Table names come from the fixed list above, never from input.
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		sizes[table] = count
	}
	return sizes, nil
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// LogSweep emits the per-table summary for one sweep.
func (s *Store) LogSweep(report *RetentionReport, sizes map[string]int64) {
	fields := []zap.Field{
		zap.Int64("alerts-expired", report.AlertsExpired),
		zap.Int64("snapshots-deleted", report.SnapshotsDeleted),
		zap.Int64("trades-deleted", report.TradesDeleted),
		zap.Int64("alerts-deleted", report.AlertsDeleted),
	}
	for table, count := range sizes {
		fields = append(fields, zap.Int64(table+"-rows", count))
	}
	s.logger.Info("retention-sweep-complete", fields...)
}
