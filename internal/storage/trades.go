package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

const tradeInsert = `
	INSERT INTO trades (id, token_id, price, size, side, timestamp, maker, taker)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
`

// ExistingTradeIDs returns which of the given ids are already stored, in one
// query.
func (s *Store) ExistingTradeIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM trades WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query existing trade ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	existing := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan trade id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// InsertTrades bulk-inserts with conflict-ignore semantics and returns the
// number of new rows. On bulk failure it falls back to per-row inserts under
// savepoints so one bad row cannot poison the batch.
func (s *Store) InsertTrades(ctx context.Context, trades []*types.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	var inserted int
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		bulkErr := withSavepoint(ctx, tx, "bulk_trades", func() error {
			n, err := insertTradesBulk(ctx, tx, trades)
			inserted = n
			return err
		})
		if bulkErr == nil {
			return nil
		}

		s.logger.Warn("bulk-trade-insert-failed",
			zap.Int("trades", len(trades)),
			zap.Error(bulkErr))

		inserted = 0
		for i, t := range trades {
			name := fmt.Sprintf("trade_%d", i)
			rowErr := withSavepoint(ctx, tx, name, func() error {
				res, err := tx.ExecContext(ctx, tradeInsert,
					t.ID, t.TokenID, t.Price, t.Size, t.Side, t.Timestamp, t.Maker, t.Taker)
				if err != nil {
					return err
				}
				if n, _ := res.RowsAffected(); n > 0 {
					inserted++
				}
				return nil
			})
			if rowErr != nil {
				s.logger.Warn("trade-insert-row-failed",
					zap.String("trade-id", t.ID),
					zap.Error(rowErr))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func insertTradesBulk(ctx context.Context, tx *sql.Tx, trades []*types.Trade) (int, error) {
	stmt, err := tx.PrepareContext(ctx, tradeInsert)
	if err != nil {
		return 0, fmt.Errorf("prepare trade insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var inserted int
	for _, t := range trades {
		res, err := stmt.ExecContext(ctx,
			t.ID, t.TokenID, t.Price, t.Size, t.Side, t.Timestamp, t.Maker, t.Taker)
		if err != nil {
			return inserted, fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// TradeWindowStats aggregates one token's activity across the analyzer
// windows: baseline [now-24h, now-1h), recent [now-1h, now), flash
// [now-15m, now).
type TradeWindowStats struct {
	TokenID        string
	BaselineVolume float64
	BaselineCount  int
	RecentVolume   float64
	FlashVolume    float64
	LatestTradeAt  time.Time
}

// TradeWindows computes all analyzer windows per token in one grouped query.
func (s *Store) TradeWindows(ctx context.Context, tokens []string, now time.Time) (map[string]*TradeWindowStats, error) {
	if len(tokens) == 0 {
		return map[string]*TradeWindowStats{}, nil
	}

	baselineStart := now.Add(-24 * time.Hour)
	baselineEnd := now.Add(-time.Hour)
	flashStart := now.Add(-15 * time.Minute)

	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id,
			COALESCE(SUM(size) FILTER (WHERE timestamp >= $2 AND timestamp < $3), 0) AS baseline_volume,
			COUNT(*) FILTER (WHERE timestamp >= $2 AND timestamp < $3) AS baseline_count,
			COALESCE(SUM(size) FILTER (WHERE timestamp >= $3 AND timestamp < $4), 0) AS recent_volume,
			COALESCE(SUM(size) FILTER (WHERE timestamp >= $5 AND timestamp < $4), 0) AS flash_volume,
			MAX(timestamp) AS latest_trade_at
		FROM trades
		WHERE token_id = ANY($1) AND timestamp >= $2 AND timestamp < $4
		GROUP BY token_id`,
		pq.Array(tokens), baselineStart, baselineEnd, now, flashStart)
	if err != nil {
		return nil, fmt.Errorf("query trade windows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byToken := make(map[string]*TradeWindowStats)
	for rows.Next() {
		var (
			stats  TradeWindowStats
			latest sql.NullTime
		)
		err := rows.Scan(&stats.TokenID, &stats.BaselineVolume, &stats.BaselineCount,
			&stats.RecentVolume, &stats.FlashVolume, &latest)
		if err != nil {
			return nil, fmt.Errorf("scan trade window: %w", err)
		}
		if latest.Valid {
			stats.LatestTradeAt = latest.Time.UTC()
		}
		byToken[stats.TokenID] = &stats
	}
	return byToken, rows.Err()
}

// LatestTradeTimestamp returns the newest trade time across all tokens, zero
// when the table is empty. Used by the health endpoint.
func (s *Store) LatestTradeTimestamp(ctx context.Context) (time.Time, error) {
	var ts sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM trades`).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest trade timestamp: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time.UTC(), nil
}
