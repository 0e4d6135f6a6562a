package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/polyscope/polyscope/pkg/types"
)

// AggregateVolumeStats computes per-token VolumeStats rows for the window
// [periodStart, periodEnd) directly in SQL, with conflict-ignore on the
// unique window so re-aggregation is idempotent. Returns the number of new
// rows.
func (s *Store) AggregateVolumeStats(ctx context.Context, periodStart, periodEnd time.Time, periodType types.PeriodType) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO volume_stats (
			token_id, period_start, period_type, total_volume, trade_count,
			avg_trade_size, open_price, high_price, low_price, close_price,
			buy_volume, sell_volume
		)
		SELECT token_id, $1, $2,
			SUM(size),
			COUNT(*),
			AVG(size),
			(ARRAY_AGG(price ORDER BY timestamp ASC))[1],
			MAX(price),
			MIN(price),
			(ARRAY_AGG(price ORDER BY timestamp DESC))[1],
			COALESCE(SUM(size) FILTER (WHERE side = 'buy'), 0),
			COALESCE(SUM(size) FILTER (WHERE side = 'sell'), 0)
		FROM trades
		WHERE timestamp >= $1 AND timestamp < $3
		GROUP BY token_id
		ON CONFLICT (token_id, period_type, period_start) DO NOTHING`,
		periodStart, string(periodType), periodEnd)
	if err != nil {
		return 0, fmt.Errorf("aggregate volume stats: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// VolumeStatsForToken returns stored windows for one token, newest first.
func (s *Store) VolumeStatsForToken(ctx context.Context, tokenID string, periodType types.PeriodType, limit int) ([]*types.VolumeStats, error) {
	if limit <= 0 {
		limit = 24
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token_id, period_start, period_type, total_volume, trade_count,
			avg_trade_size, open_price, high_price, low_price, close_price,
			buy_volume, sell_volume
		FROM volume_stats
		WHERE token_id = $1 AND period_type = $2
		ORDER BY period_start DESC
		LIMIT $3`,
		tokenID, string(periodType), limit)
	if err != nil {
		return nil, fmt.Errorf("query volume stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []*types.VolumeStats
	for rows.Next() {
		var v types.VolumeStats
		err := rows.Scan(&v.ID, &v.TokenID, &v.PeriodStart, &v.PeriodType,
			&v.TotalVolume, &v.TradeCount, &v.AvgTradeSize,
			&v.OpenPrice, &v.HighPrice, &v.LowPrice, &v.ClosePrice,
			&v.BuyVolume, &v.SellVolume)
		if err != nil {
			return nil, fmt.Errorf("scan volume stats: %w", err)
		}
		v.PeriodStart = v.PeriodStart.UTC()
		stats = append(stats, &v)
	}
	return stats, rows.Err()
}
