package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/polyscope/polyscope/pkg/types"
)

// InsertSnapshot appends one historical metrics record.
func (s *Store) InsertSnapshot(ctx context.Context, snap *types.OrderBookSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_book_snapshots (
			token_id, market_id, timestamp, best_bid, best_ask, spread, spread_pct,
			mid_price, bid_depth_1pct, ask_depth_1pct, bid_depth_5pct, ask_depth_5pct, imbalance
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		snap.TokenID, snap.MarketID, snap.Timestamp, snap.BestBid, snap.BestAsk,
		snap.Spread, snap.SpreadPct, snap.MidPrice,
		snap.BidDepth1Pct, snap.AskDepth1Pct, snap.BidDepth5Pct, snap.AskDepth5Pct,
		snap.Imbalance)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// UpsertLatestRaw replaces the stored ladder for one token.
func (s *Store) UpsertLatestRaw(ctx context.Context, raw *types.OrderBookLatestRaw) error {
	bids, err := raw.BidsJSON()
	if err != nil {
		return fmt.Errorf("marshal bids: %w", err)
	}
	asks, err := raw.AsksJSON()
	if err != nil {
		return fmt.Errorf("marshal asks: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO order_book_latest_raw (token_id, market_id, timestamp, bids, asks)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_id) DO UPDATE SET
			market_id = EXCLUDED.market_id,
			timestamp = EXCLUDED.timestamp,
			bids = EXCLUDED.bids,
			asks = EXCLUDED.asks`,
		raw.TokenID, raw.MarketID, raw.Timestamp, bids, asks)
	if err != nil {
		return fmt.Errorf("upsert latest raw: %w", err)
	}
	return nil
}

// LatestRaw returns the stored ladder for one token, nil when absent.
func (s *Store) LatestRaw(ctx context.Context, tokenID string) (*types.OrderBookLatestRaw, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token_id, market_id, timestamp, bids, asks
		FROM order_book_latest_raw WHERE token_id = $1`, tokenID)

	var (
		raw  types.OrderBookLatestRaw
		bids []byte
		asks []byte
	)
	err := row.Scan(&raw.TokenID, &raw.MarketID, &raw.Timestamp, &bids, &asks)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan latest raw: %w", err)
	}
	if err := json.Unmarshal(bids, &raw.Bids); err != nil {
		return nil, fmt.Errorf("unmarshal bids: %w", err)
	}
	if err := json.Unmarshal(asks, &raw.Asks); err != nil {
		return nil, fmt.Errorf("unmarshal asks: %w", err)
	}
	raw.Timestamp = raw.Timestamp.UTC()
	return &raw, nil
}

const snapshotColumns = `id, token_id, market_id, timestamp, best_bid, best_ask,
	spread, spread_pct, mid_price, bid_depth_1pct, ask_depth_1pct,
	bid_depth_5pct, ask_depth_5pct, imbalance`

// LatestSnapshots returns the newest snapshot per token in one query.
func (s *Store) LatestSnapshots(ctx context.Context, tokens []string) (map[string]*types.OrderBookSnapshot, error) {
	if len(tokens) == 0 {
		return map[string]*types.OrderBookSnapshot{}, nil
	}
	query := `SELECT DISTINCT ON (token_id) ` + snapshotColumns + `
		FROM order_book_snapshots
		WHERE token_id = ANY($1)
		ORDER BY token_id, timestamp DESC`
	return s.querySnapshotsByToken(ctx, query, pq.Array(tokens))
}

// OldestSnapshotsSince returns the oldest snapshot per token within the
// window starting at since. Used for pullback comparison.
func (s *Store) OldestSnapshotsSince(ctx context.Context, tokens []string, since time.Time) (map[string]*types.OrderBookSnapshot, error) {
	if len(tokens) == 0 {
		return map[string]*types.OrderBookSnapshot{}, nil
	}
	query := `SELECT DISTINCT ON (token_id) ` + snapshotColumns + `
		FROM order_book_snapshots
		WHERE token_id = ANY($1) AND timestamp >= $2
		ORDER BY token_id, timestamp ASC`
	return s.querySnapshotsByToken(ctx, query, pq.Array(tokens), since)
}

func (s *Store) querySnapshotsByToken(ctx context.Context, query string, args ...any) (map[string]*types.OrderBookSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byToken := make(map[string]*types.OrderBookSnapshot)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		byToken[snap.TokenID] = snap
	}
	return byToken, rows.Err()
}

func scanSnapshot(rows *sql.Rows) (*types.OrderBookSnapshot, error) {
	var snap types.OrderBookSnapshot
	err := rows.Scan(&snap.ID, &snap.TokenID, &snap.MarketID, &snap.Timestamp,
		&snap.BestBid, &snap.BestAsk, &snap.Spread, &snap.SpreadPct, &snap.MidPrice,
		&snap.BidDepth1Pct, &snap.AskDepth1Pct, &snap.BidDepth5Pct, &snap.AskDepth5Pct,
		&snap.Imbalance)
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.Timestamp = snap.Timestamp.UTC()
	return &snap, nil
}

// LatestSnapshotTimestamp returns the newest snapshot time across all tokens,
// zero when the table is empty. Used by the health endpoint.
func (s *Store) LatestSnapshotTimestamp(ctx context.Context) (time.Time, error) {
	var ts sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM order_book_snapshots`).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest snapshot timestamp: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time.UTC(), nil
}
