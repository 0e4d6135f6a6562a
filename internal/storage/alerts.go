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

// InsertAlertTx inserts an alert inside the analyzer's transaction, under a
// savepoint. A unique violation on the active dedup index means another run
// created the same alert concurrently; that is reported as created=false,
// not an error, and the enclosing transaction stays usable.
func (s *Store) InsertAlertTx(ctx context.Context, tx *sql.Tx, alert *types.Alert) (bool, error) {
	data, err := types.MarshalAlertData(alert.Data)
	if err != nil {
		return false, err
	}

	var related any
	if len(alert.RelatedMarketIDs) > 0 {
		raw, err := json.Marshal(alert.RelatedMarketIDs)
		if err != nil {
			return false, fmt.Errorf("marshal related market ids: %w", err)
		}
		related = raw
	}

	var marketID any
	if alert.MarketID != "" {
		marketID = alert.MarketID
	}

	created := true
	err = withSavepoint(ctx, tx, "alert_insert", func() error {
		return tx.QueryRowContext(ctx, `
			INSERT INTO alerts (
				kind, severity, title, description, market_id, related_market_ids,
				dedup_key, data, is_active, created_at, expires_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $10)
			RETURNING id`,
			alert.Kind, alert.Severity, alert.Title, alert.Description,
			marketID, related, alert.DedupKey, data, alert.CreatedAt, alert.ExpiresAt,
		).Scan(&alert.ID)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return created, nil
}

// ActiveDedupKeysTx returns the dedup keys of currently active alerts of one
// kind, for cheap pre-insert suppression. The unique index remains the
// authority under races.
func (s *Store) ActiveDedupKeysTx(ctx context.Context, tx *sql.Tx, kind types.AlertKind) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT dedup_key FROM alerts WHERE is_active AND kind = $1`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query active dedup keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan dedup key: %w", err)
		}
		keys[key] = true
	}
	return keys, rows.Err()
}

// AlertFilter narrows ListAlerts.
type AlertFilter struct {
	Kind     string
	Severity string
	MarketID string
	Active   *bool
	Limit    int
	Offset   int
}

const alertColumns = `id, kind, severity, title, description, market_id,
	related_market_ids, dedup_key, data, is_active, created_at, dismissed_at, expires_at`

// ListAlerts returns alerts matching the filter, newest first.
func (s *Store) ListAlerts(ctx context.Context, f *AlertFilter) ([]*types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Kind != "" {
		query += ` AND kind = ` + arg(f.Kind)
	}
	if f.Severity != "" {
		query += ` AND severity = ` + arg(f.Severity)
	}
	if f.MarketID != "" {
		query += ` AND market_id = ` + arg(f.MarketID)
	}
	if f.Active != nil {
		query += ` AND is_active = ` + arg(*f.Active)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(f.Offset)

	return s.queryAlerts(ctx, query, args...)
}

// ActiveCrossMarketAlerts returns active arbitrage alerts whose data tag is
// one of the cross-market relationship kinds. Serves the opportunities
// endpoint.
func (s *Store) ActiveCrossMarketAlerts(ctx context.Context) ([]*types.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE is_active AND kind = $1 AND data->>'type' = ANY($2)
		ORDER BY created_at DESC`
	return s.queryAlerts(ctx, query, string(types.AlertArbitrage), pq.Array(types.CrossMarketTags()))
}

// DismissAlert deactivates one alert by id.
func (s *Store) DismissAlert(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET is_active = FALSE, dismissed_at = $2
		WHERE id = $1 AND is_active`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("dismiss alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ActiveSignalKinds returns, for each requested market, the distinct active
// alert kinds targeting it either directly or through its related-market
// list. The containment check uses the native JSON-array path by default and
// a textual match on the serialized list otherwise.
func (s *Store) ActiveSignalKinds(ctx context.Context, marketIDs []string) (map[string]map[string]bool, error) {
	result := make(map[string]map[string]bool, len(marketIDs))
	if len(marketIDs) == 0 {
		return result, nil
	}

	var (
		query string
		args  []any
	)
	if s.nativeContainment {
		query = `SELECT kind, market_id, related_market_ids FROM alerts
			WHERE is_active AND (market_id = ANY($1)
				OR (related_market_ids IS NOT NULL AND related_market_ids ?| $2))`
		args = []any{pq.Array(marketIDs), pq.Array(marketIDs)}
	} else {
		patterns := make([]string, len(marketIDs))
		for i, id := range marketIDs {
			patterns[i] = `%"` + id + `"%`
		}
		query = `SELECT kind, market_id, related_market_ids FROM alerts
			WHERE is_active AND (market_id = ANY($1)
				OR (related_market_ids IS NOT NULL AND related_market_ids::text LIKE ANY($2)))`
		args = []any{pq.Array(marketIDs), pq.Array(patterns)}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signal kinds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	requested := make(map[string]bool, len(marketIDs))
	for _, id := range marketIDs {
		requested[id] = true
	}

	add := func(marketID, kind string) {
		if !requested[marketID] {
			return
		}
		if result[marketID] == nil {
			result[marketID] = make(map[string]bool)
		}
		result[marketID][kind] = true
	}

	for rows.Next() {
		var (
			kind     string
			marketID sql.NullString
			related  []byte
		)
		if err := rows.Scan(&kind, &marketID, &related); err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		if marketID.Valid {
			add(marketID.String, kind)
		}
		if len(related) > 0 {
			var ids []string
			if err := json.Unmarshal(related, &ids); err == nil {
				for _, id := range ids {
					add(id, kind)
				}
			}
		}
	}
	return result, rows.Err()
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...any) ([]*types.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []*types.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func scanAlert(rows *sql.Rows) (*types.Alert, error) {
	var (
		a           types.Alert
		marketID    sql.NullString
		related     []byte
		data        []byte
		dismissedAt sql.NullTime
		expiresAt   sql.NullTime
	)
	err := rows.Scan(&a.ID, &a.Kind, &a.Severity, &a.Title, &a.Description,
		&marketID, &related, &a.DedupKey, &data, &a.IsActive, &a.CreatedAt,
		&dismissedAt, &expiresAt)
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	if marketID.Valid {
		a.MarketID = marketID.String
	}
	if len(related) > 0 {
		if err := json.Unmarshal(related, &a.RelatedMarketIDs); err != nil {
			return nil, fmt.Errorf("unmarshal related market ids: %w", err)
		}
	}
	if len(data) > 0 {
		a.Data, err = types.UnmarshalAlertData(data)
		if err != nil {
			return nil, err
		}
	}
	if dismissedAt.Valid {
		ts := dismissedAt.Time.UTC()
		a.DismissedAt = &ts
	}
	if expiresAt.Valid {
		ts := expiresAt.Time.UTC()
		a.ExpiresAt = &ts
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
