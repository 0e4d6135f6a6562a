package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

const marketUpsert = `
	INSERT INTO markets (
		id, question, category, end_date, active, closed,
		accepting_orders, enable_order_book, volume, liquidity, outcomes, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		question = EXCLUDED.question,
		category = EXCLUDED.category,
		end_date = EXCLUDED.end_date,
		active = EXCLUDED.active,
		closed = EXCLUDED.closed,
		accepting_orders = EXCLUDED.accepting_orders,
		enable_order_book = EXCLUDED.enable_order_book,
		volume = EXCLUDED.volume,
		liquidity = EXCLUDED.liquidity,
		outcomes = EXCLUDED.outcomes,
		updated_at = EXCLUDED.updated_at
`

// ReplaceActiveMarkets resets every stored order-book flag, then upserts the
// given markets so only currently tradeable ones come back enabled. On bulk
// failure it retries row by row under savepoints after preloading existing
// ids.
func (s *Store) ReplaceActiveMarkets(ctx context.Context, markets []*types.Market) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE markets SET enable_order_book = FALSE WHERE enable_order_book`)
		if err != nil {
			return fmt.Errorf("reset order book flags: %w", err)
		}

		err = withSavepoint(ctx, tx, "bulk_markets", func() error {
			return upsertMarketsBulk(ctx, tx, markets)
		})
		if err == nil {
			return nil
		}

		s.logger.Warn("bulk-market-upsert-failed",
			zap.Int("markets", len(markets)),
			zap.Error(err))
		return upsertMarketsRowByRow(ctx, tx, markets, s.logger)
	})
}

func upsertMarketsBulk(ctx context.Context, tx *sql.Tx, markets []*types.Market) error {
	stmt, err := tx.PrepareContext(ctx, marketUpsert)
	if err != nil {
		return fmt.Errorf("prepare market upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, m := range markets {
		outcomes, err := json.Marshal(m.Outcomes)
		if err != nil {
			return fmt.Errorf("marshal outcomes for %s: %w", m.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			m.ID, m.Question, m.Category, m.EndDate, m.Active, m.Closed,
			m.AcceptingOrders, m.Tradeable(), m.Volume, m.Liquidity, outcomes, now)
		if err != nil {
			return fmt.Errorf("upsert market %s: %w", m.ID, err)
		}
	}
	return nil
}

// upsertMarketsRowByRow preloads existing ids in one query, then upserts each
// market under its own savepoint so one bad record cannot poison the batch.
func upsertMarketsRowByRow(ctx context.Context, tx *sql.Tx, markets []*types.Market, logger *zap.Logger) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM markets`)
	if err != nil {
		return fmt.Errorf("preload market ids: %w", err)
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan market id: %w", err)
		}
		existing[id] = true
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close market id rows: %w", err)
	}

	now := time.Now().UTC()
	var failed int
	for i, m := range markets {
		outcomes, err := json.Marshal(m.Outcomes)
		if err != nil {
			failed++
			continue
		}
		name := fmt.Sprintf("market_%d", i)
		err = withSavepoint(ctx, tx, name, func() error {
			_, execErr := tx.ExecContext(ctx, marketUpsert,
				m.ID, m.Question, m.Category, m.EndDate, m.Active, m.Closed,
				m.AcceptingOrders, m.Tradeable(), m.Volume, m.Liquidity, outcomes, now)
			return execErr
		})
		if err != nil {
			failed++
			logger.Warn("market-upsert-row-failed",
				zap.String("market-id", m.ID),
				zap.Bool("existing", existing[m.ID]),
				zap.Error(err))
		}
	}

	logger.Info("markets-upserted-row-by-row",
		zap.Int("total", len(markets)),
		zap.Int("failed", failed))
	return nil
}

const marketColumns = `id, question, category, end_date, active, closed,
	accepting_orders, enable_order_book, volume, liquidity, outcomes, updated_at`

// TradeableMarkets returns active markets with order books enabled.
func (s *Store) TradeableMarkets(ctx context.Context) ([]*types.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE active AND enable_order_book`
	return s.queryMarkets(ctx, query)
}

// ActiveMarkets returns all active, non-closed markets.
func (s *Store) ActiveMarkets(ctx context.Context) ([]*types.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE active AND NOT closed`
	return s.queryMarkets(ctx, query)
}

// MarketsByIDs returns the markets for the given ids.
func (s *Store) MarketsByIDs(ctx context.Context, ids []string) (map[string]*types.Market, error) {
	if len(ids) == 0 {
		return map[string]*types.Market{}, nil
	}
	query := `SELECT ` + marketColumns + ` FROM markets WHERE id = ANY($1)`
	markets, err := s.queryMarkets(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Market, len(markets))
	for _, m := range markets {
		byID[m.ID] = m
	}
	return byID, nil
}

// GetMarket returns one market or nil when absent.
func (s *Store) GetMarket(ctx context.Context, id string) (*types.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE id = $1`
	markets, err := s.queryMarkets(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, nil
	}
	return markets[0], nil
}

func (s *Store) queryMarkets(ctx context.Context, query string, args ...any) ([]*types.Market, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query markets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var markets []*types.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func scanMarket(rows *sql.Rows) (*types.Market, error) {
	var (
		m           types.Market
		endDate     sql.NullTime
		outcomesRaw []byte
	)
	err := rows.Scan(&m.ID, &m.Question, &m.Category, &endDate, &m.Active, &m.Closed,
		&m.AcceptingOrders, &m.EnableOrderBook, &m.Volume, &m.Liquidity, &outcomesRaw, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan market: %w", err)
	}
	if endDate.Valid {
		ts := endDate.Time.UTC()
		m.EndDate = &ts
	}
	if len(outcomesRaw) > 0 {
		var outcomes []types.Outcome
		if err := json.Unmarshal(outcomesRaw, &outcomes); err != nil {
			return nil, fmt.Errorf("unmarshal outcomes for %s: %w", m.ID, err)
		}
		m.Outcomes = outcomes
	}
	return &m, nil
}

// TrackedTokens returns the (token, market) pairs of all tradeable markets.
func (s *Store) TrackedTokens(ctx context.Context) ([]TokenRef, error) {
	markets, err := s.TradeableMarkets(ctx)
	if err != nil {
		return nil, err
	}

	var refs []TokenRef
	for _, m := range markets {
		for _, o := range m.Outcomes {
			refs = append(refs, TokenRef{TokenID: o.TokenID, MarketID: m.ID, Outcome: o.Name})
		}
	}
	return refs, nil
}

// TokenRef joins a token back to its market and outcome name.
type TokenRef struct {
	TokenID  string
	MarketID string
	Outcome  string
}

// TokenIDs extracts the token ids from a reference list.
func TokenIDs(refs []TokenRef) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.TokenID)
	}
	return ids
}
