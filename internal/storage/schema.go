package storage

// schemaStatements is the idempotent DDL for all tables and indexes.
//
//nolint:gochecknoglobals // schema definition
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS markets (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		end_date TIMESTAMP,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		closed BOOLEAN NOT NULL DEFAULT FALSE,
		accepting_orders BOOLEAN NOT NULL DEFAULT FALSE,
		enable_order_book BOOLEAN NOT NULL DEFAULT FALSE,
		volume DOUBLE PRECISION NOT NULL DEFAULT 0,
		liquidity DOUBLE PRECISION NOT NULL DEFAULT 0,
		outcomes JSONB NOT NULL DEFAULT '[]',
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_markets_enabled ON markets (enable_order_book) WHERE enable_order_book`,

	`CREATE TABLE IF NOT EXISTS order_book_snapshots (
		id BIGSERIAL PRIMARY KEY,
		token_id TEXT NOT NULL,
		market_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		best_bid DOUBLE PRECISION NOT NULL DEFAULT 0,
		best_ask DOUBLE PRECISION NOT NULL DEFAULT 0,
		spread DOUBLE PRECISION NOT NULL DEFAULT 0,
		spread_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		mid_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		bid_depth_1pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		ask_depth_1pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		bid_depth_5pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		ask_depth_5pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		imbalance DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_token_ts ON order_book_snapshots (token_id, timestamp)`,

	`CREATE TABLE IF NOT EXISTS order_book_latest_raw (
		token_id TEXT PRIMARY KEY,
		market_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		bids JSONB NOT NULL DEFAULT '[]',
		asks JSONB NOT NULL DEFAULT '[]'
	)`,

	`CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		token_id TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		size DOUBLE PRECISION NOT NULL,
		side TEXT NOT NULL DEFAULT '',
		timestamp TIMESTAMP NOT NULL,
		maker TEXT NOT NULL DEFAULT '',
		taker TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_token_ts ON trades (token_id, timestamp)`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		market_id TEXT,
		related_market_ids JSONB,
		dedup_key TEXT NOT NULL,
		data JSONB,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		dismissed_at TIMESTAMP,
		expires_at TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_active_dedup ON alerts (kind, dedup_key) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_active_kind ON alerts (is_active, kind)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_market ON alerts (market_id) WHERE market_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS market_relationships (
		id BIGSERIAL PRIMARY KEY,
		parent_market_id TEXT NOT NULL,
		child_market_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		group_id TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 1,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (parent_market_id, child_market_id, kind)
	)`,

	`CREATE TABLE IF NOT EXISTS volume_stats (
		id BIGSERIAL PRIMARY KEY,
		token_id TEXT NOT NULL,
		period_start TIMESTAMP NOT NULL,
		period_type TEXT NOT NULL,
		total_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
		trade_count INTEGER NOT NULL DEFAULT 0,
		avg_trade_size DOUBLE PRECISION NOT NULL DEFAULT 0,
		open_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		high_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		low_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		close_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		buy_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
		sell_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
		UNIQUE (token_id, period_type, period_start)
	)`,

	`CREATE TABLE IF NOT EXISTS job_runs (
		run_id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		status TEXT NOT NULL,
		error_message TEXT,
		records_processed INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_runs_job_started ON job_runs (job_id, started_at)`,
}
