package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Store provides typed persistence over PostgreSQL for markets, order-book
// snapshots, trades, alerts, relationships, volume stats, and job runs.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	// nativeContainment selects the JSON-array containment path. When false,
	// related-market lookups fall back to a textual match on the serialized
	// list.
	nativeContainment bool
}

// Config holds Store configuration.
type Config struct {
	DatabaseURL  string
	MaxOpenConns int // defaults to 15 (pool of 5 with overflow 10)
	MaxIdleConns int // defaults to 5
	Logger       *zap.Logger
}

// New opens a connection pool and verifies connectivity.
func New(cfg *Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 15
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 5
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-store-connected",
		zap.Int("max-open-conns", maxOpen))

	return &Store{
		db:                db,
		logger:            cfg.Logger,
		nativeContainment: true,
	}, nil
}

// Migrate applies the schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		_, err := s.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	s.logger.Info("schema-migrated", zap.Int("statements", len(schemaStatements)))
	return nil
}

// WithTx runs fn inside a transaction, committing on nil and rolling back on
// error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	err = fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// withSavepoint runs fn inside a savepoint so a failure rolls back only the
// nested work, leaving the enclosing transaction usable.
func withSavepoint(ctx context.Context, tx *sql.Tx, name string, fn func() error) error {
	_, err := tx.ExecContext(ctx, "SAVEPOINT "+name)
	if err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}

	err = fn()
	if err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint %s: %w", name, rbErr)
		}
		return err
	}

	_, err = tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	if err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.logger.Info("closing-postgres-store")
	return s.db.Close()
}
