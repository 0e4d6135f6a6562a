package storage

import (
	"context"
	"fmt"

	"github.com/polyscope/polyscope/pkg/types"
)

// UpsertRelationship inserts a declared edge, updating confidence, group and
// notes when the (parent, child, kind) triple already exists.
func (s *Store) UpsertRelationship(ctx context.Context, rel *types.MarketRelationship) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO market_relationships (
			parent_market_id, child_market_id, kind, group_id, confidence, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (parent_market_id, child_market_id, kind) DO UPDATE SET
			group_id = EXCLUDED.group_id,
			confidence = EXCLUDED.confidence,
			notes = EXCLUDED.notes
		RETURNING id`,
		rel.ParentMarketID, rel.ChildMarketID, string(rel.Kind),
		rel.GroupID, rel.Confidence, rel.Notes, rel.CreatedAt,
	).Scan(&rel.ID)
	if err != nil {
		return fmt.Errorf("upsert relationship: %w", err)
	}
	return nil
}

// ListRelationships returns all declared edges.
func (s *Store) ListRelationships(ctx context.Context) ([]*types.MarketRelationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_market_id, child_market_id, kind, group_id, confidence, notes, created_at
		FROM market_relationships
		ORDER BY kind, group_id, parent_market_id`)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rels []*types.MarketRelationship
	for rows.Next() {
		var rel types.MarketRelationship
		err := rows.Scan(&rel.ID, &rel.ParentMarketID, &rel.ChildMarketID, &rel.Kind,
			&rel.GroupID, &rel.Confidence, &rel.Notes, &rel.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rel.CreatedAt = rel.CreatedAt.UTC()
		rels = append(rels, &rel)
	}
	return rels, rows.Err()
}
