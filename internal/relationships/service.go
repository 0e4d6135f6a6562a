package relationships

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

// Store is the persistence surface of the relationship service.
type Store interface {
	ActiveMarkets(ctx context.Context) ([]*types.Market, error)
	UpsertRelationship(ctx context.Context, rel *types.MarketRelationship) error
	ListRelationships(ctx context.Context) ([]*types.MarketRelationship, error)
}

// Service exposes candidate detection over active markets and manual
// confirmation of candidates into declared edges.
type Service struct {
	store    Store
	detector *Detector
	logger   *zap.Logger
}

// ServiceConfig holds relationship service configuration.
type ServiceConfig struct {
	Store    Store
	Detector *Detector
	Logger   *zap.Logger
}

// NewService creates a relationship service.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Detector == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Service{store: cfg.Store, detector: cfg.Detector, logger: cfg.Logger}, nil
}

// DetectCandidates runs the heuristics over all active markets.
func (s *Service) DetectCandidates(ctx context.Context) ([]*types.RelationshipCandidate, error) {
	markets, err := s.store.ActiveMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active markets: %w", err)
	}
	return s.detector.Detect(markets), nil
}

// Confirm turns a candidate into declared edges. Groups are stored as edges
// from the first member to every other member, all sharing the group id;
// pairs become a single parent-to-child edge.
func (s *Service) Confirm(ctx context.Context, candidate *types.RelationshipCandidate) error {
	if len(candidate.MarketIDs) < 2 {
		return fmt.Errorf("candidate needs at least two markets")
	}

	now := time.Now().UTC()
	parent := candidate.MarketIDs[0]
	for _, child := range candidate.MarketIDs[1:] {
		rel := &types.MarketRelationship{
			ParentMarketID: parent,
			ChildMarketID:  child,
			Kind:           candidate.Kind,
			GroupID:        candidate.GroupID,
			Confidence:     candidate.Confidence,
			Notes:          candidate.Reason,
			CreatedAt:      now,
		}
		if err := s.store.UpsertRelationship(ctx, rel); err != nil {
			return fmt.Errorf("confirm %s edge %s -> %s: %w", candidate.Kind, parent, child, err)
		}
	}

	s.logger.Info("relationship-confirmed",
		zap.String("kind", string(candidate.Kind)),
		zap.Strings("markets", candidate.MarketIDs),
		zap.String("group-id", candidate.GroupID))
	return nil
}

// List returns all declared edges.
func (s *Service) List(ctx context.Context) ([]*types.MarketRelationship, error) {
	return s.store.ListRelationships(ctx)
}
