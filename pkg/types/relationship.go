package types

import "time"

// RelationshipKind classifies an edge between two markets.
type RelationshipKind string

const (
	RelMutuallyExclusive RelationshipKind = "mutually_exclusive"
	RelConditional       RelationshipKind = "conditional"
	RelTimeSequence      RelationshipKind = "time_sequence"
	RelSubset            RelationshipKind = "subset"
)

// MarketRelationship is a declared edge between two markets. Semantics per
// kind: mutually_exclusive edges share a GroupID and at most one member can
// resolve yes; conditional means the child requires the parent; time_sequence
// has the earlier market as parent; subset has the general market as parent.
// (Parent, Child, Kind) is unique.
type MarketRelationship struct {
	ID             int64            `json:"id"`
	ParentMarketID string           `json:"parent_market_id"`
	ChildMarketID  string           `json:"child_market_id"`
	Kind           RelationshipKind `json:"kind"`
	GroupID        string           `json:"group_id,omitempty"`
	Confidence     float64          `json:"confidence"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// RelationshipCandidate is a heuristic proposal. It is never persisted by
// the detector; confirmation is a separate manual operation.
type RelationshipCandidate struct {
	Kind       RelationshipKind `json:"kind"`
	MarketIDs  []string         `json:"market_ids"` // parent first for directed kinds
	GroupID    string           `json:"group_id,omitempty"`
	Confidence float64          `json:"confidence"`
	Reason     string           `json:"reason"`
}
