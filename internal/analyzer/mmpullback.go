package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/pkg/types"
)

const (
	// pullbackWindow is how far back the comparison baseline may reach.
	pullbackWindow = 4 * time.Hour

	// pullbackMinWindow is the minimum spacing between the compared
	// snapshots.
	pullbackMinWindow = time.Hour

	// pullbackSnapshotMaxAge bounds how stale the newest snapshot may be.
	pullbackSnapshotMaxAge = 30 * time.Minute

	// pullbackDropThreshold is the minimum worst-level depth drop.
	pullbackDropThreshold = 0.5
)

// PullbackAnalyzer detects liquidity withdrawal: a steep drop in combined
// bid+ask depth between the oldest snapshot in the comparison window and the
// newest one.
type PullbackAnalyzer struct {
	store  Store
	logger *zap.Logger
}

// PullbackAnalyzerConfig holds pullback analyzer configuration.
type PullbackAnalyzerConfig struct {
	Store  Store
	Logger *zap.Logger
}

// NewPullbackAnalyzer creates a market-maker pullback analyzer.
func NewPullbackAnalyzer(cfg *PullbackAnalyzerConfig) (*PullbackAnalyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &PullbackAnalyzer{store: cfg.Store, logger: cfg.Logger}, nil
}

// Name implements Analyzer.
func (a *PullbackAnalyzer) Name() string { return "mm_pullback" }

// Analyze compares each token's oldest in-window snapshot against its newest
// and alerts on the worst depth drop across levels.
func (a *PullbackAnalyzer) Analyze(ctx context.Context, now time.Time) (int, error) {
	refs, err := a.store.TrackedTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("load tracked tokens: %w", err)
	}
	tokens := storage.TokenIDs(refs)

	newest, err := a.store.LatestSnapshots(ctx, tokens)
	if err != nil {
		return 0, fmt.Errorf("load latest snapshots: %w", err)
	}
	oldest, err := a.store.OldestSnapshotsSince(ctx, tokens, now.Add(-pullbackWindow))
	if err != nil {
		return 0, fmt.Errorf("load oldest snapshots: %w", err)
	}

	var candidates []*candidateAlert
	for _, ref := range refs {
		data := DetectPullback(oldest[ref.TokenID], newest[ref.TokenID], now)
		if data == nil {
			continue
		}
		data.TokenID = ref.TokenID

		candidates = append(candidates, newCandidate(&types.Alert{
			Kind:     types.AlertMMPullback,
			Severity: types.SeverityHigh,
			Title:    fmt.Sprintf("Liquidity pullback on %s", ref.Outcome),
			Description: fmt.Sprintf("depth at %s fell %.0f%% over %.1fh ($%.0f to $%.0f)",
				data.DepthLevel, data.DropPct*100, data.WindowHours, data.OldDepth, data.NewDepth),
			MarketID:  ref.MarketID,
			DedupKey:  types.SingleMarketDedupKey(ref.MarketID, ref.TokenID),
			Data:      data,
			CreatedAt: now,
		}))
	}

	return persistAlerts(ctx, a.store, types.AlertMMPullback, candidates)
}

// DetectPullback evaluates one token's snapshot pair. Snapshots store depth
// at the 1% and 5% levels; the worst drop across those levels must reach the
// threshold. Returns nil when no pullback is present.
func DetectPullback(old, current *types.OrderBookSnapshot, now time.Time) *types.MMPullbackData {
	if old == nil || current == nil || old.ID == current.ID {
		return nil
	}
	window := current.Timestamp.Sub(old.Timestamp)
	if window < pullbackMinWindow {
		return nil
	}
	if now.Sub(current.Timestamp) > pullbackSnapshotMaxAge {
		return nil
	}

	levels := []struct {
		name     string
		oldDepth float64
		newDepth float64
	}{
		{"1%", old.BidDepth1Pct + old.AskDepth1Pct, current.BidDepth1Pct + current.AskDepth1Pct},
		{"5%", old.BidDepth5Pct + old.AskDepth5Pct, current.BidDepth5Pct + current.AskDepth5Pct},
	}

	var worst *types.MMPullbackData
	for _, l := range levels {
		if l.oldDepth <= 0 {
			continue
		}
		drop := 1 - l.newDepth/l.oldDepth
		if worst == nil || drop > worst.DropPct {
			worst = &types.MMPullbackData{
				DepthLevel:  l.name,
				DropPct:     drop,
				OldDepth:    l.oldDepth,
				NewDepth:    l.newDepth,
				WindowHours: window.Hours(),
			}
		}
	}
	if worst == nil || worst.DropPct < pullbackDropThreshold {
		return nil
	}
	return worst
}
