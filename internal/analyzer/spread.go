package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/pkg/types"
)

// spreadSnapshotMaxAge bounds how stale a snapshot may be and still drive a
// spread alert.
const spreadSnapshotMaxAge = 30 * time.Minute

// SpreadAnalyzer flags tokens whose newest snapshot shows a wide spread.
type SpreadAnalyzer struct {
	store     Store
	threshold float64
	logger    *zap.Logger
}

// SpreadAnalyzerConfig holds spread analyzer configuration.
type SpreadAnalyzerConfig struct {
	Store     Store
	Threshold float64 // spread fraction, e.g. 0.05
	Logger    *zap.Logger
}

// NewSpreadAnalyzer creates a spread analyzer.
func NewSpreadAnalyzer(cfg *SpreadAnalyzerConfig) (*SpreadAnalyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		return nil, fmt.Errorf("threshold must be a fraction in (0,1)")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &SpreadAnalyzer{store: cfg.Store, threshold: cfg.Threshold, logger: cfg.Logger}, nil
}

// Name implements Analyzer.
func (a *SpreadAnalyzer) Name() string { return "spread" }

// Analyze takes the newest snapshot per tracked token and alerts on wide,
// fresh spreads.
func (a *SpreadAnalyzer) Analyze(ctx context.Context, now time.Time) (int, error) {
	refs, err := a.store.TrackedTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("load tracked tokens: %w", err)
	}
	snapshots, err := a.store.LatestSnapshots(ctx, storage.TokenIDs(refs))
	if err != nil {
		return 0, fmt.Errorf("load latest snapshots: %w", err)
	}

	var candidates []*candidateAlert
	for _, ref := range refs {
		snap, ok := snapshots[ref.TokenID]
		if !ok {
			continue
		}
		if now.Sub(snap.Timestamp) > spreadSnapshotMaxAge {
			continue
		}
		if snap.SpreadPct < a.threshold {
			continue
		}

		candidates = append(candidates, newCandidate(&types.Alert{
			Kind:     types.AlertSpread,
			Severity: spreadSeverity(snap.SpreadPct),
			Title:    fmt.Sprintf("Wide spread on %s", ref.Outcome),
			Description: fmt.Sprintf("spread is %.1f%% of mid (bid %.3f, ask %.3f)",
				snap.SpreadPct*100, snap.BestBid, snap.BestAsk),
			MarketID: ref.MarketID,
			DedupKey: types.SingleMarketDedupKey(ref.MarketID, ref.TokenID),
			Data: &types.SpreadAlertData{
				TokenID:   ref.TokenID,
				Outcome:   ref.Outcome,
				SpreadPct: snap.SpreadPct,
				BestBid:   snap.BestBid,
				BestAsk:   snap.BestAsk,
			},
			CreatedAt: now,
		}))
	}

	return persistAlerts(ctx, a.store, types.AlertSpread, candidates)
}

// spreadSeverity maps a spread fraction to a severity: >=10% high, else medium.
func spreadSeverity(spreadPct float64) types.Severity {
	if spreadPct >= 0.10 {
		return types.SeverityHigh
	}
	return types.SeverityMedium
}
