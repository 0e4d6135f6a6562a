package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/pkg/types"
)

type fakeScoreStore struct {
	markets   []*types.Market
	snapshots map[string]*types.OrderBookSnapshot
	windows   map[string]*storage.TradeWindowStats
	signals   map[string]map[string]bool

	queries int
}

func (f *fakeScoreStore) TradeableMarkets(ctx context.Context) ([]*types.Market, error) {
	f.queries++
	return f.markets, nil
}

func (f *fakeScoreStore) LatestSnapshots(ctx context.Context, tokens []string) (map[string]*types.OrderBookSnapshot, error) {
	f.queries++
	return f.snapshots, nil
}

func (f *fakeScoreStore) TradeWindows(ctx context.Context, tokens []string, now time.Time) (map[string]*storage.TradeWindowStats, error) {
	f.queries++
	return f.windows, nil
}

func (f *fakeScoreStore) ActiveSignalKinds(ctx context.Context, marketIDs []string) (map[string]map[string]bool, error) {
	f.queries++
	return f.signals, nil
}

func scoredMarket(id, tokenID string) *types.Market {
	return &types.Market{
		ID:       id,
		Question: "Will it settle yes?",
		Active:   true,
		Outcomes: []types.Outcome{
			{Name: "Yes", TokenID: tokenID, Price: 0.5},
			{Name: "No", TokenID: "no-" + tokenID, Price: 0.5},
		},
	}
}

func scoredSnapshot(tokenID string, age time.Duration, depthEach, spreadPct float64, now time.Time) *types.OrderBookSnapshot {
	return &types.OrderBookSnapshot{
		TokenID:      tokenID,
		Timestamp:    now.Add(-age),
		BestBid:      0.49,
		BestAsk:      0.51,
		SpreadPct:    spreadPct,
		BidDepth1Pct: depthEach,
		AskDepth1Pct: depthEach,
	}
}

func newTestScorer(t *testing.T, store Store) *Scorer {
	t.Helper()
	s, err := New(&Config{Store: store, Logger: zap.NewNop()})
	require.NoError(t, err)
	return s
}

func TestEvaluateTopScoreIsSafe(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeScoreStore{
		markets:   []*types.Market{scoredMarket("m1", "tok-1")},
		snapshots: map[string]*types.OrderBookSnapshot{"tok-1": scoredSnapshot("tok-1", 5*time.Minute, 1200, 0.02, now)},
		signals:   map[string]map[string]bool{"m1": {"volume_spike": true, "spread_alert": true}},
	}

	report, err := newTestScorer(t, store).Evaluate(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, report.Safe, 1)
	assert.Empty(t, report.Learning)

	opp := report.Safe[0]
	assert.Equal(t, 100, opp.Score)
	assert.True(t, opp.Safe)
	assert.Equal(t, ScoreComponents{Freshness: 30, Liquidity: 30, Spread: 20, Signals: 20}, opp.Components)
	assert.Equal(t, 2400.0, opp.Depth)
	assert.NotEmpty(t, opp.Explanations)
	assert.Equal(t, 4, store.queries, "one batch query per data source")
}

func TestEvaluatePartialComponentsAreNotSafe(t *testing.T) {
	now := time.Now().UTC()
	// Fresh and liquid but with only one signal kind: scores points yet
	// misses the strict profile, so it lands in learning.
	store := &fakeScoreStore{
		markets:   []*types.Market{scoredMarket("m1", "tok-1")},
		snapshots: map[string]*types.OrderBookSnapshot{"tok-1": scoredSnapshot("tok-1", 20*time.Minute, 400, 0.04, now)},
		signals:   map[string]map[string]bool{"m1": {"volume_spike": true}},
	}

	report, err := newTestScorer(t, store).Evaluate(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, report.Safe)
	require.Len(t, report.Learning, 1)

	opp := report.Learning[0]
	assert.False(t, opp.Safe)
	assert.Equal(t, ScoreComponents{Freshness: 20, Liquidity: 20, Spread: 10, Signals: 10}, opp.Components)
	assert.Equal(t, 60, opp.Score)
}

func TestEvaluateFreshnessUsesLatestTrade(t *testing.T) {
	now := time.Now().UTC()
	// Stale book but a trade two minutes ago keeps the market fresh.
	store := &fakeScoreStore{
		markets:   []*types.Market{scoredMarket("m1", "tok-1")},
		snapshots: map[string]*types.OrderBookSnapshot{"tok-1": scoredSnapshot("tok-1", 25*time.Minute, 1500, 0.02, now)},
		windows: map[string]*storage.TradeWindowStats{
			"tok-1": {TokenID: "tok-1", LatestTradeAt: now.Add(-2 * time.Minute)},
		},
		signals: map[string]map[string]bool{"m1": {"volume_spike": true, "mm_pullback": true}},
	}

	report, err := newTestScorer(t, store).Evaluate(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, report.Safe, 1)
	assert.Equal(t, 30, report.Safe[0].Components.Freshness)
	assert.InDelta(t, 120, report.Safe[0].DataAge, 1)
}

func TestEvaluateSkipsMarketsWithoutData(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeScoreStore{
		markets: []*types.Market{scoredMarket("m1", "tok-1")},
	}

	report, err := newTestScorer(t, store).Evaluate(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, report.Safe)
	assert.Empty(t, report.Learning)
}

func TestEvaluateLearningExcludesStaleAndThin(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeScoreStore{
		markets: []*types.Market{
			scoredMarket("m1", "tok-1"), // too stale for learning
			scoredMarket("m2", "tok-2"), // too thin for learning
			scoredMarket("m3", "tok-3"), // qualifies
		},
		snapshots: map[string]*types.OrderBookSnapshot{
			"tok-1": scoredSnapshot("tok-1", 90*time.Minute, 1000, 0.02, now),
			"tok-2": scoredSnapshot("tok-2", 10*time.Minute, 100, 0.02, now),
			"tok-3": scoredSnapshot("tok-3", 45*time.Minute, 400, 0.06, now),
		},
		signals: map[string]map[string]bool{
			"m1": {"volume_spike": true},
			"m2": {"volume_spike": true},
			"m3": {"volume_spike": true},
		},
	}

	report, err := newTestScorer(t, store).Evaluate(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, report.Safe)
	require.Len(t, report.Learning, 1)
	assert.Equal(t, "m3", report.Learning[0].MarketID)
}

func TestEvaluateVolumeRatio(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeScoreStore{
		markets: []*types.Market{
			scoredMarket("m1", "tok-1"),
			scoredMarket("m2", "tok-2"),
		},
		snapshots: map[string]*types.OrderBookSnapshot{
			"tok-1": scoredSnapshot("tok-1", 5*time.Minute, 1500, 0.02, now),
			"tok-2": scoredSnapshot("tok-2", 5*time.Minute, 1500, 0.02, now),
		},
		windows: map[string]*storage.TradeWindowStats{
			"tok-1": {TokenID: "tok-1", BaselineVolume: 230, BaselineCount: 23, RecentVolume: 40, LatestTradeAt: now.Add(-time.Minute)},
			"tok-2": {TokenID: "tok-2", BaselineVolume: 90, BaselineCount: 9, RecentVolume: 40, LatestTradeAt: now.Add(-time.Minute)},
		},
		signals: map[string]map[string]bool{
			"m1": {"volume_spike": true, "spread_alert": true},
			"m2": {"volume_spike": true, "spread_alert": true},
		},
	}

	report, err := newTestScorer(t, store).Evaluate(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, report.Safe, 2)

	byID := map[string]*Opportunity{}
	for _, opp := range report.Safe {
		byID[opp.MarketID] = opp
	}
	require.NotNil(t, byID["m1"].VolumeRatio)
	assert.InDelta(t, 4.0, *byID["m1"].VolumeRatio, 1e-9)
	assert.Nil(t, byID["m2"].VolumeRatio, "ratio is omitted below the baseline floor")
}

func TestEvaluateSortsByScore(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeScoreStore{
		markets: []*types.Market{
			scoredMarket("m1", "tok-1"),
			scoredMarket("m2", "tok-2"),
		},
		snapshots: map[string]*types.OrderBookSnapshot{
			"tok-1": scoredSnapshot("tok-1", 20*time.Minute, 800, 0.04, now),
			"tok-2": scoredSnapshot("tok-2", 5*time.Minute, 2500, 0.02, now),
		},
		signals: map[string]map[string]bool{
			"m1": {"volume_spike": true, "spread_alert": true},
			"m2": {"volume_spike": true, "spread_alert": true},
		},
	}

	report, err := newTestScorer(t, store).Evaluate(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, report.Safe, 2)
	assert.Equal(t, "m2", report.Safe[0].MarketID)
	assert.Greater(t, report.Safe[0].Score, report.Safe[1].Score)
}
