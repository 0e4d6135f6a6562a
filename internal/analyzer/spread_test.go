package analyzer

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

func spreadSnapshot(tokenID string, spreadPct float64, age time.Duration, now time.Time) *types.OrderBookSnapshot {
	return &types.OrderBookSnapshot{
		TokenID:   tokenID,
		Timestamp: now.Add(-age),
		BestBid:   0.45,
		BestAsk:   0.55,
		SpreadPct: spreadPct,
	}
}

func newSpreadAnalyzer(t *testing.T, store Store) *SpreadAnalyzer {
	t.Helper()
	a, err := NewSpreadAnalyzer(&SpreadAnalyzerConfig{Store: store, Threshold: 0.05, Logger: zap.NewNop()})
	require.NoError(t, err)
	return a
}

func TestSpreadAnalyzerCreatesAlert(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{
		refs:   []storage.TokenRef{{TokenID: "tok-1", MarketID: "m1", Outcome: "Yes"}},
		latest: map[string]*types.OrderBookSnapshot{"tok-1": spreadSnapshot("tok-1", 0.08, 5*time.Minute, now)},
	}

	created, err := newSpreadAnalyzer(t, store).Analyze(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	require.Len(t, store.inserted, 1)
	alert := store.inserted[0]
	assert.Equal(t, types.AlertSpread, alert.Kind)
	assert.Equal(t, types.SeverityMedium, alert.Severity)
	assert.Equal(t, "m1:tok-1", alert.DedupKey)
}

func TestSpreadAnalyzerHighSeverityAtTenPercent(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{
		refs:   []storage.TokenRef{{TokenID: "tok-1", MarketID: "m1", Outcome: "Yes"}},
		latest: map[string]*types.OrderBookSnapshot{"tok-1": spreadSnapshot("tok-1", 0.12, 5*time.Minute, now)},
	}

	created, err := newSpreadAnalyzer(t, store).Analyze(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, created)
	assert.Equal(t, types.SeverityHigh, store.inserted[0].Severity)
}

func TestSpreadAnalyzerSkipsStaleSnapshots(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{
		refs:   []storage.TokenRef{{TokenID: "tok-1", MarketID: "m1", Outcome: "Yes"}},
		latest: map[string]*types.OrderBookSnapshot{"tok-1": spreadSnapshot("tok-1", 0.08, time.Hour, now)},
	}

	created, err := newSpreadAnalyzer(t, store).Analyze(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestSpreadAnalyzerSkipsTightSpreads(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{
		refs:   []storage.TokenRef{{TokenID: "tok-1", MarketID: "m1", Outcome: "Yes"}},
		latest: map[string]*types.OrderBookSnapshot{"tok-1": spreadSnapshot("tok-1", 0.02, 5*time.Minute, now)},
	}

	created, err := newSpreadAnalyzer(t, store).Analyze(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, created)
}
