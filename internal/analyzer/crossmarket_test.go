package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

func yesMarket(id string, price float64) *types.Market {
	return &types.Market{
		ID:       id,
		Question: "Will " + id + " win?",
		Active:   true,
		Outcomes: []types.Outcome{
			{Name: "Yes", TokenID: "tok-yes-" + id, Price: price},
			{Name: "No", TokenID: "tok-no-0" + id, Price: 1 - price},
		},
	}
}

func exclusiveGroup(groupID string, ids ...string) []*types.MarketRelationship {
	var rels []*types.MarketRelationship
	for i := 1; i < len(ids); i++ {
		rels = append(rels, &types.MarketRelationship{
			ParentMarketID: ids[0],
			ChildMarketID:  ids[i],
			Kind:           types.RelMutuallyExclusive,
			GroupID:        groupID,
			Confidence:     1,
		})
	}
	return rels
}

func newCrossAnalyzer(t *testing.T, store Store) *CrossMarketAnalyzer {
	t.Helper()
	a, err := NewCrossMarketAnalyzer(&CrossMarketAnalyzerConfig{
		Store:        store,
		MinProfit:    0.02,
		MinLiquidity: 1000,
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)
	return a
}

func TestExclusiveBuyAllFromCachedPrices(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{
		markets:       []*types.Market{yesMarket("m1", 0.30), yesMarket("m2", 0.30), yesMarket("m3", 0.30)},
		relationships: exclusiveGroup("g1", "m1", "m2", "m3"),
	}

	created, err := newCrossAnalyzer(t, store).Analyze(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	require.Len(t, store.inserted, 1)
	alert := store.inserted[0]
	assert.Equal(t, "exclusive-buy-g1", alert.DedupKey)
	assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, alert.RelatedMarketIDs)
	require.NotNil(t, alert.ExpiresAt)
	assert.WithinDuration(t, now.Add(30*time.Minute), *alert.ExpiresAt, time.Second)

	data, ok := alert.Data.(*types.CrossMarketArbData)
	require.True(t, ok)
	assert.Equal(t, types.ArbMutuallyExclusive, data.Type)
	assert.Equal(t, StrategyBuyAll, data.Strategy)
	assert.InDelta(t, 0.90, data.Total, 1e-9)
	assert.InDelta(t, 0.10, data.Profit, 1e-9)
}

func TestExclusiveSellAllFromOrderBooks(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{
		markets:       []*types.Market{yesMarket("m1", 0.30), yesMarket("m2", 0.30)},
		relationships: exclusiveGroup("g1", "m1", "m2"),
		latest: map[string]*types.OrderBookSnapshot{
			"tok-yes-m1": {TokenID: "tok-yes-m1", Timestamp: now.Add(-5 * time.Minute), BestBid: 0.60, BidDepth1Pct: 2000},
			"tok-yes-m2": {TokenID: "tok-yes-m2", Timestamp: now.Add(-5 * time.Minute), BestBid: 0.55, BidDepth1Pct: 1500},
		},
	}

	created, err := newCrossAnalyzer(t, store).Analyze(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	alert := store.inserted[0]
	assert.Equal(t, "exclusive-sell-g1", alert.DedupKey)
	data := alert.Data.(*types.CrossMarketArbData)
	assert.Equal(t, StrategySellAll, data.Strategy)
	assert.InDelta(t, 1.15, data.Total, 1e-9)
	assert.InDelta(t, 0.15, data.Profit, 1e-9)
	assert.InDelta(t, 1500, data.MinLiquidity, 1e-9)
	for _, leg := range data.Legs {
		assert.Equal(t, SideSell, leg.Side)
		assert.Equal(t, SourceOrderBook, leg.Source)
	}
}

func TestLegacyKeySuppressesBothVariants(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{
		markets:       []*types.Market{yesMarket("m1", 0.30), yesMarket("m2", 0.30), yesMarket("m3", 0.30)},
		relationships: exclusiveGroup("g1", "m1", "m2", "m3"),
	}
	store.markActive(types.AlertArbitrage, types.LegacyExclusiveDedupKey("g1"))

	created, err := newCrossAnalyzer(t, store).Analyze(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Empty(t, store.inserted)
}

func TestThinOrderBookLegBlocksStrategy(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{
		markets:       []*types.Market{yesMarket("m1", 0.30), yesMarket("m2", 0.30)},
		relationships: exclusiveGroup("g1", "m1", "m2"),
		latest: map[string]*types.OrderBookSnapshot{
			"tok-yes-m1": {TokenID: "tok-yes-m1", Timestamp: now.Add(-5 * time.Minute), BestBid: 0.60, BidDepth1Pct: 2000},
			"tok-yes-m2": {TokenID: "tok-yes-m2", Timestamp: now.Add(-5 * time.Minute), BestBid: 0.55, BidDepth1Pct: 100},
		},
	}

	created, err := newCrossAnalyzer(t, store).Analyze(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestConditionalPair(t *testing.T) {
	now := time.Now().UTC()
	parent := yesMarket("parent", 0.50)
	child := yesMarket("child", 0.50)
	store := &fakeStore{
		markets: []*types.Market{parent, child},
		relationships: []*types.MarketRelationship{{
			ParentMarketID: "parent", ChildMarketID: "child",
			Kind: types.RelConditional, Confidence: 1,
		}},
		latest: map[string]*types.OrderBookSnapshot{
			"tok-yes-parent": {TokenID: "tok-yes-parent", Timestamp: now.Add(-5 * time.Minute), BestAsk: 0.40, AskDepth1Pct: 3000},
			"tok-yes-child":  {TokenID: "tok-yes-child", Timestamp: now.Add(-5 * time.Minute), BestBid: 0.52, BidDepth1Pct: 3000},
		},
	}

	created, err := newCrossAnalyzer(t, store).Analyze(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	alert := store.inserted[0]
	assert.Equal(t, "conditional-parent-child", alert.DedupKey)
	data := alert.Data.(*types.CrossMarketArbData)
	assert.Equal(t, types.ArbConditional, data.Type)
	assert.Equal(t, StrategyBuyParentSellChild, data.Strategy)
	assert.InDelta(t, 0.12, data.Profit, 1e-9)
}

func TestTimeSequenceAndSubsetKeys(t *testing.T) {
	now := time.Now().UTC()
	earlier := yesMarket("early", 0.60)
	later := yesMarket("late", 0.40)
	general := yesMarket("gen", 0.40)
	specific := yesMarket("spec", 0.60)
	store := &fakeStore{
		markets: []*types.Market{earlier, later, general, specific},
		relationships: []*types.MarketRelationship{
			{ParentMarketID: "early", ChildMarketID: "late", Kind: types.RelTimeSequence, Confidence: 1},
			{ParentMarketID: "gen", ChildMarketID: "spec", Kind: types.RelSubset, Confidence: 1},
		},
	}

	created, err := newCrossAnalyzer(t, store).Analyze(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	keys := []string{store.inserted[0].DedupKey, store.inserted[1].DedupKey}
	assert.ElementsMatch(t, []string{"time-early-late", "subset-gen-spec"}, keys)
}

func TestBelowMinProfitIsIgnored(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{
		markets:       []*types.Market{yesMarket("m1", 0.50), yesMarket("m2", 0.495)},
		relationships: exclusiveGroup("g1", "m1", "m2"),
	}

	created, err := newCrossAnalyzer(t, store).Analyze(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, created)
}
