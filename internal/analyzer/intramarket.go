package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

// IntraMarketAnalyzer detects mispricing inside one binary market: both
// outcomes purchasable for less than a dollar minus the profit gate.
type IntraMarketAnalyzer struct {
	store     Store
	minProfit float64
	logger    *zap.Logger
}

// IntraMarketAnalyzerConfig holds intra-market analyzer configuration.
type IntraMarketAnalyzerConfig struct {
	Store     Store
	MinProfit float64 // e.g. 0.02
	Logger    *zap.Logger
}

// NewIntraMarketAnalyzer creates an intra-market arbitrage analyzer.
func NewIntraMarketAnalyzer(cfg *IntraMarketAnalyzerConfig) (*IntraMarketAnalyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.MinProfit <= 0 || cfg.MinProfit >= 1 {
		return nil, fmt.Errorf("min profit must be a fraction in (0,1)")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &IntraMarketAnalyzer{store: cfg.Store, minProfit: cfg.MinProfit, logger: cfg.Logger}, nil
}

// Name implements Analyzer.
func (a *IntraMarketAnalyzer) Name() string { return "intra_market" }

// Analyze scans every active binary market for a sub-dollar buy of both
// outcomes.
func (a *IntraMarketAnalyzer) Analyze(ctx context.Context, now time.Time) (int, error) {
	markets, err := a.store.ActiveMarkets(ctx)
	if err != nil {
		return 0, fmt.Errorf("load active markets: %w", err)
	}

	var tokens []string
	for _, m := range markets {
		if !m.IsBinary() {
			continue
		}
		for _, o := range m.Outcomes {
			tokens = append(tokens, o.TokenID)
		}
	}
	snapshots, err := a.store.LatestSnapshots(ctx, tokens)
	if err != nil {
		return 0, fmt.Errorf("load latest snapshots: %w", err)
	}

	var candidates []*candidateAlert
	for _, m := range markets {
		if !m.IsBinary() {
			continue
		}
		data := DetectIntraMarketArb(m, snapshots, now, a.minProfit)
		if data == nil {
			continue
		}

		candidates = append(candidates, newCandidate(&types.Alert{
			Kind:     types.AlertArbitrage,
			Severity: arbSeverity(data.Profit),
			Title:    fmt.Sprintf("Intra-market arbitrage: %s", m.Question),
			Description: fmt.Sprintf("buy %s at %.3f and %s at %.3f for %.3f total (%.1f%% profit, %s prices)",
				data.Legs[0].Outcome, data.Legs[0].Price,
				data.Legs[1].Outcome, data.Legs[1].Price,
				data.TotalCost, data.Profit*100, data.Source),
			MarketID:  m.ID,
			DedupKey:  types.SortedMarketsDedupKey([]string{m.ID}),
			Data:      data,
			CreatedAt: now,
		}))
	}

	return persistAlerts(ctx, a.store, types.AlertArbitrage, candidates)
}

// DetectIntraMarketArb prices both outcomes of a binary market and returns
// the buy-both opportunity, or nil. Fresh order books are authoritative: when
// both asks are fresh and the condition fails there is no fallback to cached
// prices.
func DetectIntraMarketArb(
	m *types.Market,
	snapshots map[string]*types.OrderBookSnapshot,
	now time.Time,
	minProfit float64,
) *types.IntraMarketArbData {
	first, second := m.Outcomes[0], m.Outcomes[1]

	askA, liqA, freshA := freshAsk(snapshots, first.TokenID, now)
	askB, liqB, freshB := freshAsk(snapshots, second.TokenID, now)

	if freshA && freshB {
		return buildIntraArb(m, askA, liqA, askB, liqB, SourceOrderBook, minProfit)
	}

	if first.Price > 0 && second.Price > 0 {
		return buildIntraArb(m, first.Price, 0, second.Price, 0, SourceCached, minProfit)
	}
	return nil
}

// freshAsk returns the best ask and ask depth from a snapshot at most
// bookFreshness old. A fresh book with no asks does not count as fresh.
func freshAsk(snapshots map[string]*types.OrderBookSnapshot, tokenID string, now time.Time) (ask, depth float64, ok bool) {
	snap, found := snapshots[tokenID]
	if !found || now.Sub(snap.Timestamp) > bookFreshness || snap.BestAsk <= 0 {
		return 0, 0, false
	}
	return snap.BestAsk, snap.AskDepth1Pct, true
}

func buildIntraArb(m *types.Market, askA, liqA, askB, liqB float64, source string, minProfit float64) *types.IntraMarketArbData {
	total := askA + askB
	if total >= 1-minProfit {
		return nil
	}
	return &types.IntraMarketArbData{
		Legs: []types.ArbLeg{
			{MarketID: m.ID, TokenID: m.Outcomes[0].TokenID, Outcome: m.Outcomes[0].Name,
				Side: SideBuy, Price: askA, Liquidity: liqA, Source: source},
			{MarketID: m.ID, TokenID: m.Outcomes[1].TokenID, Outcome: m.Outcomes[1].Name,
				Side: SideBuy, Price: askB, Liquidity: liqB, Source: source},
		},
		TotalCost: total,
		Profit:    1 - total,
		Source:    source,
	}
}
