package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/pkg/types"
)

// Profile thresholds. The safe profile is strict; the learning profile
// supplies relaxed fallback picks that exclude already-safe markets.
const (
	safeMaxAge      = 30 * time.Minute
	safeMinDepth    = 500.0
	safeMaxSpread   = 0.05
	safeMinSignals  = 2
	learnMaxAge     = 60 * time.Minute
	learnMinDepth   = 300.0
	learnMaxSpread  = 0.07
	learnMinSignals = 1
)

// Store is the persistence surface of the scorer. The whole evaluation uses
// at most four queries regardless of market count.
type Store interface {
	TradeableMarkets(ctx context.Context) ([]*types.Market, error)
	LatestSnapshots(ctx context.Context, tokens []string) (map[string]*types.OrderBookSnapshot, error)
	TradeWindows(ctx context.Context, tokens []string, now time.Time) (map[string]*storage.TradeWindowStats, error)
	ActiveSignalKinds(ctx context.Context, marketIDs []string) (map[string]map[string]bool, error)
}

// ScoreComponents breaks the 0-100 score into its four additive parts.
type ScoreComponents struct {
	Freshness int `json:"freshness"`
	Liquidity int `json:"liquidity"`
	Spread    int `json:"spread"`
	Signals   int `json:"signals"`
}

// Opportunity is one scored market.
type Opportunity struct {
	MarketID     string          `json:"market_id"`
	Question     string          `json:"question"`
	TokenID      string          `json:"token_id"`
	Outcome      string          `json:"outcome"`
	Score        int             `json:"score"`
	Components   ScoreComponents `json:"components"`
	Safe         bool            `json:"safe"`
	Explanations []string        `json:"explanations"`
	DataAge      float64         `json:"data_age_seconds"`
	Depth        float64         `json:"depth_dollars"`
	SpreadPct    float64         `json:"spread_pct"`
	SignalKinds  int             `json:"signal_kinds"`
	VolumeRatio  *float64        `json:"volume_ratio,omitempty"`
}

// Report is the evaluation result: strict picks plus relaxed fallbacks.
type Report struct {
	Safe     []*Opportunity `json:"safe"`
	Learning []*Opportunity `json:"learning"`
}

// Scorer composes freshness, liquidity, spread, and signal alignment into a
// safety score per tradeable market.
type Scorer struct {
	store  Store
	logger *zap.Logger
}

// Config holds scorer configuration.
type Config struct {
	Store  Store
	Logger *zap.Logger
}

// New creates a safety scorer.
func New(cfg *Config) (*Scorer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Scorer{store: cfg.Store, logger: cfg.Logger}, nil
}

// Evaluate scores every tradeable market's YES outcome and splits the result
// into safe picks and learning fallbacks, both sorted by score descending.
func (s *Scorer) Evaluate(ctx context.Context, now time.Time) (*Report, error) {
	markets, err := s.store.TradeableMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tradeable markets: %w", err)
	}

	tokens := make([]string, 0, len(markets))
	marketIDs := make([]string, 0, len(markets))
	for _, m := range markets {
		if o, _ := m.YesOutcome(); o != nil {
			tokens = append(tokens, o.TokenID)
			marketIDs = append(marketIDs, m.ID)
		}
	}

	snapshots, err := s.store.LatestSnapshots(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshots: %w", err)
	}
	windows, err := s.store.TradeWindows(ctx, tokens, now)
	if err != nil {
		return nil, fmt.Errorf("load trade windows: %w", err)
	}
	signals, err := s.store.ActiveSignalKinds(ctx, marketIDs)
	if err != nil {
		return nil, fmt.Errorf("load signal kinds: %w", err)
	}

	report := &Report{}
	for _, m := range markets {
		outcome, _ := m.YesOutcome()
		if outcome == nil {
			continue
		}
		opp := scoreMarket(m, outcome, snapshots[outcome.TokenID], windows[outcome.TokenID],
			len(signals[m.ID]), now)
		if opp.Safe {
			report.Safe = append(report.Safe, opp)
		} else if learningEligible(opp) {
			report.Learning = append(report.Learning, opp)
		}
	}

	byScore := func(opps []*Opportunity) {
		sort.SliceStable(opps, func(i, j int) bool { return opps[i].Score > opps[j].Score })
	}
	byScore(report.Safe)
	byScore(report.Learning)

	SafeOpportunities.Set(float64(len(report.Safe)))
	LearningOpportunities.Set(float64(len(report.Learning)))
	s.logger.Info("opportunities-scored",
		zap.Int("markets", len(markets)),
		zap.Int("safe", len(report.Safe)),
		zap.Int("learning", len(report.Learning)))
	return report, nil
}

// scoreMarket computes the four components for one market. Freshness is
// measured from the newer of the latest snapshot and the latest trade.
func scoreMarket(
	m *types.Market,
	outcome *types.Outcome,
	snap *types.OrderBookSnapshot,
	window *storage.TradeWindowStats,
	signalKinds int,
	now time.Time,
) *Opportunity {
	opp := &Opportunity{
		MarketID:    m.ID,
		Question:    m.Question,
		TokenID:     outcome.TokenID,
		Outcome:     outcome.Name,
		SignalKinds: signalKinds,
	}

	var newest time.Time
	if snap != nil {
		newest = snap.Timestamp
		opp.Depth = snap.BidDepth1Pct + snap.AskDepth1Pct
		opp.SpreadPct = snap.SpreadPct
	}
	if window != nil && window.LatestTradeAt.After(newest) {
		newest = window.LatestTradeAt
	}

	age := now.Sub(newest)
	if newest.IsZero() {
		age = 0
		opp.DataAge = -1
		opp.Explanations = append(opp.Explanations, "no order book or trade data")
	} else {
		opp.DataAge = age.Seconds()
	}

	switch {
	case newest.IsZero():
	case age < 15*time.Minute:
		opp.Components.Freshness = 30
	case age < 30*time.Minute:
		opp.Components.Freshness = 20
	}
	if !newest.IsZero() {
		opp.Explanations = append(opp.Explanations,
			fmt.Sprintf("data is %.0f minutes old", age.Minutes()))
	}

	switch {
	case opp.Depth >= 2000:
		opp.Components.Liquidity = 30
	case opp.Depth >= 500:
		opp.Components.Liquidity = 20
	}
	opp.Explanations = append(opp.Explanations,
		fmt.Sprintf("$%.0f combined depth within 1%% of best", opp.Depth))

	if snap != nil && snap.SpreadPct > 0 {
		switch {
		case opp.SpreadPct < 0.03:
			opp.Components.Spread = 20
		case opp.SpreadPct < 0.05:
			opp.Components.Spread = 10
		}
		opp.Explanations = append(opp.Explanations,
			fmt.Sprintf("spread is %.1f%% of mid", opp.SpreadPct*100))
	}

	switch {
	case signalKinds >= 2:
		opp.Components.Signals = 20
	case signalKinds >= 1:
		opp.Components.Signals = 10
	}
	opp.Explanations = append(opp.Explanations,
		fmt.Sprintf("%d active signal kinds", signalKinds))

	if window != nil && window.BaselineCount >= 10 {
		hourlyAvg := window.BaselineVolume / 23
		if hourlyAvg > 0 {
			ratio := window.RecentVolume / hourlyAvg
			opp.VolumeRatio = &ratio
		}
	}

	opp.Score = opp.Components.Freshness + opp.Components.Liquidity +
		opp.Components.Spread + opp.Components.Signals

	opp.Safe = !newest.IsZero() &&
		opp.Components.Freshness > 0 &&
		opp.Components.Liquidity > 0 &&
		opp.Components.Spread > 0 &&
		opp.Components.Signals > 0 &&
		age <= safeMaxAge &&
		opp.Depth >= safeMinDepth &&
		opp.SpreadPct <= safeMaxSpread &&
		signalKinds >= safeMinSignals

	return opp
}

// learningEligible applies the relaxed profile to a market that missed the
// safe one.
func learningEligible(opp *Opportunity) bool {
	if opp.DataAge < 0 {
		return false
	}
	return time.Duration(opp.DataAge*float64(time.Second)) <= learnMaxAge &&
		opp.Depth >= learnMinDepth &&
		opp.SpreadPct > 0 && opp.SpreadPct <= learnMaxSpread &&
		opp.SignalKinds >= learnMinSignals
}
