package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

// crossMarketAlertTTL is how long a cross-market opportunity stays active
// before the sweeper expires it.
const crossMarketAlertTTL = 30 * time.Minute

// Cross-market strategy names.
const (
	StrategySellAll             = "sell_all_outcomes"
	StrategyBuyAll              = "buy_all_outcomes"
	StrategyBuyParentSellChild  = "buy_parent_sell_child"
	StrategySellEarlierBuyLater = "sell_earlier_buy_later"
	StrategySellSpecificBuyGen  = "sell_specific_buy_general"
)

// CrossMarketAnalyzer prices declared market relationships with side-aware
// quotes and emits expiring opportunities.
type CrossMarketAnalyzer struct {
	store        Store
	minProfit    float64
	minLiquidity float64
	logger       *zap.Logger
}

// CrossMarketAnalyzerConfig holds cross-market analyzer configuration.
type CrossMarketAnalyzerConfig struct {
	Store        Store
	MinProfit    float64 // e.g. 0.02
	MinLiquidity float64 // dollars, e.g. 1000
	Logger       *zap.Logger
}

// NewCrossMarketAnalyzer creates a cross-market arbitrage analyzer.
func NewCrossMarketAnalyzer(cfg *CrossMarketAnalyzerConfig) (*CrossMarketAnalyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.MinProfit <= 0 || cfg.MinProfit >= 1 {
		return nil, fmt.Errorf("min profit must be a fraction in (0,1)")
	}
	if cfg.MinLiquidity < 0 {
		return nil, fmt.Errorf("min liquidity cannot be negative")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &CrossMarketAnalyzer{
		store:        cfg.Store,
		minProfit:    cfg.MinProfit,
		minLiquidity: cfg.MinLiquidity,
		logger:       cfg.Logger,
	}, nil
}

// Name implements Analyzer.
func (a *CrossMarketAnalyzer) Name() string { return "cross_market" }

// Analyze loads every declared relationship, prices the YES side of each
// involved market, and emits one candidate per satisfied strategy.
func (a *CrossMarketAnalyzer) Analyze(ctx context.Context, now time.Time) (int, error) {
	rels, err := a.store.ListRelationships(ctx)
	if err != nil {
		return 0, fmt.Errorf("load relationships: %w", err)
	}
	if len(rels) == 0 {
		return 0, nil
	}

	idSet := make(map[string]bool)
	for _, r := range rels {
		idSet[r.ParentMarketID] = true
		idSet[r.ChildMarketID] = true
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	markets, err := a.store.MarketsByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load related markets: %w", err)
	}

	var tokens []string
	for _, m := range markets {
		if o, _ := m.YesOutcome(); o != nil {
			tokens = append(tokens, o.TokenID)
		}
	}
	snapshots, err := a.store.LatestSnapshots(ctx, tokens)
	if err != nil {
		return 0, fmt.Errorf("load latest snapshots: %w", err)
	}

	var candidates []*candidateAlert
	candidates = append(candidates, a.exclusiveGroups(rels, markets, snapshots, now)...)
	candidates = append(candidates, a.pairwise(rels, markets, snapshots, now)...)

	return persistAlerts(ctx, a.store, types.AlertArbitrage, candidates)
}

// exclusiveGroups evaluates sell-all and buy-all over each mutually-exclusive
// group. An active legacy key without a side suffix suppresses both variants.
func (a *CrossMarketAnalyzer) exclusiveGroups(
	rels []*types.MarketRelationship,
	markets map[string]*types.Market,
	snapshots map[string]*types.OrderBookSnapshot,
	now time.Time,
) []*candidateAlert {
	groups := make(map[string]map[string]bool)
	for _, r := range rels {
		if r.Kind != types.RelMutuallyExclusive || r.GroupID == "" {
			continue
		}
		if groups[r.GroupID] == nil {
			groups[r.GroupID] = make(map[string]bool)
		}
		groups[r.GroupID][r.ParentMarketID] = true
		groups[r.GroupID][r.ChildMarketID] = true
	}

	var out []*candidateAlert
	for groupID, members := range groups {
		ids := make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		if len(ids) < 2 {
			continue
		}

		sellLegs, sellOK := a.priceGroup(ids, markets, snapshots, now, SideSell)
		if sellOK {
			total := legsTotal(sellLegs)
			if profit := total - 1; profit >= a.minProfit && a.liquidityOK(sellLegs) {
				out = append(out, newCandidate(
					a.groupAlert(groupID, ids, sellLegs, StrategySellAll, total, profit, now,
						types.ExclusiveSellDedupKey(groupID)),
					types.LegacyExclusiveDedupKey(groupID)))
			}
		}

		buyLegs, buyOK := a.priceGroup(ids, markets, snapshots, now, SideBuy)
		if buyOK {
			total := legsTotal(buyLegs)
			if profit := 1 - total; profit >= a.minProfit && a.liquidityOK(buyLegs) {
				out = append(out, newCandidate(
					a.groupAlert(groupID, ids, buyLegs, StrategyBuyAll, total, profit, now,
						types.ExclusiveBuyDedupKey(groupID)),
					types.LegacyExclusiveDedupKey(groupID)))
			}
		}
	}
	return out
}

// pairwise evaluates the conditional, time-sequence, and subset strategies.
// Parent is the condition / earlier / general market, child the dependent /
// later / specific one.
func (a *CrossMarketAnalyzer) pairwise(
	rels []*types.MarketRelationship,
	markets map[string]*types.Market,
	snapshots map[string]*types.OrderBookSnapshot,
	now time.Time,
) []*candidateAlert {
	var out []*candidateAlert
	for _, r := range rels {
		parent, child := markets[r.ParentMarketID], markets[r.ChildMarketID]
		if parent == nil || child == nil {
			continue
		}

		var (
			arbType  string
			strategy string
			dedupKey string
			sellOn   *types.Market
			buyOn    *types.Market
		)
		switch r.Kind {
		case types.RelConditional:
			// Child implies parent: a child bid above the parent ask is
			// free money.
			arbType, strategy = types.ArbConditional, StrategyBuyParentSellChild
			dedupKey = types.ConditionalDedupKey(r.ParentMarketID, r.ChildMarketID)
			sellOn, buyOn = child, parent
		case types.RelTimeSequence:
			arbType, strategy = types.ArbTimeSequence, StrategySellEarlierBuyLater
			dedupKey = types.TimeSequenceDedupKey(r.ParentMarketID, r.ChildMarketID)
			sellOn, buyOn = parent, child
		case types.RelSubset:
			arbType, strategy = types.ArbSubset, StrategySellSpecificBuyGen
			dedupKey = types.SubsetDedupKey(r.ParentMarketID, r.ChildMarketID)
			sellOn, buyOn = child, parent
		default:
			continue
		}

		sellLeg, sellOK := PriceForSide(sellOn, SideSell, snapshots, now)
		buyLeg, buyOK := PriceForSide(buyOn, SideBuy, snapshots, now)
		if !sellOK || !buyOK {
			continue
		}

		profit := sellLeg.Price - buyLeg.Price
		legs := []types.ArbLeg{buyLeg, sellLeg}
		if profit < a.minProfit || !a.liquidityOK(legs) {
			continue
		}

		out = append(out, newCandidate(a.buildAlert(
			arbType, strategy, r.GroupID, dedupKey,
			[]string{r.ParentMarketID, r.ChildMarketID}, legs,
			buyLeg.Price+sellLeg.Price, profit, now,
			fmt.Sprintf("sell %s at %.3f, buy %s at %.3f (%.1f%% locked in)",
				sellOn.Question, sellLeg.Price, buyOn.Question, buyLeg.Price, profit*100))))
	}
	return out
}

// priceGroup prices every member's YES side; a single unpriceable member
// voids the whole strategy.
func (a *CrossMarketAnalyzer) priceGroup(
	ids []string,
	markets map[string]*types.Market,
	snapshots map[string]*types.OrderBookSnapshot,
	now time.Time,
	side string,
) ([]types.ArbLeg, bool) {
	legs := make([]types.ArbLeg, 0, len(ids))
	for _, id := range ids {
		m := markets[id]
		if m == nil {
			return nil, false
		}
		leg, ok := PriceForSide(m, side, snapshots, now)
		if !ok {
			return nil, false
		}
		legs = append(legs, leg)
	}
	return legs, true
}

// liquidityOK gates on the thinnest order-book leg. Cached legs carry no
// depth information and are not held against the strategy.
func (a *CrossMarketAnalyzer) liquidityOK(legs []types.ArbLeg) bool {
	for _, l := range legs {
		if l.Source == SourceOrderBook && l.Liquidity < a.minLiquidity {
			return false
		}
	}
	return true
}

func (a *CrossMarketAnalyzer) groupAlert(
	groupID string,
	ids []string,
	legs []types.ArbLeg,
	strategy string,
	total, profit float64,
	now time.Time,
	dedupKey string,
) *types.Alert {
	verb := "buy"
	if strategy == StrategySellAll {
		verb = "sell"
	}
	return a.buildAlert(types.ArbMutuallyExclusive, strategy, groupID, dedupKey, ids, legs,
		total, profit, now,
		fmt.Sprintf("%s all %d outcomes of group %s for %.3f total (%.1f%% profit)",
			verb, len(legs), groupID, total, profit*100))
}

func (a *CrossMarketAnalyzer) buildAlert(
	arbType, strategy, groupID, dedupKey string,
	relatedIDs []string,
	legs []types.ArbLeg,
	total, profit float64,
	now time.Time,
	description string,
) *types.Alert {
	minLiq := knownMinLiquidity(legs)
	expires := now.Add(crossMarketAlertTTL)
	return &types.Alert{
		Kind:             types.AlertArbitrage,
		Severity:         arbSeverity(profit),
		Title:            fmt.Sprintf("Cross-market arbitrage (%s)", strings.ReplaceAll(arbType, "_", " ")),
		Description:      description,
		RelatedMarketIDs: relatedIDs,
		DedupKey:         dedupKey,
		Data: &types.CrossMarketArbData{
			Type:         arbType,
			Strategy:     strategy,
			GroupID:      groupID,
			Legs:         legs,
			Total:        total,
			Profit:       profit,
			MinLiquidity: minLiq,
		},
		CreatedAt: now,
		ExpiresAt: &expires,
	}
}

func legsTotal(legs []types.ArbLeg) float64 {
	var total float64
	for _, l := range legs {
		total += l.Price
	}
	return total
}

// knownMinLiquidity is the smallest depth among order-book-priced legs, zero
// when every leg is cached.
func knownMinLiquidity(legs []types.ArbLeg) float64 {
	var minLiq float64
	var seen bool
	for _, l := range legs {
		if l.Source != SourceOrderBook {
			continue
		}
		if !seen || l.Liquidity < minLiq {
			minLiq = l.Liquidity
			seen = true
		}
	}
	return minLiq
}
