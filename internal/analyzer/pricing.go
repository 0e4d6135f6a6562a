package analyzer

import (
	"time"

	"github.com/polyscope/polyscope/pkg/types"
)

// bookFreshness bounds how old a snapshot may be and still price an
// arbitrage leg; older books fall back to the market's cached prices.
const bookFreshness = 15 * time.Minute

// Price sources recorded on arbitrage legs.
const (
	SourceOrderBook = "orderbook"
	SourceCached    = "cached"
)

// Sides of an arbitrage leg.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// PriceForSide resolves the executable price for one market's YES outcome:
// selling uses the best bid and bid depth, buying uses the best ask and ask
// depth. Stale or missing books fall back to the cached outcome price with
// zero known liquidity. Returns false when no price exists at all.
func PriceForSide(
	market *types.Market,
	side string,
	snapshots map[string]*types.OrderBookSnapshot,
	now time.Time,
) (types.ArbLeg, bool) {
	outcome, assumed := market.YesOutcome()
	if outcome == nil {
		return types.ArbLeg{}, false
	}

	leg := types.ArbLeg{
		MarketID:          market.ID,
		TokenID:           outcome.TokenID,
		Outcome:           outcome.Name,
		Side:              side,
		AssumedYesOutcome: assumed,
	}

	if snap, ok := snapshots[outcome.TokenID]; ok && now.Sub(snap.Timestamp) <= bookFreshness {
		var price, depth float64
		if side == SideSell {
			price, depth = snap.BestBid, snap.BidDepth1Pct
		} else {
			price, depth = snap.BestAsk, snap.AskDepth1Pct
		}
		if price > 0 {
			leg.Price = price
			leg.Liquidity = depth
			leg.Source = SourceOrderBook
			return leg, true
		}
	}

	if outcome.Price > 0 {
		leg.Price = outcome.Price
		leg.Source = SourceCached
		return leg, true
	}
	return types.ArbLeg{}, false
}

// arbSeverity maps an arbitrage profit to a severity: >5% high, else medium.
func arbSeverity(profit float64) types.Severity {
	if profit > 0.05 {
		return types.SeverityHigh
	}
	return types.SeverityMedium
}
