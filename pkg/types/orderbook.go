package types

import (
	"math"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// PriceLevel is a single ladder level as delivered by the order-book API,
// with string-encoded numbers.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Level is a parsed ladder level. Size is in shares.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Valid reports whether the level carries a usable quote.
func (l Level) Valid() bool {
	return l.Price > 0 && l.Size > 0
}

// BookResponse is the order-book API payload for one token.
type BookResponse struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// Book holds parsed bid/ask ladders sorted best-first.
type Book struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// ParseBook converts a wire response into a Book. Unparseable levels are
// dropped rather than failing the whole ladder.
func ParseBook(resp *BookResponse) *Book {
	return &Book{
		Bids: parseLevels(resp.Bids),
		Asks: parseLevels(resp.Asks),
	}
}

func parseLevels(levels []PriceLevel) []Level {
	out := make([]Level, 0, len(levels))
	for _, l := range levels {
		price, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(l.Size, 64)
		if err != nil {
			continue
		}
		out = append(out, Level{Price: price, Size: size})
	}
	return out
}

// OrderBookSnapshot is an append-only historical record of computed metrics
// per (token, timestamp). Raw ladders are not stored here.
type OrderBookSnapshot struct {
	ID           int64     `json:"id"`
	TokenID      string    `json:"token_id"`
	MarketID     string    `json:"market_id"`
	Timestamp    time.Time `json:"timestamp"`
	BestBid      float64   `json:"best_bid"`
	BestAsk      float64   `json:"best_ask"`
	Spread       float64   `json:"spread"`
	SpreadPct    float64   `json:"spread_pct"`
	MidPrice     float64   `json:"mid_price"`
	BidDepth1Pct float64   `json:"bid_depth_1pct"`
	AskDepth1Pct float64   `json:"ask_depth_1pct"`
	BidDepth5Pct float64   `json:"bid_depth_5pct"`
	AskDepth5Pct float64   `json:"ask_depth_5pct"`
	Imbalance    float64   `json:"imbalance"`
}

// OrderBookLatestRaw keeps the full ladder for one token, upserted on each
// fetch. Used for slippage and 10% depth without unbounded history growth.
type OrderBookLatestRaw struct {
	TokenID   string    `json:"token_id"`
	MarketID  string    `json:"market_id"`
	Timestamp time.Time `json:"timestamp"`
	Bids      []Level   `json:"bids"`
	Asks      []Level   `json:"asks"`
}

// BidsJSON serializes the bid ladder for storage.
func (r *OrderBookLatestRaw) BidsJSON() ([]byte, error) { return json.Marshal(r.Bids) }

// AsksJSON serializes the ask ladder for storage.
func (r *OrderBookLatestRaw) AsksJSON() ([]byte, error) { return json.Marshal(r.Asks) }

// BestBid returns the first valid bid price, 0 when none.
func (b *Book) BestBid() float64 { return firstValidPrice(b.Bids) }

// BestAsk returns the first valid ask price, 0 when none.
func (b *Book) BestAsk() float64 { return firstValidPrice(b.Asks) }

func firstValidPrice(levels []Level) float64 {
	for _, l := range levels {
		if l.Valid() {
			return l.Price
		}
	}
	return 0
}

// BidDepth sums dollar value (price times shares) of bid levels whose price
// is within pct of the best bid.
func (b *Book) BidDepth(pct float64) float64 {
	best := b.BestBid()
	if best == 0 {
		return 0
	}
	threshold := best * (1 - pct)
	var depth float64
	for _, l := range b.Bids {
		if l.Valid() && l.Price >= threshold {
			depth += l.Price * l.Size
		}
	}
	return depth
}

// AskDepth sums dollar value of ask levels whose price is within pct of the
// best ask.
func (b *Book) AskDepth(pct float64) float64 {
	best := b.BestAsk()
	if best == 0 {
		return 0
	}
	threshold := best * (1 + pct)
	var depth float64
	for _, l := range b.Asks {
		if l.Valid() && l.Price <= threshold {
			depth += l.Price * l.Size
		}
	}
	return depth
}

// Snapshot computes all persisted metrics from the ladders. Spread, mid and
// spread fraction are only defined when both sides quote; they are zero
// otherwise. Imbalance is zero when both depths are zero.
func (b *Book) Snapshot(tokenID, marketID string, ts time.Time) *OrderBookSnapshot {
	s := &OrderBookSnapshot{
		TokenID:      tokenID,
		MarketID:     marketID,
		Timestamp:    ts,
		BestBid:      b.BestBid(),
		BestAsk:      b.BestAsk(),
		BidDepth1Pct: b.BidDepth(0.01),
		AskDepth1Pct: b.AskDepth(0.01),
		BidDepth5Pct: b.BidDepth(0.05),
		AskDepth5Pct: b.AskDepth(0.05),
	}

	if s.BestBid > 0 && s.BestAsk > 0 {
		s.Spread = s.BestAsk - s.BestBid
		s.MidPrice = (s.BestBid + s.BestAsk) / 2
		if s.MidPrice > 0 {
			s.SpreadPct = s.Spread / s.MidPrice
		}
	}

	total := s.BidDepth1Pct + s.AskDepth1Pct
	if total > 0 {
		s.Imbalance = (s.BidDepth1Pct - s.AskDepth1Pct) / total
	}

	return s
}

// SlippageEstimate is the result of walking a ladder with a dollar order.
type SlippageEstimate struct {
	TokenID            string  `json:"token_id"`
	Side               string  `json:"side"`
	RequestedDollars   float64 `json:"requested_dollars"`
	FilledDollars      float64 `json:"filled_dollars"`
	FilledShares       float64 `json:"filled_shares"`
	UnfilledDollars    float64 `json:"unfilled_dollars"`
	BestPrice          float64 `json:"best_price"`
	ExpectedPrice      float64 `json:"expected_price"`
	SlippagePct        float64 `json:"slippage_pct"`
	LevelsConsumed     int     `json:"levels_consumed"`
	SnapshotAgeSeconds float64 `json:"snapshot_age_seconds"`
}

// EstimateSlippage walks a ladder best-first with a dollar-denominated
// order. A buy walks asks, a sell walks bids. Each level's dollar capacity
// is price times size; a partially consumed level fills remaining/price
// shares.
func EstimateSlippage(ladder []Level, dollars float64, side string) *SlippageEstimate {
	est := &SlippageEstimate{
		Side:             side,
		RequestedDollars: dollars,
		BestPrice:        firstValidPrice(ladder),
	}
	if dollars <= 0 || est.BestPrice == 0 {
		est.UnfilledDollars = dollars
		return est
	}

	remaining := dollars
	for _, l := range ladder {
		if !l.Valid() {
			continue
		}
		capacity := l.Price * l.Size
		est.LevelsConsumed++
		if remaining <= capacity {
			est.FilledShares += remaining / l.Price
			est.FilledDollars += remaining
			remaining = 0
			break
		}
		est.FilledShares += l.Size
		est.FilledDollars += capacity
		remaining -= capacity
	}

	est.UnfilledDollars = remaining
	if est.FilledShares > 0 {
		est.ExpectedPrice = est.FilledDollars / est.FilledShares
		est.SlippagePct = math.Abs(est.ExpectedPrice-est.BestPrice) / est.BestPrice
	}
	return est
}
