package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBook_DropsUnparseableLevels(t *testing.T) {
	resp := &BookResponse{
		Bids: []PriceLevel{
			{Price: "0.50", Size: "100"},
			{Price: "bogus", Size: "10"},
			{Price: "0.49", Size: "200"},
		},
		Asks: []PriceLevel{
			{Price: "0.52", Size: "100"},
		},
	}

	book := ParseBook(resp)

	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, 0.50, book.Bids[0].Price)
	assert.Equal(t, 200.0, book.Bids[1].Size)
}

func TestSnapshot_SpreadAndMidExact(t *testing.T) {
	book := &Book{
		Bids: []Level{{Price: 0.48, Size: 100}},
		Asks: []Level{{Price: 0.52, Size: 100}},
	}

	s := book.Snapshot("tok", "mkt", time.Now().UTC())

	assert.Equal(t, s.BestAsk-s.BestBid, s.Spread)
	assert.Equal(t, (s.BestAsk+s.BestBid)/2, s.MidPrice)
	assert.InDelta(t, 0.08, s.SpreadPct, 1e-12)
}

func TestSnapshot_SkipsInvalidTopLevels(t *testing.T) {
	book := &Book{
		Bids: []Level{{Price: 0.50, Size: 0}, {Price: 0.49, Size: 100}},
		Asks: []Level{{Price: 0, Size: 50}, {Price: 0.53, Size: 100}},
	}

	s := book.Snapshot("tok", "mkt", time.Now().UTC())

	assert.Equal(t, 0.49, s.BestBid)
	assert.Equal(t, 0.53, s.BestAsk)
}

func TestBidDepth_DollarDenominated(t *testing.T) {
	// Bids (0.50, 100), (0.49, 200). At 1% the threshold is 0.495 so only
	// the top level qualifies: 0.50*100 = 50. At 5% both qualify: 50+98.
	book := &Book{
		Bids: []Level{{Price: 0.50, Size: 100}, {Price: 0.49, Size: 200}},
	}

	assert.InDelta(t, 50.0, book.BidDepth(0.01), 1e-9)
	assert.InDelta(t, 148.0, book.BidDepth(0.05), 1e-9)
}

func TestDepth_HomogeneousInSize(t *testing.T) {
	book := &Book{
		Bids: []Level{{Price: 0.50, Size: 100}, {Price: 0.49, Size: 200}},
		Asks: []Level{{Price: 0.52, Size: 150}, {Price: 0.55, Size: 300}},
	}
	doubled := &Book{
		Bids: []Level{{Price: 0.50, Size: 200}, {Price: 0.49, Size: 400}},
		Asks: []Level{{Price: 0.52, Size: 300}, {Price: 0.55, Size: 600}},
	}

	for _, pct := range []float64{0.01, 0.05, 0.10} {
		assert.InDelta(t, 2*book.BidDepth(pct), doubled.BidDepth(pct), 1e-9)
		assert.InDelta(t, 2*book.AskDepth(pct), doubled.AskDepth(pct), 1e-9)
	}
}

func TestSnapshot_Imbalance(t *testing.T) {
	tests := []struct {
		name string
		book *Book
		want float64
	}{
		{
			name: "buy pressure",
			book: &Book{
				Bids: []Level{{Price: 0.50, Size: 300}},
				Asks: []Level{{Price: 0.52, Size: 100}},
			},
			// bid depth 150, ask depth 52
			want: (150.0 - 52.0) / (150.0 + 52.0),
		},
		{
			name: "empty book",
			book: &Book{},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.book.Snapshot("tok", "mkt", time.Now().UTC())
			assert.InDelta(t, tt.want, s.Imbalance, 1e-9)
		})
	}
}

func TestEstimateSlippage_WalksLevels(t *testing.T) {
	// Asks (0.52, 100sh), (0.53, 200sh), (0.54, 300sh); buy $250.
	// Capacities $52 and $106 consumed, remaining $92 fills at 0.54.
	asks := []Level{
		{Price: 0.52, Size: 100},
		{Price: 0.53, Size: 200},
		{Price: 0.54, Size: 300},
	}

	est := EstimateSlippage(asks, 250, "buy")

	assert.Equal(t, 250.0, est.FilledDollars)
	assert.Equal(t, 0.0, est.UnfilledDollars)
	assert.Equal(t, 3, est.LevelsConsumed)
	assert.InDelta(t, 100+200+92.0/0.54, est.FilledShares, 1e-6)
	assert.InDelta(t, 0.5315, est.ExpectedPrice, 0.0001)
	assert.InDelta(t, 0.022, est.SlippagePct, 0.001)
}

func TestEstimateSlippage_PartialFill(t *testing.T) {
	asks := []Level{{Price: 0.50, Size: 100}} // $50 capacity

	est := EstimateSlippage(asks, 200, "buy")

	assert.Equal(t, 50.0, est.FilledDollars)
	assert.Equal(t, 150.0, est.UnfilledDollars)
	assert.Equal(t, 100.0, est.FilledShares)
	assert.InDelta(t, 0.50, est.ExpectedPrice, 1e-9)
	assert.Equal(t, 0.0, est.SlippagePct)
}

func TestEstimateSlippage_EmptyLadder(t *testing.T) {
	est := EstimateSlippage(nil, 100, "buy")

	assert.Equal(t, 100.0, est.UnfilledDollars)
	assert.Equal(t, 0.0, est.FilledShares)
	assert.Equal(t, 0, est.LevelsConsumed)
}
