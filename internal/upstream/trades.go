package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

const (
	// TradePageSize is the number of trades fetched per request.
	TradePageSize = 1000

	// MaxTradePages caps the recent-trades crawl; collection runs often
	// enough that anything beyond this is stale.
	MaxTradePages = 5
)

// FetchRecentTrades pages through the public trades feed, newest first, up to
// MaxTradePages. No credentials are needed; filtering down to tracked tokens
// happens in the collector.
func (c *Client) FetchRecentTrades(ctx context.Context) ([]*types.Trade, error) {
	var all []*types.Trade

	for page := 0; page < MaxTradePages; page++ {
		offset := page * TradePageSize

		params := url.Values{}
		params.Set("limit", strconv.Itoa(TradePageSize))
		params.Set("offset", strconv.Itoa(offset))
		requestURL := fmt.Sprintf("%s/trades?%s", c.clobURL, params.Encode())

		var batch []*types.Trade
		err := c.getJSON(ctx, "trades", requestURL, false, &batch)
		if err != nil {
			return nil, fmt.Errorf("fetch trades page %d: %w", page, err)
		}

		all = append(all, batch...)
		c.logger.Debug("fetched-trades-page",
			zap.Int("page", page),
			zap.Int("trades", len(batch)),
			zap.Int("total", len(all)))

		if len(batch) < TradePageSize {
			break
		}
	}

	TradesFetchedTotal.Add(float64(len(all)))
	return all, nil
}

// FetchTokenTrades fetches recent trades for a single token from the signed
// trades feed.
func (c *Client) FetchTokenTrades(ctx context.Context, tokenID string, limit int) ([]*types.Trade, error) {
	if limit <= 0 || limit > TradePageSize {
		limit = TradePageSize
	}

	params := url.Values{}
	params.Set("asset_id", tokenID)
	params.Set("limit", strconv.Itoa(limit))
	requestURL := fmt.Sprintf("%s/trades?%s", c.clobURL, params.Encode())

	var trades []*types.Trade
	err := c.getJSON(ctx, "trades", requestURL, true, &trades)
	if err != nil {
		return nil, fmt.Errorf("fetch trades for %s: %w", tokenID, err)
	}
	return trades, nil
}
