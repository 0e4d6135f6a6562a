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
	// MarketPageSize is the number of markets fetched per request.
	MarketPageSize = 100

	// MaxMarketPages caps pagination so a misbehaving upstream cannot loop
	// the sync forever.
	MaxMarketPages = 50
)

// FetchActiveMarkets pages through all active, non-closed markets. Pagination
// stops at the first short page or at the safety cap.
func (c *Client) FetchActiveMarkets(ctx context.Context) ([]*types.Market, error) {
	var all []*types.Market

	for page := 0; page < MaxMarketPages; page++ {
		offset := page * MarketPageSize

		params := url.Values{}
		params.Set("active", "true")
		params.Set("closed", "false")
		params.Set("limit", strconv.Itoa(MarketPageSize))
		params.Set("offset", strconv.Itoa(offset))
		requestURL := fmt.Sprintf("%s/markets?%s", c.gammaURL, params.Encode())

		var batch []*types.Market
		err := c.getJSON(ctx, "markets", requestURL, false, &batch)
		if err != nil {
			return nil, fmt.Errorf("fetch markets page %d: %w", page, err)
		}

		all = append(all, batch...)
		c.logger.Debug("fetched-markets-page",
			zap.Int("page", page),
			zap.Int("markets", len(batch)),
			zap.Int("total", len(all)))

		if len(batch) < MarketPageSize {
			break
		}
	}

	MarketsFetchedTotal.Add(float64(len(all)))
	return all, nil
}
