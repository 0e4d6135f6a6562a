package upstream

import (
	"context"
	"fmt"
	"net/url"

	"github.com/polyscope/polyscope/pkg/types"
)

// FetchBook fetches the current order book for a token.
func (c *Client) FetchBook(ctx context.Context, tokenID string) (*types.Book, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	requestURL := fmt.Sprintf("%s/book?%s", c.clobURL, params.Encode())

	var resp types.BookResponse
	err := c.getJSON(ctx, "book", requestURL, false, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch book for %s: %w", tokenID, err)
	}

	return types.ParseBook(&resp), nil
}
