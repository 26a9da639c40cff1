package persona

import (
	"context"
	"net/url"
	"strconv"
)

// SearchParams are the search request parameters. Query is required;
// everything else falls back to server defaults.
type SearchParams struct {
	Query         string
	Mode          string // "semantic" (default) or "keyword"
	Limit         int
	Offset        int
	MinSimilarity float64
	Category      string
}

// Search runs a product search.
func (c *Client) Search(ctx context.Context, p SearchParams) (SearchResult, error) {
	params := url.Values{}
	params.Set("q", p.Query)
	if p.Mode != "" {
		params.Set("mode", p.Mode)
	}
	if p.Limit > 0 {
		params.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		params.Set("offset", strconv.Itoa(p.Offset))
	}
	if p.MinSimilarity > 0 {
		params.Set("min_similarity", strconv.FormatFloat(p.MinSimilarity, 'f', -1, 64))
	}
	if p.Category != "" {
		params.Set("category", p.Category)
	}

	var res SearchResult
	if err := c.get(ctx, "/api/v1/search", params, &res); err != nil {
		return SearchResult{}, err
	}
	return res, nil
}
