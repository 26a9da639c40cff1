package persona

import "context"

// CacheStats reports the query embedding cache hit rate and the current
// dead-letter queue depth.
func (c *Client) CacheStats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats
	if err := c.get(ctx, "/api/v1/cache/stats", nil, &stats); err != nil {
		return CacheStats{}, err
	}
	return stats, nil
}

// ClearCache drops all cached query embeddings.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.delete(ctx, "/api/v1/cache")
}

// Health checks the service health. A degraded service still answers
// searches in keyword mode.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.get(ctx, "/health", nil, &h); err != nil {
		return Health{}, err
	}
	return h, nil
}
