package persona

import "time"

// Product is a catalog product with its relevance score.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	PriceCents  int64   `json:"price_cents"`
	Score       float64 `json:"score"`
}

// SearchResult is the outcome of a search request. Mode reports the
// strategy that actually served the request; FallbackReason is set when
// a semantic request was served by the keyword path.
type SearchResult struct {
	Products        []Product `json:"products"`
	Mode            string    `json:"mode"`
	TotalResults    int       `json:"total_results"`
	ExecutionTimeMs float64   `json:"execution_time_ms"`
	FallbackReason  string    `json:"fallback_reason,omitempty"`
}

// Profile is a user's interest profile metadata. The raw vector is not
// exposed over the API.
type Profile struct {
	UserID        string    `json:"user_id"`
	Version       int       `json:"version"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Dimensions    int       `json:"dimensions"`
}

// Recommendations is a ranked product list for a user.
type Recommendations struct {
	UserID   string    `json:"user_id"`
	Products []Product `json:"products"`
}

// Event is a behavioral event to publish. EventType is one of
// "product_view", "product_click", "product_purchase", "search".
type Event struct {
	MessageID    string    `json:"message_id"`
	UserID       string    `json:"user_id"`
	EventType    string    `json:"event_type"`
	ProductID    string    `json:"product_id,omitempty"`
	SearchPhrase string    `json:"search_phrase,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// CacheStats reports query-cache effectiveness and dead-letter depth.
type CacheStats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	DeadLetter int64   `json:"dead_letter_depth"`
}

// Health is the aggregated service health.
type Health struct {
	Status       string            `json:"status"`
	Checks       map[string]string `json:"checks"`
	BreakerState string            `json:"breaker_state,omitempty"`
}
