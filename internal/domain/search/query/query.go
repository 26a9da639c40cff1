// Package query defines the validated search query value type.
package query

import (
	"fmt"
	"strings"

	"github.com/arcadia-shop/persona/internal/domain/search/mode"
)

// Bounds for query parameters. Out-of-range numeric values are clamped,
// only the query text itself is rejected.
const (
	MinTextLen = 2
	MaxTextLen = 500

	DefaultLimit = 10
	MaxLimit     = 100

	DefaultMinSimilarity = 0.6
)

// Query is a validated product search request.
type Query struct {
	text          string
	mode          mode.Mode
	limit         int
	offset        int
	minSimilarity float64
	category      string
}

// New validates and clamps the raw parameters into a Query.
// The mode string is normalized case-insensitively, defaulting to semantic.
func New(text, rawMode string, limit, offset int, minSimilarity float64, category string) (Query, error) {
	text = strings.TrimSpace(text)
	if len(text) < MinTextLen || len(text) > MaxTextLen {
		return Query{}, fmt.Errorf("query text must be %d-%d characters, got %d",
			MinTextLen, MaxTextLen, len(text))
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	// An explicit 0 floor is valid; absence is the caller's knowledge, so
	// defaulting happens where the raw parameters are parsed.
	if minSimilarity < 0 {
		minSimilarity = 0
	}
	if minSimilarity > 1 {
		minSimilarity = 1
	}

	return Query{
		text:          text,
		mode:          mode.Normalize(rawMode),
		limit:         limit,
		offset:        offset,
		minSimilarity: minSimilarity,
		category:      strings.TrimSpace(category),
	}, nil
}

// Text returns the search phrase.
func (q Query) Text() string { return q.text }

// Mode returns the requested search strategy.
func (q Query) Mode() mode.Mode { return q.mode }

// Limit returns the page size.
func (q Query) Limit() int { return q.limit }

// Offset returns the pagination offset.
func (q Query) Offset() int { return q.offset }

// MinSimilarity returns the semantic score floor in [0,1].
func (q Query) MinSimilarity() float64 { return q.minSimilarity }

// Category returns the optional exact category filter, empty when unset.
func (q Query) Category() string { return q.category }
