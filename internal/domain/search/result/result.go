// Package result defines the normalized search result shape shared by the
// semantic and keyword paths.
package result

import (
	"github.com/arcadia-shop/persona/internal/domain/product"
	"github.com/arcadia-shop/persona/internal/domain/search/mode"
)

// Result is the normalized outcome of a search. Mode always reports the
// strategy that actually served the request; FallbackReason is set only when
// a semantic request was served by the keyword path.
type Result struct {
	Products        []product.Product
	Scores          map[string]float64
	Mode            mode.Mode
	TotalResults    int
	ExecutionTimeMs float64
	FallbackReason  string
}

// Empty returns a valid zero-hit result for the given mode.
// An empty match set is not an error.
func Empty(m mode.Mode) Result {
	return Result{
		Products:     []product.Product{},
		Scores:       map[string]float64{},
		Mode:         m,
		TotalResults: 0,
	}
}
