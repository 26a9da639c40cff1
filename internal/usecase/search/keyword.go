package search

import (
	"context"
	"fmt"

	"github.com/arcadia-shop/persona/internal/domain/search/mode"
	"github.com/arcadia-shop/persona/internal/domain/search/query"
	"github.com/arcadia-shop/persona/internal/domain/search/result"
)

// keywordScore is the flat relevance assigned to every keyword match.
// Substring matching has no ranking signal, so all hits score the same.
const keywordScore = 1.0

// KeywordService matches products by case-insensitive substring search over
// name and description. It never touches the embedding provider.
type KeywordService struct {
	catalog KeywordCatalog
}

// NewKeywordService creates the keyword search path.
func NewKeywordService(catalog KeywordCatalog) *KeywordService {
	return &KeywordService{catalog: catalog}
}

// Search runs the keyword path.
func (s *KeywordService) Search(ctx context.Context, q query.Query) (result.Result, error) {
	products, total, err := s.catalog.KeywordSearch(ctx, q.Text(), q.Category(), q.Limit(), q.Offset())
	if err != nil {
		return result.Result{}, fmt.Errorf("keyword search: %w", err)
	}

	res := result.Empty(mode.Keyword)
	res.TotalResults = total
	for _, p := range products {
		res.Products = append(res.Products, p)
		res.Scores[p.ID()] = keywordScore
	}
	return res, nil
}
