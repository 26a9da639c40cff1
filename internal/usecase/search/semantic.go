// Package search implements product search: vector similarity over the
// corpus, deterministic keyword matching, and the facade that degrades from
// one to the other.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/domain/product"
	"github.com/arcadia-shop/persona/internal/domain/search/mode"
	"github.com/arcadia-shop/persona/internal/domain/search/query"
	"github.com/arcadia-shop/persona/internal/domain/search/result"
)

// SemanticService ranks products by cosine similarity between the query
// embedding and the corpus vectors.
type SemanticService struct {
	embedder   Embedder
	cache      QueryCache
	corpus     CorpusSearcher
	candidates int
	logger     *zap.Logger
}

// NewSemanticService creates the semantic search path. candidates is how many
// corpus hits are fetched before the similarity floor and pagination apply.
func NewSemanticService(
	embedder Embedder, cache QueryCache, corpus CorpusSearcher, candidates int, logger *zap.Logger,
) *SemanticService {
	return &SemanticService{
		embedder:   embedder,
		cache:      cache,
		corpus:     corpus,
		candidates: candidates,
		logger:     logger,
	}
}

// Search runs the semantic path: cache-aside query embedding, corpus KNN,
// similarity floor, then pagination. Scores are cosine similarity in [0,1].
func (s *SemanticService) Search(ctx context.Context, q query.Query) (result.Result, error) {
	queryVector, err := s.queryEmbedding(ctx, q.Text())
	if err != nil {
		return result.Result{}, err
	}

	hits, err := s.corpus.SearchKNN(ctx, queryVector, s.candidates, q.Category())
	if err != nil {
		return result.Result{}, fmt.Errorf("semantic search: %w", err)
	}

	// KNN returns hits ordered by score descending; keep only those at or
	// above the floor. Pagination applies after filtering.
	matched := hits[:0:0]
	for _, h := range hits {
		if h.Score >= q.MinSimilarity() {
			matched = append(matched, h)
		}
	}

	res := result.Empty(mode.Semantic)
	res.TotalResults = len(matched)

	start := q.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit()
	if end > len(matched) {
		end = len(matched)
	}

	res.Products = make([]product.Product, 0, end-start)
	for _, h := range matched[start:end] {
		res.Products = append(res.Products, h.Product)
		res.Scores[h.Product.ID()] = h.Score
	}
	return res, nil
}

// queryEmbedding returns the query vector, consulting the cache first.
func (s *SemanticService) queryEmbedding(ctx context.Context, text string) ([]float64, error) {
	if vec, ok := s.cache.Get(ctx, text); ok {
		return vec, nil
	}

	embRes, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	s.cache.Set(ctx, text, embRes.Embedding)
	return embRes.Embedding, nil
}
