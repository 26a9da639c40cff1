package search

import (
	"context"

	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/domain/product"
	"github.com/arcadia-shop/persona/internal/repository/corpus"
)

// Embedder produces the query embedding for the semantic path.
type Embedder = domain.Embedder

// QueryCache is the cache-aside store for query embeddings.
type QueryCache interface {
	Get(ctx context.Context, query string) ([]float64, bool)
	Set(ctx context.Context, query string, vec []float64)
}

// CorpusSearcher runs KNN over the product vector corpus.
type CorpusSearcher interface {
	SearchKNN(ctx context.Context, queryVector []float64, k int, category string) ([]corpus.Hit, error)
}

// KeywordCatalog runs deterministic substring search over the catalog.
type KeywordCatalog interface {
	KeywordSearch(ctx context.Context, text, category string, limit, offset int) ([]product.Product, int, error)
}
