// Package corpus maintains the product vector search corpus: product
// embeddings stored as hashes under an HNSW FT index, synced from the
// catalog and queried by the semantic search path.
package corpus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/arcadia-shop/persona/internal/db"
	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/domain/product"
	"github.com/arcadia-shop/persona/internal/domain/vector"
)

const indexName = "persona-corpus"

var corpusKeyPrefix = domain.KeyPrefix + "corpus:"

const (
	fieldVector      = "vector"
	fieldName        = "name"
	fieldDescription = "description"
	fieldCategory    = "category"
	fieldPriceCents  = "price_cents"

	// fieldScore is the distance FT.SEARCH computes for the KNN clause. A
	// RETURN clause suppresses everything it does not list, so the score
	// field must be requested explicitly or every hit comes back scoreless.
	fieldScore = "__vector_score"
)

// store is the consumer interface for the corpus (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Hit is a corpus product with its cosine similarity to the query vector.
type Hit struct {
	Product product.Product
	Score   float64
}

// Corpus is the product vector search corpus.
type Corpus struct {
	store       store
	hnswM       int
	efConstruct int
}

// New creates a corpus over the given store.
func New(s store, hnswM, efConstruct int) *Corpus {
	return &Corpus{store: s, hnswM: hnswM, efConstruct: efConstruct}
}

// EnsureIndex creates the corpus FT index if it does not exist yet.
func (c *Corpus) EnsureIndex(ctx context.Context) error {
	exists, err := c.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check corpus index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     indexName,
		Prefixes: []string{corpusKeyPrefix},
		Fields: []db.IndexField{
			{Name: fieldCategory, Type: db.IndexFieldTag},
			{Name: fieldPriceCents, Type: db.IndexFieldNumeric},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         vector.Dim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           c.hnswM,
				VectorEFConstruct: c.efConstruct,
			},
		},
	}
	if err := c.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create corpus index: %w", err)
	}
	return nil
}

// Upsert writes a product and its embedding into the corpus.
func (c *Corpus) Upsert(ctx context.Context, p product.Product, vec []float64) error {
	if err := vector.CheckDim(vec); err != nil {
		return fmt.Errorf("corpus product %s: %w", p.ID(), err)
	}
	fields := map[string]string{
		fieldVector:      string(vectorToBytes(vec)),
		fieldName:        p.Name(),
		fieldDescription: p.Description(),
		fieldCategory:    p.Category(),
		fieldPriceCents:  strconv.FormatInt(p.PriceCents(), 10),
	}
	if err := c.store.HSet(ctx, corpusKey(p.ID()), fields); err != nil {
		return fmt.Errorf("upsert corpus product %s: %w", p.ID(), err)
	}
	return nil
}

// Delete removes a product from the corpus.
func (c *Corpus) Delete(ctx context.Context, productID string) error {
	if err := c.store.Del(ctx, corpusKey(productID)); err != nil {
		return fmt.Errorf("delete corpus product %s: %w", productID, err)
	}
	return nil
}

// SearchKNN returns the k corpus products nearest to the query vector,
// optionally pre-filtered by category. Hits come back ordered by score
// descending.
func (c *Corpus) SearchKNN(ctx context.Context, queryVector []float64, k int, category string) ([]Hit, error) {
	if err := vector.CheckDim(queryVector); err != nil {
		return nil, fmt.Errorf("corpus query: %w", err)
	}

	res, err := c.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		Vector:       queryVector,
		K:            k,
		CategoryTag:  category,
		ReturnFields: []string{fieldName, fieldDescription, fieldCategory, fieldPriceCents, fieldScore},
	})
	if err != nil {
		return nil, fmt.Errorf("corpus knn: %w", err)
	}

	hits := make([]Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		priceCents, _ := strconv.ParseInt(e.Fields[fieldPriceCents], 10, 64)
		hits = append(hits, Hit{
			Product: product.New(
				productID(e.Key),
				e.Fields[fieldName],
				e.Fields[fieldDescription],
				e.Fields[fieldCategory],
				priceCents,
			),
			Score: e.Score,
		})
	}
	return hits, nil
}

func corpusKey(productID string) string {
	return corpusKeyPrefix + productID
}

func productID(key string) string {
	if len(key) > len(corpusKeyPrefix) {
		return key[len(corpusKeyPrefix):]
	}
	return key
}

func vectorToBytes(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}
