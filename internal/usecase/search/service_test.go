package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/domain/product"
	"github.com/arcadia-shop/persona/internal/domain/search/mode"
	"github.com/arcadia-shop/persona/internal/domain/search/query"
	"github.com/arcadia-shop/persona/internal/domain/search/result"
	"github.com/arcadia-shop/persona/internal/domain/vector"
	"github.com/arcadia-shop/persona/internal/repository/corpus"
)

// --- Mocks ---

type mockEmbedder struct {
	vec   []float64
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockCache struct {
	data map[string][]float64
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]float64)} }

func (m *mockCache) Get(_ context.Context, q string) ([]float64, bool) {
	v, ok := m.data[q]
	return v, ok
}

func (m *mockCache) Set(_ context.Context, q string, vec []float64) {
	m.sets++
	m.data[q] = vec
}

type mockCorpus struct {
	hits []corpus.Hit
	err  error
	gotK int
	cat  string
}

func (m *mockCorpus) SearchKNN(_ context.Context, _ []float64, k int, category string) ([]corpus.Hit, error) {
	m.gotK = k
	m.cat = category
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

type mockCatalog struct {
	products []product.Product
	total    int
	err      error
}

func (m *mockCatalog) KeywordSearch(
	_ context.Context, _, _ string, _, _ int,
) ([]product.Product, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.products, m.total, nil
}

func hit(id string, score float64) corpus.Hit {
	return corpus.Hit{
		Product: product.New(id, "Product "+id, "", "audio", 1999),
		Score:   score,
	}
}

func mustQuery(t *testing.T, text, rawMode string, limit, offset int, minSim float64) query.Query {
	t.Helper()
	q, err := query.New(text, rawMode, limit, offset, minSim, "")
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return q
}

// --- Semantic ---

func TestSemantic_FiltersAndPaginates(t *testing.T) {
	c := &mockCorpus{hits: []corpus.Hit{
		hit("p1", 0.95), hit("p2", 0.9), hit("p3", 0.7), hit("p4", 0.5),
	}}
	svc := NewSemanticService(&mockEmbedder{vec: make([]float64, vector.Dim)}, newMockCache(), c, 200, zap.NewNop())

	res, err := svc.Search(context.Background(), mustQuery(t, "headphones", "", 2, 0, 0.6))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Mode != mode.Semantic {
		t.Errorf("mode = %q, want semantic", res.Mode)
	}
	if res.TotalResults != 3 {
		t.Errorf("total = %d, want 3 (p4 below floor)", res.TotalResults)
	}
	if len(res.Products) != 2 {
		t.Fatalf("page size = %d, want 2", len(res.Products))
	}
	if res.Products[0].ID() != "p1" || res.Products[1].ID() != "p2" {
		t.Errorf("unexpected page: %s, %s", res.Products[0].ID(), res.Products[1].ID())
	}
	if res.Scores["p1"] != 0.95 {
		t.Errorf("score p1 = %v, want 0.95", res.Scores["p1"])
	}
	if c.gotK != 200 {
		t.Errorf("candidates = %d, want 200", c.gotK)
	}
}

func TestSemantic_Offset(t *testing.T) {
	c := &mockCorpus{hits: []corpus.Hit{hit("p1", 0.9), hit("p2", 0.8), hit("p3", 0.7)}}
	svc := NewSemanticService(&mockEmbedder{vec: make([]float64, vector.Dim)}, newMockCache(), c, 200, zap.NewNop())

	res, err := svc.Search(context.Background(), mustQuery(t, "headphones", "", 2, 2, 0.6))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Products) != 1 || res.Products[0].ID() != "p3" {
		t.Errorf("unexpected page: %+v", res.Products)
	}
	if res.TotalResults != 3 {
		t.Errorf("total = %d, want 3", res.TotalResults)
	}
}

func TestSemantic_OffsetBeyondMatches(t *testing.T) {
	c := &mockCorpus{hits: []corpus.Hit{hit("p1", 0.9)}}
	svc := NewSemanticService(&mockEmbedder{vec: make([]float64, vector.Dim)}, newMockCache(), c, 200, zap.NewNop())

	res, err := svc.Search(context.Background(), mustQuery(t, "headphones", "", 10, 50, 0.6))
	if err != nil {
		t.Fatalf("offset beyond matches must not error: %v", err)
	}
	if len(res.Products) != 0 {
		t.Errorf("expected empty page, got %d", len(res.Products))
	}
}

// A floor of 0.9 with no hits above it is an empty result, not an error.
func TestSemantic_HighFloorEmptyResult(t *testing.T) {
	c := &mockCorpus{hits: []corpus.Hit{hit("p1", 0.7), hit("p2", 0.65)}}
	svc := NewSemanticService(&mockEmbedder{vec: make([]float64, vector.Dim)}, newMockCache(), c, 200, zap.NewNop())

	res, err := svc.Search(context.Background(), mustQuery(t, "headphones", "", 10, 0, 0.9))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.TotalResults != 0 || len(res.Products) != 0 {
		t.Errorf("expected empty result, got total=%d", res.TotalResults)
	}
}

func TestSemantic_CacheAside(t *testing.T) {
	emb := &mockEmbedder{vec: make([]float64, vector.Dim)}
	cache := newMockCache()
	c := &mockCorpus{}
	svc := NewSemanticService(emb, cache, c, 200, zap.NewNop())

	q := mustQuery(t, "wireless headphones", "", 0, 0, 0)
	for i := 0; i < 3; i++ {
		if _, err := svc.Search(context.Background(), q); err != nil {
			t.Fatalf("Search: %v", err)
		}
	}

	if emb.calls != 1 {
		t.Errorf("embedder calls = %d, want 1 (cache hit after first)", emb.calls)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}
}

func TestSemantic_EmbedderFailure(t *testing.T) {
	emb := &mockEmbedder{err: fmt.Errorf("down: %w", domain.ErrEmbeddingProviderError)}
	svc := NewSemanticService(emb, newMockCache(), &mockCorpus{}, 200, zap.NewNop())

	if _, err := svc.Search(context.Background(), mustQuery(t, "headphones", "", 0, 0, 0)); err == nil {
		t.Fatal("expected error")
	}
}

// --- Keyword ---

func TestKeyword_AllScoresOne(t *testing.T) {
	cat := &mockCatalog{
		products: []product.Product{
			product.New("p1", "Headphones", "", "audio", 1999),
			product.New("p2", "Headphone Stand", "", "audio", 999),
		},
		total: 7,
	}
	svc := NewKeywordService(cat)

	res, err := svc.Search(context.Background(), mustQuery(t, "headphone", "keyword", 2, 0, 0))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Mode != mode.Keyword {
		t.Errorf("mode = %q, want keyword", res.Mode)
	}
	if res.TotalResults != 7 {
		t.Errorf("total = %d, want 7", res.TotalResults)
	}
	for id, score := range res.Scores {
		if score != 1.0 {
			t.Errorf("score[%s] = %v, want 1.0", id, score)
		}
	}
}

func TestKeyword_EmptyResult(t *testing.T) {
	svc := NewKeywordService(&mockCatalog{})

	res, err := svc.Search(context.Background(), mustQuery(t, "zzzz", "keyword", 0, 0, 0))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Products == nil || res.Scores == nil {
		t.Error("empty result must have non-nil slices and maps")
	}
}

// --- Facade ---

type stubSearcher struct {
	res   result.Result
	err   error
	calls int
}

func (s *stubSearcher) Search(_ context.Context, _ query.Query) (result.Result, error) {
	s.calls++
	return s.res, s.err
}

func TestFacade_SemanticServed(t *testing.T) {
	sem := &stubSearcher{res: result.Empty(mode.Semantic)}
	kw := &stubSearcher{res: result.Empty(mode.Keyword)}
	f := NewFacade(sem, kw, zap.NewNop())

	res, err := f.Search(context.Background(), mustQuery(t, "headphones", "", 0, 0, 0))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Mode != mode.Semantic || res.FallbackReason != "" {
		t.Errorf("unexpected result: mode=%q fallback=%q", res.Mode, res.FallbackReason)
	}
	if kw.calls != 0 {
		t.Error("keyword path must not run when semantic succeeds")
	}
}

func TestFacade_FallbackReportsHonestMode(t *testing.T) {
	sem := &stubSearcher{err: errors.New("breaker open")}
	kw := &stubSearcher{res: result.Empty(mode.Keyword)}
	f := NewFacade(sem, kw, zap.NewNop())

	res, err := f.Search(context.Background(), mustQuery(t, "headphones", "", 0, 0, 0))
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if res.Mode != mode.Keyword {
		t.Errorf("mode = %q, want keyword", res.Mode)
	}
	if res.FallbackReason == "" {
		t.Error("fallback reason must be set")
	}
}

func TestFacade_KeywordRequestedNeverSemantic(t *testing.T) {
	sem := &stubSearcher{res: result.Empty(mode.Semantic)}
	kw := &stubSearcher{res: result.Empty(mode.Keyword)}
	f := NewFacade(sem, kw, zap.NewNop())

	_, err := f.Search(context.Background(), mustQuery(t, "headphones", "keyword", 0, 0, 0))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if sem.calls != 0 {
		t.Error("semantic path must not run for keyword requests")
	}
	if kw.calls != 1 {
		t.Errorf("keyword calls = %d, want 1", kw.calls)
	}
}

func TestFacade_BothPathsFail(t *testing.T) {
	sem := &stubSearcher{err: errors.New("semantic down")}
	kw := &stubSearcher{err: errors.New("catalog down")}
	f := NewFacade(sem, kw, zap.NewNop())

	if _, err := f.Search(context.Background(), mustQuery(t, "headphones", "", 0, 0, 0)); err == nil {
		t.Fatal("expected error when both paths fail")
	}
}

// Semantic zero hits is a valid answer, not a fallback trigger.
func TestFacade_EmptySemanticIsNotFallback(t *testing.T) {
	sem := &stubSearcher{res: result.Empty(mode.Semantic)}
	kw := &stubSearcher{res: result.Empty(mode.Keyword)}
	f := NewFacade(sem, kw, zap.NewNop())

	res, err := f.Search(context.Background(), mustQuery(t, "obscure thing", "", 0, 0, 0))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Mode != mode.Semantic || kw.calls != 0 {
		t.Error("empty semantic result must be served as-is")
	}
}

func TestFacade_MeasuresExecutionTime(t *testing.T) {
	sem := &stubSearcher{res: result.Empty(mode.Semantic)}
	f := NewFacade(sem, &stubSearcher{}, zap.NewNop())

	res, err := f.Search(context.Background(), mustQuery(t, "headphones", "", 0, 0, 0))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.ExecutionTimeMs < 0 {
		t.Errorf("execution time = %v, want >= 0", res.ExecutionTimeMs)
	}
}
