package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/db"
	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/domain/event"
	domprofile "github.com/arcadia-shop/persona/internal/domain/profile"
	"github.com/arcadia-shop/persona/internal/domain/product"
	"github.com/arcadia-shop/persona/internal/domain/search/mode"
	"github.com/arcadia-shop/persona/internal/domain/search/query"
	"github.com/arcadia-shop/persona/internal/domain/search/result"
	"github.com/arcadia-shop/persona/internal/domain/vector"
	"github.com/arcadia-shop/persona/internal/repository/corpus"
	"github.com/arcadia-shop/persona/internal/repository/querycache"
	healthuc "github.com/arcadia-shop/persona/internal/usecase/health"
)

// --- Mocks ---

type mockSearch struct {
	res  result.Result
	err  error
	gotQ query.Query
}

func (m *mockSearch) Search(_ context.Context, q query.Query) (result.Result, error) {
	m.gotQ = q
	return m.res, m.err
}

type mockProfiles struct {
	profile domprofile.Profile
	getErr  error
	hits    []corpus.Hit
	recErr  error
}

func (m *mockProfiles) Get(_ context.Context, _ string) (domprofile.Profile, error) {
	if m.getErr != nil {
		return domprofile.Profile{}, m.getErr
	}
	return m.profile, nil
}

func (m *mockProfiles) Recommend(_ context.Context, _ string, _ int) ([]corpus.Hit, error) {
	if m.recErr != nil {
		return nil, m.recErr
	}
	return m.hits, nil
}

type mockPublisher struct {
	entryID string
	err     error
	got     event.Message
}

func (m *mockPublisher) Publish(_ context.Context, msg event.Message) (string, error) {
	m.got = msg
	if m.err != nil {
		return "", m.err
	}
	return m.entryID, nil
}

type mockDeadLetters struct {
	depth int64
}

func (m *mockDeadLetters) Len(_ context.Context) (int64, error) { return m.depth, nil }

type memStore struct {
	data map[string][]byte
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memStore) Del(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type okPinger struct{ err error }

func (p okPinger) Ping(_ context.Context) error { return p.err }

// --- Fixture ---

type serverFixture struct {
	search    *mockSearch
	profiles  *mockProfiles
	publisher *mockPublisher
	router    chi.Router
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		search:    &mockSearch{res: result.Empty(mode.Semantic)},
		profiles:  &mockProfiles{},
		publisher: &mockPublisher{entryID: "1-0"},
	}

	cache := querycache.New(&memStore{data: make(map[string][]byte)}, time.Hour, zap.NewNop())
	health := healthuc.New(okPinger{}, okPinger{}, nil, nil)

	srv := NewServer(f.search, f.profiles, cache, f.publisher, health, &mockDeadLetters{depth: 3}, zap.NewNop())
	f.router = chi.NewRouter()
	srv.Routes(f.router)
	return f
}

func (f *serverFixture) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return v
}

// --- Search ---

func TestHandleSearch_OK(t *testing.T) {
	f := newServerFixture()
	p := product.New("p1", "Headphones", "Over-ear", "audio", 4999)
	f.search.res = result.Result{
		Products:     []product.Product{p},
		Scores:       map[string]float64{"p1": 0.91},
		Mode:         mode.Semantic,
		TotalResults: 1,
	}

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=headphones&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decode[searchResponse](t, rec)
	if resp.Mode != "semantic" || resp.TotalResults != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Products) != 1 || resp.Products[0].Score != 0.91 {
		t.Errorf("unexpected products: %+v", resp.Products)
	}
	if f.search.gotQ.Limit() != 5 {
		t.Errorf("limit = %d, want 5", f.search.gotQ.Limit())
	}
}

func TestHandleSearch_MissingQuery(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decode[errorResponse](t, rec); resp.Code != codeValidationFailed {
		t.Errorf("code = %q, want %q", resp.Code, codeValidationFailed)
	}
}

func TestHandleSearch_BadNumericParams(t *testing.T) {
	f := newServerFixture()

	for _, target := range []string{
		"/api/v1/search?q=x&limit=abc",
		"/api/v1/search?q=x&offset=abc",
		"/api/v1/search?q=x&min_similarity=abc",
	} {
		if rec := f.do(t, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

// Absent min_similarity gets the default floor; an explicit 0 stays 0.
func TestHandleSearch_MinSimilarityPresence(t *testing.T) {
	f := newServerFixture()

	if rec := f.do(t, http.MethodGet, "/api/v1/search?q=headphones", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := f.search.gotQ.MinSimilarity(); got != query.DefaultMinSimilarity {
		t.Errorf("absent param: floor = %v, want default %v", got, query.DefaultMinSimilarity)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/search?q=headphones&min_similarity=0", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := f.search.gotQ.MinSimilarity(); got != 0 {
		t.Errorf("explicit 0: floor = %v, want 0", got)
	}
}

// The fallback reason sent to clients is generic; the real cause stays in logs.
func TestHandleSearch_SanitizesFallbackReason(t *testing.T) {
	f := newServerFixture()
	res := result.Empty(mode.Keyword)
	res.FallbackReason = "breaker open: redis @ 10.0.0.5 refused"
	f.search.res = res

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=headphones", "")
	resp := decode[searchResponse](t, rec)

	if resp.FallbackReason != "semantic search unavailable" {
		t.Errorf("fallback reason = %q, internals must not leak", resp.FallbackReason)
	}
	if resp.Mode != "keyword" {
		t.Errorf("mode = %q, want keyword", resp.Mode)
	}
}

func TestHandleSearch_InternalErrorHidesCause(t *testing.T) {
	f := newServerFixture()
	f.search.err = errors.New("dial tcp 10.0.0.5:6379: connection refused")

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=headphones", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decode[errorResponse](t, rec)
	if strings.Contains(resp.Message, "10.0.0.5") {
		t.Errorf("message leaks internals: %q", resp.Message)
	}
}

// --- Recommendations ---

func TestHandleRecommendations_OK(t *testing.T) {
	f := newServerFixture()
	f.profiles.hits = []corpus.Hit{
		{Product: product.New("p1", "Headphones", "", "audio", 4999), Score: 0.8},
	}

	rec := f.do(t, http.MethodGet, "/api/v1/recommendations?user_id=u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[recommendationsResponse](t, rec)
	if resp.UserID != "u1" || len(resp.Products) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleRecommendations_RequiresUserID(t *testing.T) {
	f := newServerFixture()

	if rec := f.do(t, http.MethodGet, "/api/v1/recommendations", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRecommendations_UnknownUser(t *testing.T) {
	f := newServerFixture()
	f.profiles.recErr = fmt.Errorf("profile u1: %w", domain.ErrProfileNotFound)

	rec := f.do(t, http.MethodGet, "/api/v1/recommendations?user_id=u1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// --- Profile ---

func TestHandleGetProfile_OK(t *testing.T) {
	f := newServerFixture()
	vec := make([]float64, vector.Dim)
	vec[0] = 1
	p, err := domprofile.FromEventEmbedding("u1", vec, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FromEventEmbedding: %v", err)
	}
	f.profiles.profile = p

	rec := f.do(t, http.MethodGet, "/api/v1/users/u1/profile", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[profileResponse](t, rec)
	if resp.UserID != "u1" || resp.Version != 1 || resp.Dimensions != vector.Dim {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleGetProfile_NotFound(t *testing.T) {
	f := newServerFixture()
	f.profiles.getErr = fmt.Errorf("profile ghost: %w", domain.ErrProfileNotFound)

	rec := f.do(t, http.MethodGet, "/api/v1/users/ghost/profile", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// --- Events ---

func TestHandlePublishEvent_Accepted(t *testing.T) {
	f := newServerFixture()
	body := `{"message_id":"m1","user_id":"u1","event_type":"search","search_phrase":"headphones","occurred_at":"2026-08-01T12:00:00Z"}`

	rec := f.do(t, http.MethodPost, "/api/v1/events", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[publishEventResponse](t, rec)
	if resp.EntryID != "1-0" {
		t.Errorf("entry_id = %q, want 1-0", resp.EntryID)
	}
	if f.publisher.got.MessageID != "m1" {
		t.Errorf("published message_id = %q", f.publisher.got.MessageID)
	}
}

func TestHandlePublishEvent_BadBody(t *testing.T) {
	f := newServerFixture()

	if rec := f.do(t, http.MethodPost, "/api/v1/events", "{broken"); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlePublishEvent_InvalidEvent(t *testing.T) {
	f := newServerFixture()
	f.publisher.err = fmt.Errorf("missing user_id: %w", domain.ErrInvalidEvent)

	rec := f.do(t, http.MethodPost, "/api/v1/events", `{"message_id":"m1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- Cache admin & health ---

func TestHandleCacheStats(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[cacheStatsResponse](t, rec)
	if resp.DeadLetter != 3 {
		t.Errorf("dead_letter_depth = %d, want 3", resp.DeadLetter)
	}
}

func TestHandleCacheClear(t *testing.T) {
	f := newServerFixture()

	if rec := f.do(t, http.MethodDelete, "/api/v1/cache", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestHandleHealth_OK(t *testing.T) {
	f := newServerFixture()

	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[healthResponse](t, rec)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestHandleHealth_UnhealthyIs503(t *testing.T) {
	f := &serverFixture{
		search:    &mockSearch{res: result.Empty(mode.Semantic)},
		profiles:  &mockProfiles{},
		publisher: &mockPublisher{},
	}
	cache := querycache.New(&memStore{data: make(map[string][]byte)}, time.Hour, zap.NewNop())
	health := healthuc.New(okPinger{err: errors.New("down")}, okPinger{}, nil, nil)
	srv := NewServer(f.search, f.profiles, cache, f.publisher, health, nil, zap.NewNop())
	f.router = chi.NewRouter()
	srv.Routes(f.router)

	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
