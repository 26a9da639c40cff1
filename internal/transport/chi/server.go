// Package chi is the HTTP transport: hand-written handlers on a chi router.
// Error responses carry a stable code and a sentinel-level message only;
// internals never leak to clients.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/domain/event"
	"github.com/arcadia-shop/persona/internal/domain/product"
	"github.com/arcadia-shop/persona/internal/domain/search/query"
	"github.com/arcadia-shop/persona/internal/domain/vector"
	"github.com/arcadia-shop/persona/internal/repository/querycache"
	healthuc "github.com/arcadia-shop/persona/internal/usecase/health"
)

// Error response codes.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeNotFound         = "not_found"
	codeUnauthorized     = "unauthorized"
	codeInternalError    = "internal_error"
)

// Server holds the HTTP handlers.
type Server struct {
	search      searchRunner
	profiles    profileService
	cache       *querycache.Cache
	publisher   eventPublisher
	health      *healthuc.Service
	logger      *zap.Logger
	deadLetters deadLetterReader
}

// NewServer creates the HTTP API server.
func NewServer(
	search searchRunner,
	profiles profileService,
	cache *querycache.Cache,
	publisher eventPublisher,
	health *healthuc.Service,
	deadLetters deadLetterReader,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:      search,
		profiles:    profiles,
		cache:       cache,
		publisher:   publisher,
		health:      health,
		deadLetters: deadLetters,
		logger:      logger,
	}
}

// Routes mounts the API on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/recommendations", s.handleRecommendations)
		r.Get("/users/{userID}/profile", s.handleGetProfile)
		r.Post("/events", s.handlePublishEvent)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleCacheClear)
	})
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// --- Search ---

type productJSON struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	PriceCents  int64   `json:"price_cents"`
	Score       float64 `json:"score"`
}

type searchResponse struct {
	Products        []productJSON `json:"products"`
	Mode            string        `json:"mode"`
	TotalResults    int           `json:"total_results"`
	ExecutionTimeMs float64       `json:"execution_time_ms"`
	FallbackReason  string        `json:"fallback_reason,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	limit, err := parseOptionalInt(params.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be an integer")
		return
	}
	offset, err := parseOptionalInt(params.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "offset must be an integer")
		return
	}
	// An explicit min_similarity=0 is a valid floor and must not collapse
	// into the default, so absence is decided here.
	minSim := query.DefaultMinSimilarity
	if raw := params.Get("min_similarity"); raw != "" {
		minSim, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "min_similarity must be a number")
			return
		}
	}

	q, err := query.New(params.Get("q"), params.Get("mode"), limit, offset, minSim, params.Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	res, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := searchResponse{
		Products:        make([]productJSON, 0, len(res.Products)),
		Mode:            string(res.Mode),
		TotalResults:    res.TotalResults,
		ExecutionTimeMs: res.ExecutionTimeMs,
	}
	if res.FallbackReason != "" {
		// The client learns the mode changed, not why the vector path broke.
		resp.FallbackReason = "semantic search unavailable"
	}
	for _, p := range res.Products {
		resp.Products = append(resp.Products, toProductJSON(p, res.Scores[p.ID()]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Recommendations ---

type recommendationsResponse struct {
	UserID   string        `json:"user_id"`
	Products []productJSON `json:"products"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	userID := params.Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id is required")
		return
	}

	limit, err := parseOptionalInt(params.Get("limit"))
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a non-negative integer")
		return
	}
	if limit == 0 {
		limit = query.DefaultLimit
	}
	if limit > query.MaxLimit {
		limit = query.MaxLimit
	}

	hits, err := s.profiles.Recommend(r.Context(), userID, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := recommendationsResponse{UserID: userID, Products: make([]productJSON, 0, len(hits))}
	for _, h := range hits {
		resp.Products = append(resp.Products, toProductJSON(h.Product, h.Score))
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Profile ---

type profileResponse struct {
	UserID        string    `json:"user_id"`
	Version       int       `json:"version"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Dimensions    int       `json:"dimensions"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	p, err := s.profiles.Get(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		UserID:        p.UserID(),
		Version:       p.Version(),
		LastUpdatedAt: p.LastUpdatedAt().UTC(),
		Dimensions:    vector.Dim,
	})
}

// --- Events ---

type publishEventResponse struct {
	EntryID string `json:"entry_id"`
}

func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	var msg event.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}

	id, err := s.publisher.Publish(r.Context(), msg)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, publishEventResponse{EntryID: id})
}

// --- Cache admin ---

type cacheStatsResponse struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	DeadLetter int64   `json:"dead_letter_depth"`
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := s.cache.Stats()

	resp := cacheStatsResponse{Hits: stats.Hits, Misses: stats.Misses, HitRate: stats.HitRate}
	if s.deadLetters != nil {
		if n, err := s.deadLetters.Len(r.Context()); err == nil {
			resp.DeadLetter = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Clear(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Health ---

type healthResponse struct {
	Status       string            `json:"status"`
	Checks       map[string]string `json:"checks"`
	BreakerState string            `json:"breaker_state,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:       string(report.Status),
		Checks:       checks,
		BreakerState: report.BreakerState,
	})
}

// --- Shared helpers ---

func toProductJSON(p product.Product, score float64) productJSON {
	return productJSON{
		ID:          p.ID(),
		Name:        p.Name(),
		Description: p.Description(),
		Category:    p.Category(),
		PriceCents:  p.PriceCents(),
		Score:       score,
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.logger
	if reqID := chiMiddleware.GetReqID(r.Context()); reqID != "" {
		logger = logger.With(zap.String("request_id", reqID))
	}

	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, domain.ErrProfileNotFound.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, domain.ErrProductNotFound.Error())
	case errors.Is(err, domain.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, codeValidationFailed, domain.ErrInvalidEvent.Error())
	default:
		logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func parseOptionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
