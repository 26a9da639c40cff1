package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/domain/search/mode"
	"github.com/arcadia-shop/persona/internal/domain/search/query"
	"github.com/arcadia-shop/persona/internal/domain/search/result"
	"github.com/arcadia-shop/persona/internal/metrics"
)

// searcher is one search strategy.
type searcher interface {
	Search(ctx context.Context, q query.Query) (result.Result, error)
}

// Facade routes a query to the requested strategy and degrades semantic
// requests to the keyword path when the vector side fails. The result's Mode
// always reports the strategy that actually served the request.
type Facade struct {
	semantic searcher
	keyword  searcher
	logger   *zap.Logger
	now      func() time.Time
}

// NewFacade creates the search facade.
func NewFacade(semantic, keyword searcher, logger *zap.Logger) *Facade {
	return &Facade{semantic: semantic, keyword: keyword, logger: logger, now: time.Now}
}

// Search executes the query. Semantic failures fall back to keyword search;
// only a failure of both paths returns an error. Zero hits is a valid result,
// never a fallback trigger.
func (f *Facade) Search(ctx context.Context, q query.Query) (result.Result, error) {
	start := f.now()

	res, err := f.dispatch(ctx, q)
	if err != nil {
		return result.Result{}, err
	}

	res.ExecutionTimeMs = float64(f.now().Sub(start).Microseconds()) / 1000

	fallback := "false"
	if res.FallbackReason != "" {
		fallback = "true"
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(res.Mode), fallback).Inc()
	metrics.SearchDuration.WithLabelValues(string(res.Mode)).Observe(res.ExecutionTimeMs / 1000)

	return res, nil
}

func (f *Facade) dispatch(ctx context.Context, q query.Query) (result.Result, error) {
	if q.Mode() == mode.Keyword {
		return f.keyword.Search(ctx, q)
	}

	res, err := f.semantic.Search(ctx, q)
	if err == nil {
		return res, nil
	}

	f.logger.Warn("Semantic search failed, falling back to keyword",
		zap.String("query", q.Text()),
		zap.Error(err),
	)

	res, kerr := f.keyword.Search(ctx, q)
	if kerr != nil {
		// Both paths down; surface the keyword error, the semantic one is
		// already logged.
		return result.Result{}, kerr
	}
	res.FallbackReason = err.Error()
	return res, nil
}
