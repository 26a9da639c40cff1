// Package embedding provides the resilience decorators around the embedding
// provider: bounded retries with exponential backoff and a process-wide
// circuit breaker. The decorators are shared by the update pipeline and the
// search path, so one failing provider is observed consistently everywhere.
package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/metrics"
)

// State is the circuit breaker state.
type State int

// Breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards the embedding provider with an explicit
// closed → open → half-open → closed lifecycle. It is shared process-wide
// between pipeline workers and search requests, so all access is
// mutex-guarded.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failureCount int
	openedAt     time.Time

	threshold   int
	openTimeout time.Duration
	provider    string
	logger      *zap.Logger
	now         func() time.Time
}

// NewCircuitBreaker creates a closed breaker. threshold is the number of
// consecutive failures that opens it; openTimeout is how long it stays open
// before a single half-open probe is allowed.
func NewCircuitBreaker(provider string, threshold int, openTimeout time.Duration, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:   threshold,
		openTimeout: openTimeout,
		provider:    provider,
		logger:      logger,
		now:         time.Now,
	}
}

// Allow reports whether a call may proceed. While open it fails with
// domain.ErrCircuitOpen until the open timeout elapses, at which point
// exactly one probe call is let through (half-open). Further calls stay
// rejected until the probe reports back.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.openTimeout {
			return domain.ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		return nil
	case StateHalfOpen:
		// A probe is already in flight.
		return domain.ErrCircuitOpen
	}
	return nil
}

// ReportSuccess records a successful call, closing the breaker and resetting
// the failure count.
func (b *CircuitBreaker) ReportSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// ReportFailure records a failed call. Reaching the threshold opens the
// breaker; a failed half-open probe re-opens it with a refreshed openedAt.
func (b *CircuitBreaker) ReportFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.openedAt = b.now()
		b.transition(StateOpen)
		return
	}

	b.failureCount++
	if b.state == StateClosed && b.failureCount >= b.threshold {
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

// CurrentState returns the breaker state for health reporting.
func (b *CircuitBreaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition must be called with the mutex held.
func (b *CircuitBreaker) transition(to State) {
	from := b.state
	b.state = to

	metrics.BreakerState.WithLabelValues(b.provider).Set(float64(to))
	metrics.BreakerTransitionsTotal.WithLabelValues(b.provider, to.String()).Inc()

	if b.logger != nil {
		b.logger.Warn("Circuit breaker transition",
			zap.String("provider", b.provider),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Int("failure_count", b.failureCount),
		)
	}
}

// BreakerEmbedder gates an embedder behind a shared circuit breaker.
type BreakerEmbedder struct {
	inner   domain.Embedder
	breaker *CircuitBreaker
}

// NewBreakerEmbedder wraps an embedder with circuit breaking.
func NewBreakerEmbedder(inner domain.Embedder, breaker *CircuitBreaker) *BreakerEmbedder {
	return &BreakerEmbedder{inner: inner, breaker: breaker}
}

// Embed rejects immediately while the breaker is open, otherwise delegates
// and reports the outcome.
func (e *BreakerEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.breaker.Allow(); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embedding call rejected: %w", err)
	}

	result, err := e.inner.Embed(ctx, text)
	if err != nil {
		e.breaker.ReportFailure()
		return domain.EmbeddingResult{}, err
	}

	e.breaker.ReportSuccess()
	return result, nil
}
