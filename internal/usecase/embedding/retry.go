package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/metrics"
)

// RetryingEmbedder retries transient provider failures with exponential
// backoff. Fatal errors (dimension mismatch, zero vector) and an open
// circuit are surfaced immediately; retrying cannot fix either.
type RetryingEmbedder struct {
	inner          domain.Embedder
	maxAttempts    int
	initialBackoff time.Duration
	provider       string
	logger         *zap.Logger
}

// NewRetryingEmbedder wraps an embedder with bounded retries.
func NewRetryingEmbedder(
	inner domain.Embedder, maxAttempts int, initialBackoff time.Duration,
	provider string, logger *zap.Logger,
) *RetryingEmbedder {
	return &RetryingEmbedder{
		inner:          inner,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		provider:       provider,
		logger:         logger,
	}
}

// Embed delegates to the inner embedder, retrying transient failures with
// doubling backoff (1s, 2s, ...) up to maxAttempts total attempts.
func (e *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	backoff := e.initialBackoff
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		result, err := e.inner.Embed(ctx, text)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return domain.EmbeddingResult{}, err
		}
		if attempt == e.maxAttempts {
			break
		}

		metrics.EmbeddingRetriesTotal.WithLabelValues(e.provider).Inc()
		e.logger.Warn("Embedding call failed, retrying",
			zap.String("provider", e.provider),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		if err := sleep(ctx, backoff); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("retry aborted: %w", err)
		}
		backoff *= 2
	}

	return domain.EmbeddingResult{}, fmt.Errorf("embedding failed after %d attempts: %w", e.maxAttempts, lastErr)
}

// isRetryable classifies provider errors. Input contract violations cannot
// self-correct and an open circuit means retrying would only hammer the
// rejection path.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrVectorDimMismatch),
		errors.Is(err, domain.ErrZeroVector),
		errors.Is(err, domain.ErrCircuitOpen),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
