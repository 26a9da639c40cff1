// Package pipeline applies behavioral events to user interest profiles.
// Every message reaches exactly one terminal state: persisted, duplicate,
// stale, invalid, or dead-lettered.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/domain/event"
	"github.com/arcadia-shop/persona/internal/domain/profile"
	"github.com/arcadia-shop/persona/internal/metrics"
	"github.com/arcadia-shop/persona/internal/repository/deadletter"
)

// Terminal outcomes, used as metric labels.
const (
	outcomePersisted  = "persisted"
	outcomeDuplicate  = "duplicate"
	outcomeStale      = "stale"
	outcomeInvalid    = "invalid"
	outcomeDeadLetter = "dead_letter"
)

// Service is the profile update pipeline.
type Service struct {
	profiles    ProfileStore
	dedup       Deduper
	deadLetters DeadLetterer
	embedder    domain.Embedder
	products    ProductVectorSource
	cfg         profile.DecayConfig
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewService creates the pipeline.
func NewService(
	profiles ProfileStore,
	dedup Deduper,
	deadLetters DeadLetterer,
	embedder domain.Embedder,
	products ProductVectorSource,
	cfg profile.DecayConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		profiles:    profiles,
		dedup:       dedup,
		deadLetters: deadLetters,
		embedder:    embedder,
		products:    products,
		cfg:         cfg,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Process runs one queue payload through the pipeline. A nil return means the
// message reached a terminal state and may be acknowledged; a non-nil return
// means not even dead-lettering succeeded and the message must stay on the
// queue for redelivery.
func (s *Service) Process(ctx context.Context, payload []byte) error {
	msg, err := event.Decode(payload)
	if err != nil {
		// Malformed payloads can never succeed on redelivery.
		metrics.PipelineEventsTotal.WithLabelValues("unknown", outcomeInvalid).Inc()
		s.logger.Warn("Dropping invalid event", zap.Error(err))
		return nil
	}

	log := s.logger.With(
		zap.String("message_id", msg.MessageID),
		zap.String("user_id", msg.UserID),
		zap.String("event_type", string(msg.EventType)),
	)

	start := time.Now()
	defer func() {
		metrics.PipelineProcessDuration.WithLabelValues(string(msg.EventType)).Observe(time.Since(start).Seconds())
	}()

	seen, err := s.dedup.MarkProcessed(ctx, msg.MessageID)
	if err != nil {
		return fmt.Errorf("dedup check %s: %w", msg.MessageID, err)
	}
	if seen {
		metrics.PipelineEventsTotal.WithLabelValues(string(msg.EventType), outcomeDuplicate).Inc()
		log.Debug("Skipping duplicate event")
		return nil
	}

	// Vector acquisition sits inside the retry loop: a provider outage is as
	// transient as a version conflict and gets the same bounded backoff
	// instead of an immediate dead letter.
	var eventVector []float64

	attempts := 0
	for attempts < s.cfg.MaxRetries {
		attempts++

		err = s.applyOnce(ctx, msg, &eventVector)
		if err == nil {
			metrics.PipelineEventsTotal.WithLabelValues(string(msg.EventType), outcomePersisted).Inc()
			log.Info("Profile updated", zap.Int("attempts", attempts))
			return nil
		}
		if errors.Is(err, domain.ErrStaleEvent) {
			metrics.PipelineEventsTotal.WithLabelValues(string(msg.EventType), outcomeStale).Inc()
			log.Info("Skipping stale event", zap.Error(err))
			return nil
		}
		if !isTransient(err) {
			break
		}
		if attempts == s.cfg.MaxRetries {
			break
		}

		metrics.PipelineRetriesTotal.WithLabelValues(retryCause(err)).Inc()
		log.Warn("Retrying profile update", zap.Int("attempt", attempts), zap.Error(err))

		// Conflicts resolve on re-read without waiting; store errors back off.
		if !errors.Is(err, domain.ErrVersionConflict) {
			if serr := s.sleep(ctx, s.cfg.RetryDelay()); serr != nil {
				return fmt.Errorf("retry aborted: %w", serr)
			}
		}
	}

	return s.finish(ctx, msg, payload, attempts, err, log)
}

// applyOnce performs one read-check-merge-write round. Staleness is decided
// against the stored profile before any provider call, and re-decided on
// every re-read so it holds under concurrent writers. The event vector is
// resolved once and cached across rounds. A version conflict means a
// concurrent writer won; the caller re-reads and re-merges.
func (s *Service) applyOnce(ctx context.Context, msg event.Message, eventVector *[]float64) error {
	current, err := s.profiles.Get(ctx, msg.UserID)
	exists := true
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		exists = false
	case err != nil:
		return err
	}

	if exists && msg.OccurredAt.Before(current.LastUpdatedAt()) {
		return fmt.Errorf("event at %s predates profile update at %s: %w",
			msg.OccurredAt.Format(time.RFC3339),
			current.LastUpdatedAt().Format(time.RFC3339),
			domain.ErrStaleEvent)
	}

	if *eventVector == nil {
		vec, verr := s.resolveVector(ctx, msg)
		if verr != nil {
			return verr
		}
		*eventVector = vec
	}

	if !exists {
		first, ferr := profile.FromEventEmbedding(msg.UserID, *eventVector, msg.OccurredAt)
		if ferr != nil {
			return ferr
		}
		return s.profiles.Save(ctx, first, 0)
	}

	merged, err := current.UpdateWith(*eventVector, msg.EventType, msg.OccurredAt, s.cfg)
	if err != nil {
		return err
	}
	return s.profiles.Save(ctx, merged, current.Version())
}

// resolveVector obtains the event's embedding: search phrases go through the
// embedding provider, product events use the catalog's precomputed vector.
func (s *Service) resolveVector(ctx context.Context, msg event.Message) ([]float64, error) {
	if msg.EventType == event.Search {
		res, err := s.embedder.Embed(ctx, msg.SearchPhrase)
		if err != nil {
			return nil, fmt.Errorf("embed search phrase: %w", err)
		}
		return res.Embedding, nil
	}

	vec, err := s.products.GetVector(ctx, msg.ProductID)
	if err != nil {
		return nil, fmt.Errorf("product vector %s: %w", msg.ProductID, err)
	}
	return vec, nil
}

// finish dead-letters a message that could not be applied. Only a failed
// dead-letter push keeps the message on the queue.
func (s *Service) finish(
	ctx context.Context, msg event.Message, payload []byte, attempts int, cause error, log *zap.Logger,
) error {
	rec := deadletter.Record{
		MessageID:  msg.MessageID,
		UserID:     msg.UserID,
		EventType:  string(msg.EventType),
		Payload:    json.RawMessage(payload),
		Attempts:   attempts,
		LastError:  cause.Error(),
		OccurredAt: msg.OccurredAt,
		FailedAt:   time.Now().UTC(),
	}
	if err := s.deadLetters.Push(ctx, rec); err != nil {
		log.Error("Dead-letter push failed, message stays queued", zap.Error(err))
		return fmt.Errorf("dead-letter %s: %w", msg.MessageID, err)
	}

	metrics.PipelineEventsTotal.WithLabelValues(string(msg.EventType), outcomeDeadLetter).Inc()
	log.Error("Event dead-lettered", zap.Int("attempts", attempts), zap.Error(cause))
	return nil
}

// isTransient classifies failures. Input contract violations and missing
// reference data cannot self-correct; conflicts, provider outages, and store
// errors can.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, domain.ErrVectorDimMismatch),
		errors.Is(err, domain.ErrZeroVector),
		errors.Is(err, domain.ErrInvalidEvent),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func retryCause(err error) string {
	switch {
	case errors.Is(err, domain.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, domain.ErrEmbeddingProviderError), errors.Is(err, domain.ErrCircuitOpen):
		return "provider"
	default:
		return "store"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
