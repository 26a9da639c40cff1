// Package deadletter stores events that exhausted their processing retries,
// keeping the failed payload and failure context for manual replay.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/metrics"
)

var queueKey = domain.KeyPrefix + "dead_letter"

// store is the consumer interface for the dead-letter queue (ISP).
type store interface {
	LPush(ctx context.Context, key string, value []byte) error
	LLen(ctx context.Context, key string) (int64, error)
}

// Record is a dead-lettered event with its failure context.
type Record struct {
	MessageID  string          `json:"message_id"`
	UserID     string          `json:"user_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error"`
	OccurredAt time.Time       `json:"occurred_at"`
	FailedAt   time.Time       `json:"failed_at"`
}

// Queue is the dead-letter queue.
type Queue struct {
	store store
}

// New creates a dead-letter queue.
func New(s store) *Queue {
	return &Queue{store: s}
}

// Push appends a failed event record. A push failure is surfaced to the
// caller; the event must not be silently dropped.
func (q *Queue) Push(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal dead letter %s: %w", rec.MessageID, err)
	}
	if err := q.store.LPush(ctx, queueKey, data); err != nil {
		return fmt.Errorf("push dead letter %s: %w", rec.MessageID, err)
	}
	metrics.DeadLettersTotal.Inc()
	return nil
}

// Len returns the number of dead-lettered events.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.store.LLen(ctx, queueKey)
	if err != nil {
		return 0, fmt.Errorf("dead letter length: %w", err)
	}
	return n, nil
}
