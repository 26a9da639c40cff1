// Package events publishes behavioral events onto the stream the pipeline
// consumes.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arcadia-shop/persona/internal/domain/event"
)

// store is the consumer interface for publishing (ISP).
type store interface {
	StreamAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
}

// Publisher appends validated events to the stream.
type Publisher struct {
	store  store
	stream string
}

// NewPublisher creates an event publisher.
func NewPublisher(s store, stream string) *Publisher {
	return &Publisher{store: s, stream: stream}
}

// Publish validates the message and appends it to the stream, returning the
// stream entry ID.
func (p *Publisher) Publish(ctx context.Context, msg event.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal event %s: %w", msg.MessageID, err)
	}
	id, err := p.store.StreamAdd(ctx, p.stream, map[string]string{"payload": string(payload)})
	if err != nil {
		return "", fmt.Errorf("publish event %s: %w", msg.MessageID, err)
	}
	return id, nil
}
