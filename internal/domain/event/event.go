// Package event defines the behavioral event model: the closed set of
// interaction kinds, their merge weights, and the queue message payload.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arcadia-shop/persona/internal/domain"
)

// Type is the kind of user interaction.
type Type string

// Interaction kinds.
const (
	Search          Type = "search"
	ProductView     Type = "product_view"
	ProductClick    Type = "product_click"
	ProductPurchase Type = "product_purchase"
)

// IsValid checks if the type is one of the supported values.
func (t Type) IsValid() bool {
	switch t {
	case Search, ProductView, ProductClick, ProductPurchase:
		return true
	}
	return false
}

// Weight returns the merge weight of the interaction kind.
// Purchases carry the strongest signal, passive views the weakest.
func (t Type) Weight() float64 {
	switch t {
	case ProductPurchase:
		return 1.0
	case Search:
		return 0.7
	case ProductClick:
		return 0.5
	case ProductView:
		return 0.3
	default:
		return 0
	}
}

// IsProductEvent reports whether the type refers to a specific product.
func (t Type) IsProductEvent() bool {
	return t == ProductView || t == ProductClick || t == ProductPurchase
}

// Message is a single behavioral event consumed from the event stream.
// MessageID is the idempotency key.
type Message struct {
	MessageID    string            `json:"message_id"`
	UserID       string            `json:"user_id"`
	EventType    Type              `json:"event_type"`
	SearchPhrase string            `json:"search_phrase,omitempty"`
	ProductID    string            `json:"product_id,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Decode parses a JSON queue payload into a validated Message.
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("decode event payload: %w: %w", domain.ErrInvalidEvent, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate checks the structural invariants of the message. Search events
// require a phrase, product events a product id; the two are mutually
// exclusive.
func (m Message) Validate() error {
	if m.MessageID == "" {
		return fmt.Errorf("message_id is required: %w", domain.ErrInvalidEvent)
	}
	if m.UserID == "" {
		return fmt.Errorf("user_id is required: %w", domain.ErrInvalidEvent)
	}
	if !m.EventType.IsValid() {
		return fmt.Errorf("unknown event_type %q: %w", m.EventType, domain.ErrInvalidEvent)
	}
	if m.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required: %w", domain.ErrInvalidEvent)
	}

	switch {
	case m.EventType == Search:
		if strings.TrimSpace(m.SearchPhrase) == "" {
			return fmt.Errorf("search event requires search_phrase: %w", domain.ErrInvalidEvent)
		}
		if m.ProductID != "" {
			return fmt.Errorf("search event must not carry product_id: %w", domain.ErrInvalidEvent)
		}
	case m.EventType.IsProductEvent():
		if m.ProductID == "" {
			return fmt.Errorf("%s event requires product_id: %w", m.EventType, domain.ErrInvalidEvent)
		}
		if m.SearchPhrase != "" {
			return fmt.Errorf("%s event must not carry search_phrase: %w", m.EventType, domain.ErrInvalidEvent)
		}
	}

	return nil
}
