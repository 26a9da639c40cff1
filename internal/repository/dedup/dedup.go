// Package dedup tracks processed message IDs so redelivered events are
// applied at most once.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/arcadia-shop/persona/internal/domain"
)

var dedupKeyPrefix = domain.KeyPrefix + "msg:"

// store is the consumer interface for the dedup tracker (ISP).
type store interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Tracker remembers processed message IDs for a bounded window.
type Tracker struct {
	store store
	ttl   time.Duration
}

// New creates a dedup tracker. ttl bounds how long a message ID is remembered.
func New(s store, ttl time.Duration) *Tracker {
	return &Tracker{store: s, ttl: ttl}
}

// MarkProcessed claims a message ID. It returns true when the ID was already
// seen inside the retention window, false when this is the first delivery.
// Claiming and checking are one atomic operation so two workers cannot both
// see "first delivery".
func (t *Tracker) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	set, err := t.store.SetNX(ctx, dedupKeyPrefix+messageID, []byte("1"), t.ttl)
	if err != nil {
		return false, fmt.Errorf("mark message %s: %w", messageID, err)
	}
	return !set, nil
}
