package pipeline

import (
	"context"

	"github.com/arcadia-shop/persona/internal/domain/profile"
	"github.com/arcadia-shop/persona/internal/repository/deadletter"
)

// ProfileStore persists user interest profiles with optimistic locking.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (profile.Profile, error)
	// Save writes the profile only if the stored version equals
	// expectedVersion (0 for a profile that must not exist yet).
	Save(ctx context.Context, p profile.Profile, expectedVersion int) error
}

// Deduper claims message IDs so redeliveries are applied at most once.
type Deduper interface {
	// MarkProcessed returns true when the message was already seen.
	MarkProcessed(ctx context.Context, messageID string) (bool, error)
}

// DeadLetterer stores events that exhausted their retries.
type DeadLetterer interface {
	Push(ctx context.Context, rec deadletter.Record) error
}

// ProductVectorSource resolves precomputed product embeddings.
type ProductVectorSource interface {
	GetVector(ctx context.Context, productID string) ([]float64, error)
}
