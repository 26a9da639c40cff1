// Package profile holds the per-user interest vector and its merge rules.
//
// A profile is an immutable value: every merge produces a new value with the
// version bumped by one, so concurrent readers never observe a vector mid
// update. Persistence-level conflicts are resolved by optimistic locking in
// the repository, not here.
package profile

import (
	"fmt"
	"time"

	"github.com/arcadia-shop/persona/internal/domain"
	"github.com/arcadia-shop/persona/internal/domain/event"
	"github.com/arcadia-shop/persona/internal/domain/vector"
)

// Profile is a user's aggregate interest embedding.
// Invariants: the vector is always unit-normalized with vector.Dim dimensions,
// version starts at 1 and increases by exactly one per merge, and
// lastUpdatedAt never moves backwards.
type Profile struct {
	userID        string
	vector        []float64
	lastUpdatedAt time.Time
	version       int
}

// FromEventEmbedding creates the first profile for a user from a raw event
// vector. The vector is normalized to unit length and the version is 1.
func FromEventEmbedding(userID string, rawVector []float64, occurredAt time.Time) (Profile, error) {
	if err := vector.CheckDim(rawVector); err != nil {
		return Profile{}, fmt.Errorf("event vector: %w", err)
	}
	unit, err := vector.Normalize(rawVector)
	if err != nil {
		return Profile{}, fmt.Errorf("normalize event vector: %w", err)
	}
	return Profile{
		userID:        userID,
		vector:        unit,
		lastUpdatedAt: occurredAt,
		version:       1,
	}, nil
}

// Reconstruct rebuilds a profile from persisted state without revalidation.
func Reconstruct(userID string, vec []float64, lastUpdatedAt time.Time, version int) Profile {
	return Profile{
		userID:        userID,
		vector:        vec,
		lastUpdatedAt: lastUpdatedAt,
		version:       version,
	}
}

// UserID returns the profile owner.
func (p Profile) UserID() string { return p.userID }

// Vector returns the unit-normalized interest vector.
func (p Profile) Vector() []float64 { return p.vector }

// LastUpdatedAt returns the timestamp of the newest merged event.
func (p Profile) LastUpdatedAt() time.Time { return p.lastUpdatedAt }

// Version returns the optimistic locking version, starting at 1.
func (p Profile) Version() int { return p.version }

// IsZero reports whether the profile is the zero value (no profile loaded).
func (p Profile) IsZero() bool { return p.version == 0 }

// UpdateWith merges an event vector into the profile. The existing vector is
// down-weighted by exponential temporal decay and the event vector enters
// with the weight of its interaction kind:
//
//	merged[i] = (current[i]*decay + eventVector[i]*weight) / (decay + weight)
//
// The result is renormalized, the version bumped, and lastUpdatedAt advanced.
// All failures here are input errors and must not be retried.
func (p Profile) UpdateWith(
	eventVector []float64, eventType event.Type, occurredAt time.Time, cfg DecayConfig,
) (Profile, error) {
	if occurredAt.Before(p.lastUpdatedAt) {
		return Profile{}, fmt.Errorf("event at %s precedes profile update at %s: %w",
			occurredAt.Format(time.RFC3339), p.lastUpdatedAt.Format(time.RFC3339), domain.ErrStaleEvent)
	}
	if err := vector.CheckDim(eventVector); err != nil {
		return Profile{}, fmt.Errorf("event vector: %w", err)
	}

	decay := cfg.decayFactor(occurredAt.Sub(p.lastUpdatedAt))
	weight := eventType.Weight()

	merged := make([]float64, len(p.vector))
	denom := decay + weight
	for i := range p.vector {
		merged[i] = (p.vector[i]*decay + eventVector[i]*weight) / denom
	}

	unit, err := vector.Normalize(merged)
	if err != nil {
		return Profile{}, fmt.Errorf("normalize merged vector: %w", err)
	}

	return Profile{
		userID:        p.userID,
		vector:        unit,
		lastUpdatedAt: occurredAt,
		version:       p.version + 1,
	}, nil
}

// CosineSimilarity returns the cosine similarity between the profile vector
// and a query vector. Both are unit vectors, so this is their dot product.
func (p Profile) CosineSimilarity(queryVector []float64) (float64, error) {
	sim, err := vector.Dot(p.vector, queryVector)
	if err != nil {
		return 0, fmt.Errorf("cosine similarity: %w", err)
	}
	return sim, nil
}
