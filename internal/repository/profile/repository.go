// Package profile persists user interest profiles as hashes with an
// optimistic-locking version field.
package profile

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/arcadia-shop/persona/internal/db"
	"github.com/arcadia-shop/persona/internal/domain"
	domprofile "github.com/arcadia-shop/persona/internal/domain/profile"
)

var profileKeyPrefix = domain.KeyPrefix + "profile:"

const (
	fieldVector        = "vector"
	fieldLastUpdatedAt = "last_updated_at"
	fieldVersion       = "version"
)

// store is the consumer interface for profile persistence (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSetVersioned(ctx context.Context, key string, fields map[string]string, expectedVersion int) (int, error)
	Del(ctx context.Context, key string) error
}

// Repository persists profiles keyed by user ID.
type Repository struct {
	store store
}

// New creates a profile repository.
func New(s store) *Repository {
	return &Repository{store: s}
}

// Get loads a user's profile. A missing user returns domain.ErrProfileNotFound.
func (r *Repository) Get(ctx context.Context, userID string) (domprofile.Profile, error) {
	fields, err := r.store.HGetAll(ctx, profileKey(userID))
	if err != nil {
		return domprofile.Profile{}, fmt.Errorf("load profile %s: %w", userID, err)
	}
	if len(fields) == 0 {
		return domprofile.Profile{}, fmt.Errorf("profile %s: %w", userID, domain.ErrProfileNotFound)
	}
	return parseProfile(userID, fields)
}

// Save writes a profile conditioned on expectedVersion matching the stored
// version (0 for a profile that must not exist yet). A mismatch surfaces as
// domain.VersionConflictError carrying the version found in the store.
func (r *Repository) Save(ctx context.Context, p domprofile.Profile, expectedVersion int) error {
	fields := map[string]string{
		fieldVector:        string(vectorToBytes(p.Vector())),
		fieldLastUpdatedAt: p.LastUpdatedAt().UTC().Format(time.RFC3339Nano),
		fieldVersion:       strconv.Itoa(p.Version()),
	}

	current, err := r.store.HSetVersioned(ctx, profileKey(p.UserID()), fields, expectedVersion)
	if err != nil {
		if errors.Is(err, db.ErrVersionMismatch) {
			return domain.NewVersionConflict(current)
		}
		return fmt.Errorf("save profile %s: %w", p.UserID(), err)
	}
	return nil
}

// Delete removes a user's profile.
func (r *Repository) Delete(ctx context.Context, userID string) error {
	if err := r.store.Del(ctx, profileKey(userID)); err != nil {
		return fmt.Errorf("delete profile %s: %w", userID, err)
	}
	return nil
}

func profileKey(userID string) string {
	return profileKeyPrefix + userID
}

func parseProfile(userID string, fields map[string]string) (domprofile.Profile, error) {
	vec, err := bytesToVector([]byte(fields[fieldVector]))
	if err != nil {
		return domprofile.Profile{}, fmt.Errorf("profile %s vector: %w", userID, err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, fields[fieldLastUpdatedAt])
	if err != nil {
		return domprofile.Profile{}, fmt.Errorf("profile %s last_updated_at: %w", userID, err)
	}

	version, err := strconv.Atoi(fields[fieldVersion])
	if err != nil || version < 1 {
		return domprofile.Profile{}, fmt.Errorf("profile %s version %q is invalid", userID, fields[fieldVersion])
	}

	return domprofile.Reconstruct(userID, vec, updatedAt, version), nil
}

func vectorToBytes(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float64, error) {
	if len(data) == 0 || len(data)%8 != 0 {
		return nil, fmt.Errorf("invalid vector blob: len=%d", len(data))
	}
	vec := make([]float64, len(data)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vec, nil
}
