package profile

import (
	"context"
	"fmt"

	"github.com/arcadia-shop/persona/internal/domain"
)

// UserDirectory resolves user display names.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// DisplayNameSeed embeds the user's display name as a cold-start interest
// vector. The resulting vector is intentionally weak; the first real event
// replaces it.
type DisplayNameSeed struct {
	directory UserDirectory
	embedder  domain.Embedder
}

// NewDisplayNameSeed creates the display-name seeding strategy.
func NewDisplayNameSeed(directory UserDirectory, embedder domain.Embedder) *DisplayNameSeed {
	return &DisplayNameSeed{directory: directory, embedder: embedder}
}

// DefaultVector implements DefaultVectorStrategy.
func (s *DisplayNameSeed) DefaultVector(ctx context.Context, userID string) ([]float64, error) {
	name, err := s.directory.DisplayName(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("display name for %s: %w", userID, err)
	}
	res, err := s.embedder.Embed(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("embed display name: %w", err)
	}
	return res.Embedding, nil
}
