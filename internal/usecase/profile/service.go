// Package profile serves the read side of user profiles: lookup and
// personalized product recommendations ranked by the interest vector.
package profile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/domain"
	domprofile "github.com/arcadia-shop/persona/internal/domain/profile"
	"github.com/arcadia-shop/persona/internal/repository/corpus"
)

// ProfileReader loads stored profiles.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (domprofile.Profile, error)
}

// CorpusSearcher ranks corpus products against a vector.
type CorpusSearcher interface {
	SearchKNN(ctx context.Context, queryVector []float64, k int, category string) ([]corpus.Hit, error)
}

// DefaultVectorStrategy produces an interest vector for users without a
// profile, so recommendations never come back empty-handed for new users.
type DefaultVectorStrategy interface {
	DefaultVector(ctx context.Context, userID string) ([]float64, error)
}

// Service serves profile reads and recommendations.
type Service struct {
	profiles ProfileReader
	corpus   CorpusSearcher
	seed     DefaultVectorStrategy
	logger   *zap.Logger
}

// NewService creates the profile read service. seed may be nil, in which case
// users without a profile get domain.ErrProfileNotFound from Recommend.
func NewService(profiles ProfileReader, corpus CorpusSearcher, seed DefaultVectorStrategy, logger *zap.Logger) *Service {
	return &Service{profiles: profiles, corpus: corpus, seed: seed, logger: logger}
}

// Get returns the stored profile.
func (s *Service) Get(ctx context.Context, userID string) (domprofile.Profile, error) {
	return s.profiles.Get(ctx, userID)
}

// Recommend ranks corpus products by similarity to the user's interest
// vector. Users without a profile are seeded through the default vector
// strategy; the seed vector is transient and never persisted.
func (s *Service) Recommend(ctx context.Context, userID string, limit int) ([]corpus.Hit, error) {
	vec, err := s.interestVector(ctx, userID)
	if err != nil {
		return nil, err
	}

	hits, err := s.corpus.SearchKNN(ctx, vec, limit, "")
	if err != nil {
		return nil, fmt.Errorf("recommend for %s: %w", userID, err)
	}
	return hits, nil
}

func (s *Service) interestVector(ctx context.Context, userID string) ([]float64, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err == nil {
		return p.Vector(), nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) || s.seed == nil {
		return nil, err
	}

	s.logger.Debug("Seeding default interest vector", zap.String("user_id", userID))
	vec, err := s.seed.DefaultVector(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("seed vector for %s: %w", userID, err)
	}
	return vec, nil
}
