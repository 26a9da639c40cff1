package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProfileNotFound signals a missing user profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProductNotFound signals a missing product.
	ErrProductNotFound = errors.New("product not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrZeroVector signals a vector with zero magnitude that cannot be normalized.
	ErrZeroVector = errors.New("zero-magnitude vector")
	// ErrInvalidEvent signals a malformed behavioral event message.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrStaleEvent signals an event older than the profile it would update.
	ErrStaleEvent = errors.New("stale event")
	// ErrDuplicateMessage signals a message that was already processed.
	ErrDuplicateMessage = errors.New("duplicate message")

	// ErrVersionConflict signals an optimistic locking conflict.
	ErrVersionConflict = errors.New("version conflict")
	// ErrCircuitOpen signals that the embedding provider circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// VersionConflictError wraps ErrVersionConflict with the version found in the store.
type VersionConflictError struct {
	CurrentVersion int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s: current version is %d", ErrVersionConflict.Error(), e.CurrentVersion)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// NewVersionConflict creates a version conflict error.
func NewVersionConflict(currentVersion int) error {
	return &VersionConflictError{CurrentVersion: currentVersion}
}
