// Package vector provides fixed-dimension vector math for interest profiles
// and query embeddings. All persisted vectors are L2-unit-normalized.
package vector

import (
	"fmt"
	"math"

	"github.com/arcadia-shop/persona/internal/domain"
)

// Dim is the dimensionality of every embedding in the system. It matches the
// output size of the embedding model and the FT index schema.
const Dim = 1536

// CheckDim validates that v has the expected dimensionality.
func CheckDim(v []float64) error {
	if len(v) != Dim {
		return fmt.Errorf("expected %d dimensions, got %d: %w", Dim, len(v), domain.ErrVectorDimMismatch)
	}
	return nil
}

// Norm returns the L2 norm of v.
func Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v.
// Fails with domain.ErrZeroVector when v has zero magnitude.
func Normalize(v []float64) ([]float64, error) {
	n := Norm(v)
	if n == 0 {
		return nil, domain.ErrZeroVector
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out, nil
}

// Dot returns the dot product of a and b.
// Both operands must have the same dimensionality.
func Dot(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dot: %d vs %d dimensions: %w", len(a), len(b), domain.ErrVectorDimMismatch)
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}
