// Package similarity scores how close two biometric embeddings are.
package similarity

import (
	"errors"
	"fmt"
	"math"
)

// ErrLengthMismatch is returned when two embeddings of different lengths are compared.
var ErrLengthMismatch = errors.New("embedding length mismatch")

// Cosine returns the cosine similarity of a and b: their dot product divided by
// the product of their Euclidean norms. A zero-norm input yields 0 (no match).
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0, nil
	}
	return sim, nil
}
