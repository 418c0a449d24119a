// Package vecmath provides the vector arithmetic used by similarity ranking.
package vecmath

import (
	"fmt"
	"math"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// It returns domain.ErrDimensionMismatch when the lengths differ, and 0 when
// either vector has zero magnitude. Accumulation is done in float64.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vecmath: cosine %d vs %d: %w", len(a), len(b), domain.ErrDimensionMismatch)
	}
	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp float drift so identical vectors report exactly 1.
	switch {
	case sim > 1:
		sim = 1
	case sim < -1:
		sim = -1
	}
	return sim, nil
}
