// Package vector holds similarity math over embedding vectors.
package vector

import "math"

// Cosine returns dot(a,b) / (|a| * |b|).
// Returns 0 when either norm is zero or the dimensions differ: a shape mismatch is a no-match, not an error.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// rounding can push identical vectors slightly past 1
	return math.Max(-1, math.Min(1, sim))
}
