package search

import (
	"math"

	"widgetrag/internal/model"
)

// Cosine returns the cosine similarity of a and b. ok is false when the
// vectors differ in length, either has zero magnitude, or the result is NaN.
func Cosine(a, b model.Vector) (score float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	score = dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(score) {
		return 0, false
	}
	return score, true
}
