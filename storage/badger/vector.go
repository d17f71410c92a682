package badger

import "math"

// normalize scales a vector to unit length and returns a new slice.
// A zero vector stays zero.
func normalize(v []float32) []float32 {
	result := make([]float32, len(v))
	if len(v) == 0 {
		return result
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	// Can't normalize zero vector
	if magnitude == 0 {
		return result
	}

	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

// dotProduct calculates the dot product of two vectors. For unit vectors it
// equals cosine similarity.
func dotProduct(a, b []float32) float32 {
	var sum float32
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
