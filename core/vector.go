package core

import "math"

// Normalize returns a unit-length copy of vec. Zero and empty vectors are
// returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return vec
	}
	norm := 1 / math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, x := range vec {
		out[i] = float32(float64(x) * norm)
	}
	return out
}
