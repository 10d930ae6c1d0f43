package retrieval

import "github.com/abhisek/dalil/internal/vecindex"

// DefaultCurrentWeight biases the composed query toward the new question.
const DefaultCurrentWeight = 0.7

// Compose blends the query embedding q with the mean of the history
// embeddings, weighting q by currentWeight, and returns the unit-length
// result. With no history q is returned unchanged.
func Compose(q []float32, history [][]float32, currentWeight float64) []float32 {
	if len(history) == 0 {
		return q
	}
	mean := vecindex.Mean(history)
	if len(mean) != len(q) {
		return q
	}

	combined := make([]float32, len(q))
	hw := 1 - currentWeight
	for i := range q {
		combined[i] = float32(currentWeight*float64(q[i]) + hw*float64(mean[i]))
	}
	return vecindex.Normalize(combined)
}
