package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/abhisek/dalil/internal/vecindex"
)

// DefaultHashDim is the vector length of HashEmbedder when none is given.
const DefaultHashDim = 256

// HashEmbedder is an offline bag-of-words model using feature hashing.
// Texts that share words land close together. It needs no network.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hashing embedder with dim buckets.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDim
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dim))
		sign := float32(1)
		if sum&(1<<63) != 0 {
			sign = -1
		}
		v[idx] += sign
	}
	return vecindex.Normalize(v), nil
}

func (e *HashEmbedder) Model() string { return fmt.Sprintf("hash-%d", e.dim) }
