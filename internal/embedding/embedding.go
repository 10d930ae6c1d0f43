// Package embedding turns text into fixed-length vectors. Backends cover
// hosted APIs, a local Ollama server, and a deterministic hashing model;
// CachedEmbedder memoizes any of them by exact text.
package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// Embedder produces a vector for a piece of text. Implementations must be
// deterministic for identical input within a process lifetime.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model names the embedding model, used to key persistent caches.
	Model() string
}

// EmbedAll embeds each text in order, stopping at the first error.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed item %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ContentHash computes the cache key for text under a model.
func ContentHash(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return fmt.Sprintf("%x", h)
}
