package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/dalil/internal/cache"
	"github.com/abhisek/dalil/internal/store"
	"github.com/abhisek/dalil/internal/vecindex"
)

// DefaultCacheCapacity bounds the in-memory embedding cache.
const DefaultCacheCapacity = 5000

// CachedEmbedder wraps an Embedder with a bounded in-memory LRU and an
// optional persistent cache keyed by content hash.
type CachedEmbedder struct {
	inner  Embedder
	memory *cache.LRU[string, []float32]
	repo   store.EmbeddingCacheRepo
	logger *slog.Logger
}

// NewCachedEmbedder creates a memoizing embedder. repo may be nil.
func NewCachedEmbedder(inner Embedder, capacity int, repo store.EmbeddingCacheRepo, logger *slog.Logger) *CachedEmbedder {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{
		inner:  inner,
		memory: cache.NewLRU[string, []float32](capacity),
		repo:   repo,
		logger: logger,
	}
}

// Embed returns the embedding for text, using cache when available.
// Returned slices are shared; callers must not modify them.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := ContentHash(e.inner.Model(), text)

	if v, ok := e.memory.Get(hash); ok {
		return v, nil
	}

	if e.repo != nil {
		entry, err := e.repo.Get(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("cache lookup: %w", err)
		}
		if entry != nil {
			if v := vecindex.BytesToFloat32(entry.Embedding); v != nil {
				e.memory.Add(hash, v)
				return v, nil
			}
		}
	}

	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.memory.Add(hash, v)

	if e.repo != nil {
		err := e.repo.Put(ctx, store.EmbeddingCacheEntry{
			ContentHash: hash,
			Model:       e.inner.Model(),
			Dimension:   len(v),
			Embedding:   vecindex.Float32ToBytes(v),
		})
		if err != nil {
			e.logger.Warn("persist embedding failed", "error", err)
		}
	}

	return v, nil
}

func (e *CachedEmbedder) Model() string { return e.inner.Model() }

// Len returns the number of in-memory entries.
func (e *CachedEmbedder) Len() int { return e.memory.Len() }
