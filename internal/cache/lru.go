// Package cache provides the bounded caches used for embeddings and
// generated responses.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 1000

// LRU is a fixed-capacity, concurrency-safe cache that evicts the least
// recently used entry when full.
type LRU[K comparable, V any] struct {
	inner *lru.Cache[K, V]
}

// NewLRU creates an LRU holding at most capacity entries.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// lru.New only fails on a non-positive size.
	inner, _ := lru.New[K, V](capacity)
	return &LRU[K, V]{inner: inner}
}

// Get returns the cached value and marks it recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	return c.inner.Get(key)
}

// Add stores a value, evicting the oldest entry if needed.
// Reports whether an eviction happened.
func (c *LRU[K, V]) Add(key K, value V) bool {
	return c.inner.Add(key, value)
}

// Remove drops a key.
func (c *LRU[K, V]) Remove(key K) {
	c.inner.Remove(key)
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	return c.inner.Len()
}

// Purge empties the cache.
func (c *LRU[K, V]) Purge() {
	c.inner.Purge()
}
