package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TextCache stores generated text keyed by a request fingerprint.
type TextCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryText is a TextCache backed by an in-process LRU.
type MemoryText struct {
	lru *LRU[string, string]
}

// NewMemoryText creates an in-process text cache of the given capacity.
func NewMemoryText(capacity int) *MemoryText {
	return &MemoryText{lru: NewLRU[string, string](capacity)}
}

func (m *MemoryText) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *MemoryText) Set(_ context.Context, key, value string) error {
	m.lru.Add(key, value)
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryText) Len() int {
	return m.lru.Len()
}

// RedisText is a TextCache shared across processes through Redis.
// Capacity is bounded by the server's maxmemory policy; entries carry a TTL.
type RedisText struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisText connects to addr and verifies the server answers PING.
func NewRedisText(ctx context.Context, addr, password string, db int, prefix string, ttl time.Duration) (*RedisText, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisText{client: client, prefix: prefix, ttl: ttl}, nil
}

// NewRedisTextWithClient wraps an existing client.
func NewRedisTextWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisText {
	return &RedisText{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisText) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (r *RedisText) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisText) Close() error {
	return r.client.Close()
}
