package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type embeddingCacheRepo struct {
	db *sql.DB
}

func (r *embeddingCacheRepo) Get(ctx context.Context, hash string) (*EmbeddingCacheEntry, error) {
	query, args := builder().
		Select("model", "dimension", "embedding", "created_at").
		From(entsql.Table(tableEmbeddings)).
		Where(entsql.EQ("content_hash", hash)).
		Query()

	e := &EmbeddingCacheEntry{ContentHash: hash}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&e.Model, &e.Dimension, &e.Embedding, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	return e, nil
}

func (r *embeddingCacheRepo) Put(ctx context.Context, e EmbeddingCacheEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	query, args := builder().
		Insert(tableEmbeddings).
		Columns("content_hash", "model", "dimension", "embedding", "created_at").
		Values(e.ContentHash, e.Model, e.Dimension, e.Embedding, e.CreatedAt.UTC()).
		OnConflict(
			entsql.ConflictColumns("content_hash"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put embedding: %w", err)
	}
	return nil
}

func (r *embeddingCacheRepo) Count(ctx context.Context) (int, error) {
	query, args := builder().
		Select(entsql.Count("*")).
		From(entsql.Table(tableEmbeddings)).
		Query()

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}
