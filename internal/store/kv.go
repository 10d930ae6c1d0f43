package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// cacheRepo implements CacheRepo over kv_cache.
type cacheRepo struct {
	db        *sql.DB
	namespace string
}

func (r *cacheRepo) Get(ctx context.Context, key string) (*CacheEntry, error) {
	query, args := builder().
		Select("value", "updated_at").
		From(entsql.Table(tableCache)).
		Where(entsql.And(
			entsql.EQ("namespace", r.namespace),
			entsql.EQ("key", key),
		)).
		Query()

	e := &CacheEntry{Key: key}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&e.Value, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s cache: %w", r.namespace, err)
	}
	return e, nil
}

func (r *cacheRepo) Put(ctx context.Context, key string, value []byte) error {
	query, args := builder().
		Insert(tableCache).
		Columns("namespace", "key", "value", "updated_at").
		Values(r.namespace, key, value, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("namespace", "key"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put %s cache: %w", r.namespace, err)
	}
	return nil
}

func (r *cacheRepo) Delete(ctx context.Context, key string) error {
	query, args := builder().
		Delete(tableCache).
		Where(entsql.And(
			entsql.EQ("namespace", r.namespace),
			entsql.EQ("key", key),
		)).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s cache: %w", r.namespace, err)
	}
	return nil
}
