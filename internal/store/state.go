package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// stateRepo implements StateRepo over the learner_state table, scoped to
// one kind of document.
type stateRepo struct {
	db   *sql.DB
	kind string
}

func (r *stateRepo) keyPredicate(key StateKey) *entsql.Predicate {
	return entsql.And(
		entsql.EQ("kind", r.kind),
		entsql.EQ("user_id", key.UserID),
		entsql.EQ("stage", key.Stage),
		entsql.EQ("level", key.Level),
	)
}

func (r *stateRepo) Get(ctx context.Context, key StateKey) (*StateRecord, error) {
	return r.get(ctx, r.db, key)
}

func (r *stateRepo) get(ctx context.Context, q querier, key StateKey) (*StateRecord, error) {
	query, args := builder().
		Select("data", "updated_at").
		From(entsql.Table(tableLearnerState)).
		Where(r.keyPredicate(key)).
		Query()

	rec := &StateRecord{StateKey: key}
	var data []byte
	err := q.QueryRowContext(ctx, query, args...).Scan(&data, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query %s state: %w", r.kind, err)
	}
	rec.Data = json.RawMessage(data)
	return rec, nil
}

func (r *stateRepo) ListByUser(ctx context.Context, userID string) ([]StateRecord, error) {
	query, args := builder().
		Select("stage", "level", "data", "updated_at").
		From(entsql.Table(tableLearnerState)).
		Where(entsql.And(
			entsql.EQ("kind", r.kind),
			entsql.EQ("user_id", userID),
		)).
		OrderBy("stage", "level").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s state: %w", r.kind, err)
	}
	defer rows.Close()

	var out []StateRecord
	for rows.Next() {
		rec := StateRecord{StateKey: StateKey{UserID: userID}}
		var data []byte
		if err := rows.Scan(&rec.Stage, &rec.Level, &data, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s state: %w", r.kind, err)
		}
		rec.Data = json.RawMessage(data)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *stateRepo) Update(ctx context.Context, key StateKey, fn func(current json.RawMessage) (json.RawMessage, error)) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		cur, err := r.get(ctx, tx, key)
		if err != nil {
			return err
		}

		var current json.RawMessage
		if cur != nil {
			current = cur.Data
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		query, args := builder().
			Insert(tableLearnerState).
			Columns("kind", "user_id", "stage", "level", "data", "updated_at").
			Values(r.kind, key.UserID, key.Stage, key.Level, []byte(next), time.Now().UTC()).
			OnConflict(
				entsql.ConflictColumns("kind", "user_id", "stage", "level"),
				entsql.ResolveWithNewValues(),
			).
			Query()

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert %s state: %w", r.kind, err)
		}
		return nil
	})
}
