package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// sessionRepo implements SessionRepo.
type sessionRepo struct {
	db *sql.DB
}

var sessionColumns = []string{
	"token", "user_id", "stage", "topic", "language",
	"created_at", "last_activity", "questions_count",
}

func scanSession(scan func(dest ...any) error) (*SessionRecord, error) {
	var rec SessionRecord
	err := scan(
		&rec.Token, &rec.UserID, &rec.Stage, &rec.Topic, &rec.Language,
		&rec.CreatedAt, &rec.LastActivity, &rec.QuestionsCount,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *sessionRepo) Create(ctx context.Context, rec SessionRecord) error {
	if rec.Language == "" {
		rec.Language = "ar"
	}
	query, args := builder().
		Insert(tableSessions).
		Columns(sessionColumns...).
		Values(
			rec.Token, rec.UserID, rec.Stage, rec.Topic, rec.Language,
			rec.CreatedAt.UTC(), rec.LastActivity.UTC(), rec.QuestionsCount,
		).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, token string) (*SessionRecord, error) {
	query, args := builder().
		Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("token", token)).
		Query()

	rec, err := scanSession(r.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return rec, nil
}

func (r *sessionRepo) AppendTurn(ctx context.Context, token, question, answer string, at time.Time) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := builder().
			Update(tableSessions).
			Add("questions_count", 1).
			Set("last_activity", at.UTC()).
			Where(entsql.EQ("token", token)).
			Query()

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		var next int
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM session_turns WHERE token = ?`, token,
		).Scan(&next)
		if err != nil {
			return fmt.Errorf("next turn seq: %w", err)
		}

		query, args = builder().
			Insert(tableSessionTurns).
			Columns("token", "seq", "question", "answer", "created_at").
			Values(token, next, question, answer, at.UTC()).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
		return nil
	})
}

func (r *sessionRepo) Turns(ctx context.Context, token string) ([]TurnRecord, error) {
	query, args := builder().
		Select("seq", "question", "answer", "created_at").
		From(entsql.Table(tableSessionTurns)).
		Where(entsql.EQ("token", token)).
		OrderBy("seq").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var t TurnRecord
		if err := rows.Scan(&t.Seq, &t.Question, &t.Answer, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID string) ([]SessionRecord, error) {
	query, args := builder().
		Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("last_activity")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *sessionRepo) DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int, error) {
	stale := entsql.LT("last_activity", cutoff.UTC())

	var n int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		// Turns are removed explicitly; foreign_keys is a per-connection
		// pragma and may be off on pooled connections.
		query, args := builder().
			Delete(tableSessionTurns).
			Where(entsql.In("token", builder().
				Select("token").
				From(entsql.Table(tableSessions)).
				Where(stale))).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete old turns: %w", err)
		}

		query, args = builder().
			Delete(tableSessions).
			Where(entsql.LT("last_activity", cutoff.UTC())).
			Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete old sessions: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
