package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var answerEventColumns = []string{
	"id", "sequence", "timestamp", "category", "user_id", "stage",
	"level", "question", "answer", "correct",
}

func (r *eventRepo) AppendAnswer(ctx context.Context, data AnswerEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().
		Insert(tableAnswerEvents).
		Columns(answerEventColumns[1:]...).
		Values(
			seqNum, time.Now().UTC(), data.Category, data.UserID, data.Stage,
			data.Level, data.Question, data.Answer, data.Correct,
		).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save answer event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryAnswers(ctx context.Context, userID string, opts QueryOpts) ([]AnswerEvent, error) {
	sel := builder().Select(answerEventColumns...).From(entsql.Table(tableAnswerEvents))
	query, args := applyQueryOpts(sel, []*entsql.Predicate{entsql.EQ("user_id", userID)}, opts).Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query answer events: %w", err)
	}
	defer rows.Close()

	var out []AnswerEvent
	for rows.Next() {
		var e AnswerEvent
		err := rows.Scan(
			&e.ID, &e.Sequence, &e.Timestamp, &e.Category, &e.UserID, &e.Stage,
			&e.Level, &e.Question, &e.Answer, &e.Correct,
		)
		if err != nil {
			return nil, fmt.Errorf("scan answer event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
