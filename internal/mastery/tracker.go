// Package mastery tracks per-learner quiz progress for each (stage, level)
// and derives progress percentages, mastery scores and aggregate stats.
package mastery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/dalil/internal/notify"
	"github.com/abhisek/dalil/internal/store"
)

// UpdateResult is the state after one UpdateProgress call.
type UpdateResult struct {
	Progress           int      `json:"progress"`
	TotalCorrect       int      `json:"total_correct"`
	TotalIncorrect     int      `json:"total_incorrect"`
	IncorrectQuestions []string `json:"incorrect_questions"`
	TotalQuestionsSeen int      `json:"total_questions_seen"`
}

// Stats summarises mastery for one level.
type Stats struct {
	TotalCorrect       int `json:"total_correct"`
	QuestionsAttempted int `json:"questions_attempted"`
	MasteryScore       int `json:"mastery_score"`
}

// LevelSummary is one entry of StageProgress.
type LevelSummary struct {
	Progress int `json:"progress"`
	Stats
}

// Tracker owns LevelProgress records. Updates for one user are serialized
// in-process, and each read-modify-write runs in a single transaction.
type Tracker struct {
	repo      store.StateRepo
	answers   store.EventRepo
	publisher notify.Publisher
	locks     KeyedMutex
	logger    *slog.Logger
	now       func() time.Time
}

// Options wires optional collaborators into a Tracker.
type Options struct {
	// Answers records every graded answer when set.
	Answers   store.EventRepo
	Publisher notify.Publisher
	Logger    *slog.Logger
}

// NewTracker creates a Tracker backed by repo.
func NewTracker(repo store.StateRepo, opts Options) *Tracker {
	if opts.Publisher == nil {
		opts.Publisher = notify.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Tracker{
		repo:      repo,
		answers:   opts.Answers,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// UpdateProgress applies one graded answer to (user, stage, level).
func (t *Tracker) UpdateProgress(ctx context.Context, userID, stage string, level int, question string, correct bool) (*UpdateResult, error) {
	unlock := t.locks.Lock(userID)
	defer unlock()

	var (
		after       LevelProgress
		wasComplete bool
	)
	key := store.StateKey{UserID: userID, Stage: stage, Level: level}
	err := t.repo.Update(ctx, key, func(current json.RawMessage) (json.RawMessage, error) {
		p, err := decode(current)
		if err != nil {
			return nil, err
		}
		wasComplete = p.Complete()
		p.Apply(question, correct, level, t.now().UTC())
		after = p
		return json.Marshal(p)
	})
	if err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}

	if t.answers != nil {
		err := t.answers.AppendAnswer(ctx, store.AnswerEventData{
			Category: store.KindQuizProgress,
			UserID:   userID,
			Stage:    stage,
			Level:    level,
			Question: question,
			Correct:  correct,
		})
		if err != nil {
			t.logger.Warn("failed to record answer event", "error", err)
		}
	}

	t.publish(ctx, notify.Event{
		Type:     notify.QuizProgressUpdated,
		UserID:   userID,
		Stage:    stage,
		Level:    level,
		Question: question,
		Correct:  correct,
		Progress: float64(after.Progress),
	})
	if !wasComplete && after.Complete() {
		t.publish(ctx, notify.Event{
			Type:     notify.LevelCompleted,
			UserID:   userID,
			Stage:    stage,
			Level:    level,
			Correct:  correct,
			Progress: float64(after.Progress),
		})
	}

	return &UpdateResult{
		Progress:           after.Progress,
		TotalCorrect:       after.TotalCorrect,
		TotalIncorrect:     after.TotalIncorrect,
		IncorrectQuestions: after.IncorrectQuestions,
		TotalQuestionsSeen: after.TotalQuestionsSeen,
	}, nil
}

func (t *Tracker) publish(ctx context.Context, e notify.Event) {
	e.OccurredAt = t.now().UTC()
	if err := t.publisher.Publish(ctx, e); err != nil {
		t.logger.Warn("failed to publish progress event", "type", e.Type, "error", err)
	}
}

// Progress returns the level record, or a zero record when none exists.
func (t *Tracker) Progress(ctx context.Context, userID, stage string, level int) (LevelProgress, error) {
	rec, err := t.repo.Get(ctx, store.StateKey{UserID: userID, Stage: stage, Level: level})
	if err != nil {
		return LevelProgress{}, fmt.Errorf("load progress: %w", err)
	}
	if rec == nil {
		return LevelProgress{}, nil
	}
	return decode(rec.Data)
}

// AnsweredQuestions returns the questions answered correctly at a level.
func (t *Tracker) AnsweredQuestions(ctx context.Context, userID, stage string, level int) ([]string, error) {
	p, err := t.Progress(ctx, userID, stage, level)
	if err != nil {
		return nil, err
	}
	return p.AnsweredQuestions, nil
}

// IncorrectQuestions returns the questions currently answered wrong at a level.
func (t *Tracker) IncorrectQuestions(ctx context.Context, userID, stage string, level int) ([]string, error) {
	p, err := t.Progress(ctx, userID, stage, level)
	if err != nil {
		return nil, err
	}
	return p.IncorrectQuestions, nil
}

// MasteryStats returns mastery figures for one level.
func (t *Tracker) MasteryStats(ctx context.Context, userID, stage string, level int) (Stats, error) {
	p, err := t.Progress(ctx, userID, stage, level)
	if err != nil {
		return Stats{}, err
	}
	return statsOf(&p), nil
}

// StageProgress returns summaries for levels 1..MaxLevels of a stage.
func (t *Tracker) StageProgress(ctx context.Context, userID, stage string) (map[int]LevelSummary, error) {
	out := make(map[int]LevelSummary, MaxLevels)
	for level := 1; level <= MaxLevels; level++ {
		p, err := t.Progress(ctx, userID, stage, level)
		if err != nil {
			return nil, err
		}
		out[level] = LevelSummary{Progress: p.Progress, Stats: statsOf(&p)}
	}
	return out, nil
}

func statsOf(p *LevelProgress) Stats {
	return Stats{
		TotalCorrect:       p.TotalCorrect,
		QuestionsAttempted: p.TotalQuestionsSeen,
		MasteryScore:       p.MasteryScore(),
	}
}

func decode(data json.RawMessage) (LevelProgress, error) {
	var p LevelProgress
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode level progress: %w", err)
	}
	return p, nil
}
