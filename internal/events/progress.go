package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/abhisek/dalil/internal/mastery"
	"github.com/abhisek/dalil/internal/store"
)

// Solved identifies an event answered correctly.
type Solved struct {
	Date  string `json:"date"`
	Event string `json:"event"`
}

// Progress is a learner's events-quiz state for one stage.
type Progress struct {
	SolvedQuestions []Solved `json:"solved_questions"`
	TotalAttempts   int      `json:"total_attempts"`
	CorrectAnswers  int      `json:"correct_answers"`
}

// IsSolved reports whether (date, event) has been answered correctly.
func (p *Progress) IsSolved(date, event string) bool {
	return slices.Contains(p.SolvedQuestions, Solved{Date: date, Event: event})
}

// Attempt is one graded events answer.
type Attempt struct {
	Date    string
	Event   string
	Answer  string
	Correct bool
}

// Tracker persists events progress per (user, stage).
type Tracker struct {
	repo    store.StateRepo
	answers store.EventRepo
	locks   mastery.KeyedMutex
	logger  *slog.Logger
}

// NewTracker creates a Tracker. answers may be nil.
func NewTracker(repo store.StateRepo, answers store.EventRepo, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{repo: repo, answers: answers, logger: logger}
}

// Events progress is stored per stage only; the level slot of the key is
// always zero.
func stateKey(userID, stage string) store.StateKey {
	return store.StateKey{UserID: userID, Stage: stage}
}

// Record applies an attempt. Attempts always count; a correct answer
// also adds the (date, event) pair to the solved set.
func (t *Tracker) Record(ctx context.Context, userID, stage string, a Attempt) (*Progress, error) {
	unlock := t.locks.Lock(userID)
	defer unlock()

	var after Progress
	err := t.repo.Update(ctx, stateKey(userID, stage), func(current json.RawMessage) (json.RawMessage, error) {
		p, err := decode(current)
		if err != nil {
			return nil, err
		}
		if a.Correct {
			p.CorrectAnswers++
			if !p.IsSolved(a.Date, a.Event) {
				p.SolvedQuestions = append(p.SolvedQuestions, Solved{Date: a.Date, Event: a.Event})
			}
		}
		p.TotalAttempts++
		after = p
		return json.Marshal(p)
	})
	if err != nil {
		return nil, fmt.Errorf("update events progress: %w", err)
	}

	if t.answers != nil {
		err := t.answers.AppendAnswer(ctx, store.AnswerEventData{
			Category: store.KindEventsProgress,
			UserID:   userID,
			Stage:    stage,
			Question: a.Event,
			Answer:   a.Answer,
			Correct:  a.Correct,
		})
		if err != nil {
			t.logger.Warn("failed to record events answer", "error", err)
		}
	}
	return &after, nil
}

// Get returns the stage's progress, zero when absent.
func (t *Tracker) Get(ctx context.Context, userID, stage string) (Progress, error) {
	rec, err := t.repo.Get(ctx, stateKey(userID, stage))
	if err != nil {
		return Progress{}, fmt.Errorf("load events progress: %w", err)
	}
	if rec == nil {
		return Progress{}, nil
	}
	return decode(rec.Data)
}

func decode(data json.RawMessage) (Progress, error) {
	var p Progress
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode events progress: %w", err)
	}
	return p, nil
}
