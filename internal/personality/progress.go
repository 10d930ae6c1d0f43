package personality

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/abhisek/dalil/internal/mastery"
	"github.com/abhisek/dalil/internal/store"
)

// Solved is a personality the learner has matched correctly.
type Solved struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageLink   string `json:"image_link,omitempty"`
}

// Progress is a learner's personality-quiz state for one stage.
type Progress struct {
	SolvedPersonalities []Solved `json:"solved_personalities"`
	TotalSolved         int      `json:"total_solved"`
	TotalAttempts       int      `json:"total_attempts"`
	CorrectMatches      int      `json:"correct_matches"`
}

// IsSolved reports whether the personality called name has been matched.
func (p *Progress) IsSolved(name string) bool {
	return slices.ContainsFunc(p.SolvedPersonalities, func(s Solved) bool {
		return s.Name == name
	})
}

// Tracker persists personality progress per (user, stage).
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

func stateKey(userID, stage string) store.StateKey {
	return store.StateKey{UserID: userID, Stage: stage}
}

// Record applies one graded match. Every match counts as an attempt; a
// correct one adds the personality to the solved set once.
func (t *Tracker) Record(ctx context.Context, userID, stage string, s Solved, correct bool) (*Progress, error) {
	unlock := t.locks.Lock(userID)
	defer unlock()

	var after Progress
	err := t.repo.Update(ctx, stateKey(userID, stage), func(current json.RawMessage) (json.RawMessage, error) {
		p, err := decode(current)
		if err != nil {
			return nil, err
		}
		p.TotalAttempts++
		if correct {
			p.CorrectMatches++
			if !p.IsSolved(s.Name) {
				p.SolvedPersonalities = append(p.SolvedPersonalities, s)
				p.TotalSolved++
			}
		}
		after = p
		return json.Marshal(p)
	})
	if err != nil {
		return nil, fmt.Errorf("update personality progress: %w", err)
	}

	if t.answers != nil {
		err := t.answers.AppendAnswer(ctx, store.AnswerEventData{
			Category: store.KindPersonalityProgress,
			UserID:   userID,
			Stage:    stage,
			Question: s.Name,
			Answer:   s.Description,
			Correct:  correct,
		})
		if err != nil {
			t.logger.Warn("failed to record personality answer", "error", err)
		}
	}
	return &after, nil
}

// Get returns the stage's progress, zero when absent.
func (t *Tracker) Get(ctx context.Context, userID, stage string) (Progress, error) {
	rec, err := t.repo.Get(ctx, stateKey(userID, stage))
	if err != nil {
		return Progress{}, fmt.Errorf("load personality progress: %w", err)
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
		return p, fmt.Errorf("decode personality progress: %w", err)
	}
	return p, nil
}
