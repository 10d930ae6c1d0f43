// Package events runs the historical-events quiz: a learner either names
// the event for a date or dates an event.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/notify"
)

// ErrQuestionNotFound is returned for a submitted id that is not in the
// events corpus for the submitted stage.
var ErrQuestionNotFound = errors.New("event question not found")

// DefaultNumQuestions is the events quiz length.
const DefaultNumQuestions = 5

// Type selects what the learner supplies.
type Type int

const (
	// DateToEvent shows the date and asks for the event.
	DateToEvent Type = 0
	// EventToDate shows the event and asks for its date.
	EventToDate Type = 1
)

// Question is one events-quiz item.
type Question struct {
	ID    int    `json:"id"`
	Date  string `json:"date"`
	Event string `json:"event"`
	Type  Type   `json:"type"`
}

// Answer is a learner's reply to one Question.
type Answer struct {
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
	Type       Type   `json:"type"`
}

// Result is the graded outcome of one Answer.
type Result struct {
	QuestionID int      `json:"question_id"`
	Correct    bool     `json:"correct"`
	Progress   Progress `json:"progress"`
}

// ProgressView summarises a learner's events progress for a stage.
type ProgressView struct {
	SolvedQuestions   []Solved `json:"solved_questions"`
	TotalEvents       int      `json:"total_events"`
	MasteryPercentage float64  `json:"mastery_percentage"`
}

// Service selects events questions and grades answers.
type Service struct {
	events    *corpus.Events
	validator *Validator
	tracker   *Tracker
	publisher notify.Publisher
	logger    *slog.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewService creates a Service. publisher may be nil.
func NewService(events *corpus.Events, validator *Validator, tracker *Tracker, publisher notify.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		events:    events,
		validator: validator,
		tracker:   tracker,
		publisher: publisher,
		logger:    logger,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Generate picks n unsolved events of stage in chronological order. When
// fewer than n remain it returns an empty slice.
func (s *Service) Generate(ctx context.Context, userID, stage string, n int) ([]Question, error) {
	if n <= 0 {
		n = DefaultNumQuestions
	}
	progress, err := s.tracker.Get(ctx, userID, stage)
	if err != nil {
		return nil, err
	}

	var available []corpus.EventItem
	for _, it := range s.events.ByStage(stage) {
		if !progress.IsSolved(it.Date, it.Content) {
			available = append(available, it)
		}
	}
	if len(available) < n {
		s.logger.Info("not enough unsolved events", "stage", stage, "available", len(available), "requested", n)
		return []Question{}, nil
	}

	questions := make([]Question, 0, n)
	s.mu.Lock()
	for _, i := range s.rng.Perm(len(available))[:n] {
		it := available[i]
		typ := DateToEvent
		if !strings.Contains(it.Date, "-") && s.rng.IntN(2) == 1 {
			typ = EventToDate
		}
		questions = append(questions, Question{ID: it.ID, Date: it.Date, Event: it.Content, Type: typ})
	}
	s.mu.Unlock()

	sortChronologically(questions)
	return questions, nil
}

// sortChronologically orders by first date; unparseable dates go last.
func sortChronologically(qs []Question) {
	slices.SortStableFunc(qs, func(a, b Question) int {
		ta, okA := sortKey(a.Date)
		tb, okB := sortKey(b.Date)
		switch {
		case okA && okB:
			return ta.Compare(tb)
		case okA:
			return -1
		case okB:
			return 1
		}
		return 0
	})
}

// Submit grades answers in order and records each one. Every id is
// checked before anything is recorded.
func (s *Service) Submit(ctx context.Context, userID, stage string, answers []Answer) ([]Result, error) {
	items := make([]corpus.EventItem, len(answers))
	for i, a := range answers {
		it, ok := s.events.Get(a.QuestionID)
		if !ok || it.EducationalStage != stage {
			return nil, fmt.Errorf("%w: %d", ErrQuestionNotFound, a.QuestionID)
		}
		items[i] = it
	}

	results := make([]Result, 0, len(answers))
	for i, a := range answers {
		it := items[i]
		var correct bool
		if a.Type == DateToEvent {
			correct = s.validator.ValidateEvent(ctx, a.Answer, it)
		} else {
			correct = ValidateDate(a.Answer, it.Date)
		}

		p, err := s.tracker.Record(ctx, userID, stage, Attempt{
			Date:    it.Date,
			Event:   it.Content,
			Answer:  a.Answer,
			Correct: correct,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, Result{QuestionID: a.QuestionID, Correct: correct, Progress: *p})

		s.publish(ctx, notify.Event{
			Type:     notify.EventsProgressUpdated,
			UserID:   userID,
			Stage:    stage,
			Question: it.Content,
			Correct:  correct,
			Progress: s.mastery(stage, len(p.SolvedQuestions)),
		})
	}
	return results, nil
}

func (s *Service) publish(ctx context.Context, e notify.Event) {
	e.OccurredAt = time.Now().UTC()
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish events progress", "error", err)
	}
}

// Progress returns the solved list and mastery percentage for stage.
func (s *Service) Progress(ctx context.Context, userID, stage string) (*ProgressView, error) {
	p, err := s.tracker.Get(ctx, userID, stage)
	if err != nil {
		return nil, err
	}
	solved := p.SolvedQuestions
	if solved == nil {
		solved = []Solved{}
	}
	return &ProgressView{
		SolvedQuestions:   solved,
		TotalEvents:       len(s.events.ByStage(stage)),
		MasteryPercentage: s.mastery(stage, len(solved)),
	}, nil
}

func (s *Service) mastery(stage string, solved int) float64 {
	total := len(s.events.ByStage(stage))
	if total == 0 {
		return 0
	}
	return float64(solved) / float64(total) * 100
}
