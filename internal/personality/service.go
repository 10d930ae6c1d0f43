// Package personality runs the personality-matching quiz: the learner is
// shown historical figures and a shuffled list of descriptions and pairs
// each figure with its description.
package personality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/notify"
)

// ErrPersonalityNotFound is returned for a submitted id that is not a
// personality of the submitted stage.
var ErrPersonalityNotFound = errors.New("personality not found")

// DefaultNumQuestions is the number of figures per quiz.
const DefaultNumQuestions = 4

// Card is a figure shown to the learner.
type Card struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ImageLink string `json:"image_link,omitempty"`
}

// Description is a candidate description. Its ID equals the ID of the
// Card it describes.
type Description struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Quiz is one round of figures and shuffled descriptions.
type Quiz struct {
	Personalities []Card        `json:"personalities"`
	Descriptions  []Description `json:"descriptions"`
}

// Match pairs a figure with the description the learner chose.
type Match struct {
	PersonalityID int `json:"personality_id"`
	DescriptionID int `json:"description_id"`
}

// Result is the graded outcome of one Match.
type Result struct {
	PersonalityID int  `json:"personality_id"`
	Correct       bool `json:"correct"`
}

// SubmitResult holds the graded matches and the solved set afterwards.
type SubmitResult struct {
	Results  []Result `json:"results"`
	Progress []Solved `json:"progress"`
}

// ProgressView summarises a learner's personality progress for a stage.
type ProgressView struct {
	SolvedPersonalities []Solved `json:"solved_personalities"`
	TotalAttempts       int      `json:"total_attempts"`
	CorrectMatches      int      `json:"correct_matches"`
	TotalPersonalities  int      `json:"total_personalities"`
	MasteryPercentage   float64  `json:"mastery_percentage"`
}

// Service builds personality quizzes and grades matches.
type Service struct {
	items     *corpus.Personalities
	tracker   *Tracker
	publisher notify.Publisher
	logger    *slog.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewService creates a Service. publisher may be nil.
func NewService(items *corpus.Personalities, tracker *Tracker, publisher notify.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		items:     items,
		tracker:   tracker,
		publisher: publisher,
		logger:    logger,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Generate picks up to n unsolved figures of stage in corpus order and
// shuffles their descriptions. A stage with nothing left yields an empty
// quiz.
func (s *Service) Generate(ctx context.Context, userID, stage string, n int) (*Quiz, error) {
	if n <= 0 {
		n = DefaultNumQuestions
	}
	progress, err := s.tracker.Get(ctx, userID, stage)
	if err != nil {
		return nil, err
	}

	q := &Quiz{Personalities: []Card{}, Descriptions: []Description{}}
	for _, it := range s.items.ByStage(stage) {
		if len(q.Personalities) == n {
			break
		}
		if progress.IsSolved(it.Name) {
			continue
		}
		q.Personalities = append(q.Personalities, Card{ID: it.ID, Name: it.Name, ImageLink: it.ImageLink})
		q.Descriptions = append(q.Descriptions, Description{ID: it.ID, Text: it.Content})
	}

	s.mu.Lock()
	s.rng.Shuffle(len(q.Descriptions), func(i, j int) {
		q.Descriptions[i], q.Descriptions[j] = q.Descriptions[j], q.Descriptions[i]
	})
	s.mu.Unlock()

	if len(q.Personalities) < n {
		s.logger.Info("few unsolved personalities left", "stage", stage, "available", len(q.Personalities), "requested", n)
	}
	return q, nil
}

// Validate reports whether description matches personality.
func Validate(personalityID, descriptionID int) bool {
	return personalityID == descriptionID
}

// Submit grades matches in order and records each one. Every personality
// id is checked before anything is recorded.
func (s *Service) Submit(ctx context.Context, userID, stage string, matches []Match) (*SubmitResult, error) {
	items := make([]corpus.PersonalityItem, len(matches))
	for i, m := range matches {
		it, ok := s.items.Get(m.PersonalityID)
		if !ok || it.EducationalStage != stage {
			return nil, fmt.Errorf("%w: %d", ErrPersonalityNotFound, m.PersonalityID)
		}
		items[i] = it
	}

	out := &SubmitResult{Results: make([]Result, 0, len(matches))}
	var last *Progress
	for i, m := range matches {
		it := items[i]
		correct := Validate(m.PersonalityID, m.DescriptionID)
		p, err := s.tracker.Record(ctx, userID, stage, Solved{
			Name:        it.Name,
			Description: it.Content,
			ImageLink:   it.ImageLink,
		}, correct)
		if err != nil {
			return nil, err
		}
		last = p
		out.Results = append(out.Results, Result{PersonalityID: m.PersonalityID, Correct: correct})

		s.publish(ctx, notify.Event{
			Type:     notify.PersonalityProgressUpdated,
			UserID:   userID,
			Stage:    stage,
			Question: it.Name,
			Correct:  correct,
			Progress: s.mastery(stage, p.TotalSolved),
		})
	}

	if last == nil {
		p, err := s.tracker.Get(ctx, userID, stage)
		if err != nil {
			return nil, err
		}
		last = &p
	}
	out.Progress = last.SolvedPersonalities
	if out.Progress == nil {
		out.Progress = []Solved{}
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, e notify.Event) {
	e.OccurredAt = time.Now().UTC()
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish personality progress", "error", err)
	}
}

// Progress returns the solved set and mastery percentage for stage.
func (s *Service) Progress(ctx context.Context, userID, stage string) (*ProgressView, error) {
	p, err := s.tracker.Get(ctx, userID, stage)
	if err != nil {
		return nil, err
	}
	solved := p.SolvedPersonalities
	if solved == nil {
		solved = []Solved{}
	}
	return &ProgressView{
		SolvedPersonalities: solved,
		TotalAttempts:       p.TotalAttempts,
		CorrectMatches:      p.CorrectMatches,
		TotalPersonalities:  len(s.items.ByStage(stage)),
		MasteryPercentage:   s.mastery(stage, p.TotalSolved),
	}, nil
}

func (s *Service) mastery(stage string, solved int) float64 {
	total := len(s.items.ByStage(stage))
	if total == 0 {
		return 0
	}
	return float64(solved) / float64(total) * 100
}
