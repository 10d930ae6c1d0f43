package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/abhisek/dalil/internal/mastery"
	"github.com/abhisek/dalil/internal/retry"
	"github.com/abhisek/dalil/internal/store"
)

// ErrMissingFields is returned when a request lacks the user, stage or level.
var ErrMissingFields = errors.New("missing required fields")

// ErrNoGenerator is returned by GenerateForUser on a Service built
// without a generator when no cached quiz is available.
var ErrNoGenerator = errors.New("quiz generation is not configured")

// invalidData is reported for submitted ids that are not in the quiz.
const invalidData = "invalid data"

// Service wraps the Generator with per-user state: answered questions
// from the mastery tracker, an optional quiz cache and submission grading.
type Service struct {
	gen     *Generator
	tracker *mastery.Tracker
	cache   store.CacheRepo
	policy  retry.Policy
	logger  *slog.Logger
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// Cache stores the last non-empty quiz per (user, stage, level).
	// Nil disables quiz caching.
	Cache store.CacheRepo

	// Regenerate is how many extra whole-quiz attempts run when a
	// generation comes back empty.
	Regenerate int

	Logger *slog.Logger
}

// NewService creates a Service.
func NewService(gen *Generator, tracker *mastery.Tracker, opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		gen:     gen,
		tracker: tracker,
		cache:   opts.Cache,
		policy:  retry.Immediate(1 + opts.Regenerate),
		logger:  opts.Logger,
	}
}

// GenerateRequest asks for a quiz for one learner.
type GenerateRequest struct {
	UserID       string
	Stage        string
	Level        int
	NumQuestions int

	// UseCache returns a previously generated quiz when one is stored.
	UseCache bool
}

// GenerateResult is a generated or cached quiz.
type GenerateResult struct {
	Quiz   []Question `json:"quiz"`
	Cached bool       `json:"cached"`
}

type cachedQuiz struct {
	Quiz []Question `json:"quiz"`
}

func cacheKey(userID, stage string, level int) string {
	return fmt.Sprintf("%s/%s/%d", userID, stage, level)
}

// GenerateForUser returns a quiz that avoids the learner's correctly
// answered questions. An empty quiz is a valid outcome.
func (s *Service) GenerateForUser(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.UserID == "" || req.Stage == "" || req.Level <= 0 {
		return nil, ErrMissingFields
	}
	key := cacheKey(req.UserID, req.Stage, req.Level)

	if req.UseCache && s.cache != nil {
		if quiz, ok := s.cached(ctx, key); ok {
			return &GenerateResult{Quiz: quiz, Cached: true}, nil
		}
	}

	if s.gen == nil {
		return nil, ErrNoGenerator
	}

	answered, err := s.tracker.AnsweredQuestions(ctx, req.UserID, req.Stage, req.Level)
	if err != nil {
		return nil, fmt.Errorf("load answered questions: %w", err)
	}

	in := GenerateInput{
		Stage:        req.Stage,
		Level:        req.Level,
		Answered:     answered,
		NumQuestions: req.NumQuestions,
	}
	quiz, err := retry.Until(ctx, s.policy, func(ctx context.Context, attempt int) ([]Question, bool, error) {
		if attempt > 0 {
			s.logger.Info("regenerating empty quiz", "stage", req.Stage, "level", req.Level, "attempt", attempt+1)
		}
		q, err := s.gen.Generate(ctx, in)
		return q, len(q) > 0, err
	})
	if err != nil && !errors.Is(err, retry.ErrExhausted) {
		return nil, err
	}
	if quiz == nil {
		quiz = []Question{}
	}

	if len(quiz) > 0 && s.cache != nil {
		s.store(ctx, key, quiz)
	}
	return &GenerateResult{Quiz: quiz}, nil
}

func (s *Service) cached(ctx context.Context, key string) ([]Question, bool) {
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("quiz cache read failed", "key", key, "error", err)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	var c cachedQuiz
	if err := json.Unmarshal(entry.Value, &c); err != nil || len(c.Quiz) == 0 {
		s.logger.Warn("ignoring unreadable cached quiz", "key", key, "error", err)
		return nil, false
	}
	return c.Quiz, true
}

func (s *Service) store(ctx context.Context, key string, quiz []Question) {
	data, err := json.Marshal(cachedQuiz{Quiz: quiz})
	if err != nil {
		s.logger.Warn("failed to encode quiz for cache", "error", err)
		return
	}
	if err := s.cache.Put(ctx, key, data); err != nil {
		s.logger.Warn("quiz cache write failed", "key", key, "error", err)
	}
}

// SubmitInput is a learner's answers to a quiz.
type SubmitInput struct {
	UserID string
	Stage  string
	Level  int

	// Answers maps question id to the selected answer index.
	Answers map[int]int
	Quiz    []Question

	StartTime time.Time
	EndTime   time.Time
}

// QuestionResult is the outcome for one submitted answer.
type QuestionResult struct {
	QuestionID int                   `json:"question_id"`
	Correct    bool                  `json:"correct"`
	Progress   *mastery.UpdateResult `json:"progress,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Summary totals a submission.
type Summary struct {
	TotalQuestions   int           `json:"total_questions"`
	CorrectAnswers   int           `json:"correct_answers"`
	IncorrectAnswers int           `json:"incorrect_answers"`
	Accuracy         float64       `json:"accuracy"`
	TimeTaken        time.Duration `json:"time_taken,omitempty"`
	FinalProgress    int           `json:"final_progress"`
}

// SubmitResult is the graded submission.
type SubmitResult struct {
	Results      []QuestionResult `json:"results"`
	Summary      Summary          `json:"summary"`
	MasteryStats mastery.Stats    `json:"mastery_stats"`
}

// Submit grades every answer and records it with the mastery tracker.
// Ids missing from the quiz are graded incorrect and noted in the result.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if in.UserID == "" || in.Stage == "" || in.Level <= 0 || len(in.Answers) == 0 || len(in.Quiz) == 0 {
		return nil, ErrMissingFields
	}

	ids := make([]int, 0, len(in.Answers))
	for id := range in.Answers {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	res := &SubmitResult{Results: make([]QuestionResult, 0, len(ids))}
	for _, id := range ids {
		correct := Grade(in.Quiz, id, in.Answers[id])
		if correct {
			res.Summary.CorrectAnswers++
		} else {
			res.Summary.IncorrectAnswers++
		}

		q, ok := Find(in.Quiz, id)
		if !ok {
			s.logger.Warn("submitted answer for unknown question", "question_id", id)
			res.Results = append(res.Results, QuestionResult{QuestionID: id, Error: invalidData})
			continue
		}
		progress, err := s.tracker.UpdateProgress(ctx, in.UserID, in.Stage, in.Level, q.Text, correct)
		if err != nil {
			return nil, fmt.Errorf("record answer %d: %w", id, err)
		}
		res.Results = append(res.Results, QuestionResult{QuestionID: id, Correct: correct, Progress: progress})
	}

	p, err := s.tracker.Progress(ctx, in.UserID, in.Stage, in.Level)
	if err != nil {
		return nil, err
	}
	stats, err := s.tracker.MasteryStats(ctx, in.UserID, in.Stage, in.Level)
	if err != nil {
		return nil, err
	}

	res.Summary.TotalQuestions = len(ids)
	res.Summary.Accuracy = float64(res.Summary.CorrectAnswers) / float64(len(ids)) * 100
	if !in.StartTime.IsZero() && !in.EndTime.IsZero() {
		res.Summary.TimeTaken = in.EndTime.Sub(in.StartTime)
	}
	res.Summary.FinalProgress = p.Progress
	res.MasteryStats = stats

	// The cached quiz has been answered; the next request should be fresh.
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(in.UserID, in.Stage, in.Level)); err != nil {
			s.logger.Warn("quiz cache invalidation failed", "error", err)
		}
	}
	return res, nil
}
