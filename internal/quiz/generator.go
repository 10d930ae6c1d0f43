package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/embedding"
	"github.com/abhisek/dalil/internal/llm"
	"github.com/abhisek/dalil/internal/retry"
	"github.com/abhisek/dalil/internal/vecindex"
)

// Config controls the Generator.
type Config struct {
	// NumQuestions is requested when GenerateInput leaves it at zero.
	NumQuestions int

	// DedupThreshold drops content rows whose cosine to any answered
	// question reaches it.
	DedupThreshold float64

	// MaxContextRows caps the rows kept after deduplication.
	MaxContextRows int

	// ContextWords caps the joined context passed to both prompts.
	ContextWords int

	QuestionTemperature float64
	OptionTemperature   float64

	// ParseRetries is how many extra times the options call runs when
	// its reply parses to zero questions.
	ParseRetries int

	// MaxTokens is the token budget for each generation call.
	MaxTokens int
}

// DefaultConfig returns the recommended generator settings.
func DefaultConfig() Config {
	return Config{
		NumQuestions:        5,
		DedupThreshold:      0.86,
		MaxContextRows:      25,
		ContextWords:        500,
		QuestionTemperature: 0.7,
		OptionTemperature:   0.3,
		ParseRetries:        3,
		MaxTokens:           2048,
	}
}

// GenerateInput describes one quiz request.
type GenerateInput struct {
	Stage string
	Level int

	// Answered holds the texts of questions already answered correctly.
	Answered []string

	NumQuestions int
}

// Generator builds quizzes from corpus content through two generation
// calls: one for question texts and one for their options.
type Generator struct {
	provider llm.Provider
	embedder embedding.Embedder
	content  *corpus.Content
	config   Config
	logger   *slog.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewGenerator creates a Generator over content.
func NewGenerator(provider llm.Provider, embedder embedding.Embedder, content *corpus.Content, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		provider: provider,
		embedder: embedder,
		content:  content,
		config:   cfg,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger:   logger,
	}
}

// Generate returns a shuffled quiz, or an empty slice when no content is
// available or no reply could be parsed. Errors are returned only for
// embedding and provider failures.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) ([]Question, error) {
	n := in.NumQuestions
	if n <= 0 {
		n = g.config.NumQuestions
	}

	answered, err := embedding.EmbedAll(ctx, g.embedder, in.Answered)
	if err != nil {
		return nil, fmt.Errorf("embed answered questions: %w", err)
	}

	rows := g.selectContent(in.Stage, in.Level, answered)
	if len(rows) == 0 {
		g.logger.Info("no content for quiz", "stage", in.Stage, "level", in.Level)
		return []Question{}, nil
	}
	contents := make([]string, len(rows))
	for i, r := range rows {
		contents[i] = r.Content
	}
	passage := capWords(strings.Join(contents, "\n"), g.config.ContextWords)

	questionsResp, err := g.provider.Generate(llm.WithPurpose(ctx, "quiz-questions"), llm.Request{
		System:      questionsSystemPrompt(in.Stage, n, in.Answered),
		Messages:    llm.UserMessage(passage),
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.QuestionTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	questionText := strings.TrimSpace(questionsResp.Text())

	optionsReq := llm.Request{
		System:      optionsSystemPrompt,
		Messages:    llm.UserMessage(optionsUserMessage(questionText, passage)),
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.OptionTemperature,
	}
	policy := retry.Immediate(1 + g.config.ParseRetries)
	questions, err := retry.Until(ctx, policy, func(ctx context.Context, attempt int) ([]Question, bool, error) {
		resp, err := g.provider.Generate(llm.WithPurpose(ctx, "quiz-options"), optionsReq)
		if err != nil {
			return nil, false, fmt.Errorf("generate options: %w", err)
		}
		parsed := parse(strings.TrimSpace(resp.Text()), g.logger)
		if len(parsed) == 0 {
			g.logger.Debug("options reply parsed to no questions", "attempt", attempt+1)
		}
		return parsed, len(parsed) > 0, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		g.logger.Warn("quiz options unparseable after retries", "stage", in.Stage, "level", in.Level, "attempts", policy.MaxAttempts)
		return []Question{}, nil
	}
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	for i := range questions {
		Shuffle(&questions[i], g.rng)
	}
	g.mu.Unlock()
	return questions, nil
}

// selectContent filters by (stage, level), broadening to the stage, then
// keeps shuffled rows unlike every answered question.
func (g *Generator) selectContent(stage string, level int, answered [][]float32) []corpus.ContentItem {
	rows := g.content.ByStageLevel(stage, level)
	if len(rows) == 0 {
		rows = g.content.ByStage(stage)
	}
	if len(rows) == 0 {
		return nil
	}
	g.mu.Lock()
	g.rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	g.mu.Unlock()

	var kept []corpus.ContentItem
	for _, r := range rows {
		maxSim := -1.0
		for _, a := range answered {
			maxSim = max(maxSim, vecindex.Cosine(r.Embedding, a))
		}
		if maxSim < g.config.DedupThreshold {
			kept = append(kept, r)
		}
		if len(kept) >= g.config.MaxContextRows {
			break
		}
	}
	return kept
}
