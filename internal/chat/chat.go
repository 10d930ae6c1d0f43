// Package chat answers learner questions from retrieved curriculum
// context and the running conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abhisek/dalil/internal/cache"
	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/embedding"
	"github.com/abhisek/dalil/internal/llm"
	"github.com/abhisek/dalil/internal/retrieval"
	"github.com/abhisek/dalil/internal/session"
	"github.com/abhisek/dalil/internal/tier"
)

// ErrMissingFields is returned when the user or question is empty.
var ErrMissingFields = errors.New("missing required fields")

// Config holds answer generation settings.
type Config struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// DefaultConfig returns the answer generation defaults.
func DefaultConfig() Config {
	return Config{
		Temperature: 0.5,
		TopP:        0.9,
		MaxTokens:   2048,
	}
}

// AskInput is one learner question.
type AskInput struct {
	UserID   string
	Question string
	Stage    string
	Era      string

	// SessionToken continues a conversation. Empty or "None" starts one.
	SessionToken string

	// Topic, when set, answers from that topic's content instead of
	// running retrieval.
	Topic string
}

// AskResult is the answer and the session it was recorded in.
type AskResult struct {
	SessionToken string `json:"session_nonce"`
	Answer       string `json:"answer"`
	Cached       bool   `json:"cached"`
}

// Service answers questions.
type Service struct {
	provider  llm.Provider
	retriever *retrieval.Retriever
	content   *corpus.Content
	sessions  *session.Manager
	responses cache.TextCache
	cfg       Config
	logger    *slog.Logger
}

// Options wires optional collaborators into a Service.
type Options struct {
	// Responses caches answers by question. Nil disables caching.
	Responses cache.TextCache
	Config    Config
	Logger    *slog.Logger
}

// NewService creates a chat Service.
func NewService(provider llm.Provider, retriever *retrieval.Retriever, content *corpus.Content, sessions *session.Manager, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		provider:  provider,
		retriever: retriever,
		content:   content,
		sessions:  sessions,
		responses: opts.Responses,
		cfg:       opts.Config,
		logger:    opts.Logger,
	}
}

// Ask answers in.Question and appends the exchange to the session.
// An unknown session token yields session.ErrNotFound.
func (s *Service) Ask(ctx context.Context, in AskInput) (*AskResult, error) {
	if in.UserID == "" || strings.TrimSpace(in.Question) == "" {
		return nil, ErrMissingFields
	}

	var history []session.Turn
	token := in.SessionToken
	fresh := token == "" || token == "None"
	if !fresh {
		sess, err := s.sessions.Get(ctx, in.UserID, token)
		if err != nil {
			return nil, err
		}
		history = sess.Turns
	}

	key := responseKey(in)
	answer, cached := s.cachedAnswer(ctx, key)
	if !cached {
		passage, err := s.passage(ctx, in, history)
		if err != nil {
			return nil, err
		}

		resp, err := s.provider.Generate(llm.WithPurpose(ctx, "answer"), llm.Request{
			System:      systemPrompt(in.Stage),
			Messages:    llm.UserMessage(userPrompt(passage, history, in.Question)),
			MaxTokens:   s.cfg.MaxTokens,
			Temperature: s.cfg.Temperature,
			TopP:        s.cfg.TopP,
		})
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		answer = resp.Text()
	}

	// A new session only exists once it has an answered turn.
	if fresh {
		var err error
		token, err = s.sessions.Create(ctx, in.UserID, in.Stage, in.Topic)
		if err != nil {
			return nil, err
		}
	}
	if err := s.sessions.AddTurn(ctx, in.UserID, token, in.Question, answer); err != nil {
		return nil, err
	}
	if cached {
		return &AskResult{SessionToken: token, Answer: answer, Cached: true}, nil
	}
	if s.responses != nil {
		if err := s.responses.Set(ctx, key, answer); err != nil {
			s.logger.Warn("response cache write failed", "error", err)
		}
	}
	return &AskResult{SessionToken: token, Answer: answer}, nil
}

// passage returns the text the answer is grounded on.
func (s *Service) passage(ctx context.Context, in AskInput, history []session.Turn) (string, error) {
	if in.Topic != "" {
		if item, ok := s.content.FindTopic(in.Stage, in.Topic); ok {
			return item.Content, nil
		}
		s.logger.Warn("topic not in corpus, falling back to retrieval", "stage", in.Stage, "topic", in.Topic)
	}

	turns := make([]retrieval.Turn, len(history))
	for i, t := range history {
		turns[i] = retrieval.Turn{Question: t.Question, Answer: t.Answer}
	}
	passages, err := s.retriever.Retrieve(ctx, retrieval.Query{
		Question: in.Question,
		Stage:    in.Stage,
		Era:      in.Era,
		History:  turns,
	})
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	return strings.Join(passages, "\n"), nil
}

func (s *Service) cachedAnswer(ctx context.Context, key string) (string, bool) {
	if s.responses == nil {
		return "", false
	}
	answer, ok, err := s.responses.Get(ctx, key)
	if err != nil {
		s.logger.Warn("response cache read failed", "error", err)
		return "", false
	}
	return answer, ok && answer != ""
}

// responseKey scopes cached answers to the stage and topic they were
// written for.
func responseKey(in AskInput) string {
	return embedding.ContentHash(in.Stage+"\x00"+in.Topic, strings.TrimSpace(in.Question))
}

func systemPrompt(stage string) string {
	return fmt.Sprintf("You are an AI history teacher answering questions in Arabic.\n%s\nProvide structured responses specifically tailored for %s level students.\nFocus on clarity and appropriate examples for this educational level.",
		tier.Guidance(stage, tier.Answer), stage)
}

func userPrompt(passage string, history []session.Turn, question string) string {
	turns := make([]string, len(history))
	for i, t := range history {
		turns[i] = fmt.Sprintf("Q: %s\nA: %s", t.Question, t.Answer)
	}
	return fmt.Sprintf("Relevant Context:\n%s\n\nHistory of Q&A:\n%s\n\nCurrent Question: %s\nAnswer:",
		passage, strings.Join(turns, "\n"), question)
}
