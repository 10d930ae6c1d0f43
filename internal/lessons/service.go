// Package lessons rewrites a topic's textbook content into a markdown
// lesson pitched at the learner's stage, caching the result per topic.
package lessons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/llm"
	"github.com/abhisek/dalil/internal/store"
)

// ErrTopicNotFound is returned when no content row matches (stage, topic).
var ErrTopicNotFound = errors.New("topic not found")

// Service generates and caches topic lessons.
type Service struct {
	provider llm.Provider
	content  *corpus.Content
	cache    store.CacheRepo
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a lesson service. cache may be nil.
func NewService(provider llm.Provider, content *corpus.Content, cache store.CacheRepo, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		content:  content,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Topics lists the distinct topics of stage with 1-based ids.
func (s *Service) Topics(stage string) []corpus.Topic {
	return s.content.Topics(stage)
}

// TopicByID resolves an id from Topics.
func (s *Service) TopicByID(stage, id string) (corpus.Topic, error) {
	for _, t := range s.content.Topics(stage) {
		if t.ID == id {
			return t, nil
		}
	}
	return corpus.Topic{}, fmt.Errorf("%w: id %s in %s", ErrTopicNotFound, id, stage)
}

func cacheKey(stage, topic string) string {
	return stage + ":" + topic
}

type lessonOutput struct {
	Markdown string   `json:"markdown"`
	KeyTerms []string `json:"key_terms"`
}

// TopicContent returns the lesson for topic. A generation failure is not
// an error: the raw content comes back with Enhanced unset.
func (s *Service) TopicContent(ctx context.Context, stage, topic string) (*Lesson, error) {
	item, ok := s.content.FindTopic(stage, topic)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrTopicNotFound, topic, stage)
	}
	key := cacheKey(stage, topic)

	if cached, ok := s.cached(ctx, key); ok {
		return &Lesson{Stage: stage, Topic: topic, Content: cached, Enhanced: true, Cached: true}, nil
	}

	markdown, err := s.generate(ctx, stage, topic, item.Content)
	if err != nil {
		s.logger.Warn("lesson generation failed, serving raw content", "stage", stage, "topic", topic, "error", err)
		return &Lesson{Stage: stage, Topic: topic, Content: item.Content}, nil
	}
	if markdown == "" {
		return &Lesson{Stage: stage, Topic: topic, Content: item.Content}, nil
	}

	s.store(ctx, key, markdown)
	return &Lesson{Stage: stage, Topic: topic, Content: markdown, Enhanced: true}, nil
}

func (s *Service) generate(ctx context.Context, stage, topic, content string) (string, error) {
	ctx = llm.WithPurpose(ctx, "lesson")

	req := llm.Request{
		System:      lessonSystemPrompt(stage),
		Messages:    llm.UserMessage(lessonUserMessage(topic, content)),
		Schema:      LessonSchema,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		TopP:        s.cfg.TopP,
	}

	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("lesson generation: %w", err)
	}

	var out lessonOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("parse lesson response: %w", err)
	}
	return CleanMarkdown(out.Markdown), nil
}

func (s *Service) cached(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("topic cache read failed", "key", key, "error", err)
		return "", false
	}
	if entry == nil {
		return "", false
	}
	var e cacheEntry
	if err := json.Unmarshal(entry.Value, &e); err != nil || strings.TrimSpace(e.Content) == "" {
		return "", false
	}
	return e.Content, true
}

func (s *Service) store(ctx context.Context, key, content string) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(cacheEntry{Content: content, Timestamp: s.now().UTC()})
	if err != nil {
		return
	}
	if err := s.cache.Put(ctx, key, data); err != nil {
		s.logger.Warn("topic cache write failed", "key", key, "error", err)
	}
}
