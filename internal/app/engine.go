package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abhisek/dalil/internal/cache"
	"github.com/abhisek/dalil/internal/chat"
	"github.com/abhisek/dalil/internal/config"
	"github.com/abhisek/dalil/internal/corpus"
	"github.com/abhisek/dalil/internal/embedding"
	"github.com/abhisek/dalil/internal/events"
	"github.com/abhisek/dalil/internal/lessons"
	"github.com/abhisek/dalil/internal/llm"
	"github.com/abhisek/dalil/internal/mastery"
	"github.com/abhisek/dalil/internal/notify"
	"github.com/abhisek/dalil/internal/personality"
	"github.com/abhisek/dalil/internal/quiz"
	"github.com/abhisek/dalil/internal/retrieval"
	"github.com/abhisek/dalil/internal/session"
	"github.com/abhisek/dalil/internal/store"
	"github.com/abhisek/dalil/internal/textnorm"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
	redisKeyPrefix     = "dalil:response:"
)

// Engine holds every long-lived component. It is assembled once by New
// and not modified afterwards; callers share it freely.
type Engine struct {
	Config        *config.Config
	Store         *store.Store
	Provider      llm.Provider
	Embedder      embedding.Embedder
	Content       *corpus.Content
	Events        *corpus.Events
	Personalities *corpus.Personalities
	Publisher     notify.Publisher

	Retriever       *retrieval.Retriever
	Sessions        *session.Manager
	Chat            *chat.Service
	Mastery         *mastery.Tracker
	Quiz            *quiz.Service
	EventsQuiz      *events.Service
	PersonalityQuiz *personality.Service
	Lessons         *lessons.Service

	logger  *slog.Logger
	closers []func() error
}

// Options overrides parts of the configured wiring.
type Options struct {
	// DSN is the database location. Empty uses Config.DBPath, then the
	// default path.
	DSN string

	// Provider and Embedder replace the configured backends.
	Provider llm.Provider
	Embedder embedding.Embedder

	// Content, Events and Personalities replace the corpora named in
	// Config.
	Content       *corpus.Content
	Events        *corpus.Events
	Personalities *corpus.Personalities

	// SkipGeneration builds only what grading and progress need: no
	// provider is created and the content corpus becomes optional. Chat
	// and Lessons are nil, and Quiz can submit but not generate.
	SkipGeneration bool

	Logger *slog.Logger
}

// New builds an Engine from cfg. On error everything opened so far is
// closed again.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *Engine, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	if err := e.openStore(opts.DSN); err != nil {
		return nil, err
	}
	if !opts.SkipGeneration {
		if err := e.initProvider(ctx, opts.Provider); err != nil {
			return nil, err
		}
	}
	if err := e.initEmbedder(ctx, opts.Embedder); err != nil {
		return nil, err
	}
	if opts.SkipGeneration && opts.Content == nil && cfg.Corpus.ContentPath == "" {
		opts.Content = corpus.NewContent(nil)
	}
	if err := e.loadCorpora(ctx, opts.Content, opts.Events); err != nil {
		return nil, err
	}
	if err := e.loadPersonalities(opts.Personalities); err != nil {
		return nil, err
	}
	if err := e.initPublisher(); err != nil {
		return nil, err
	}
	responses, err := e.responseCache(ctx)
	if err != nil {
		return nil, err
	}

	threshold := cfg.Retrieval.Threshold
	if threshold == 0 {
		threshold = retrieval.NoThreshold
	}
	e.Retriever = retrieval.New(e.Content, e.Embedder, retrieval.Options{
		CurrentWeight: cfg.Retrieval.CurrentWeight,
		HistoryTurns:  cfg.Retrieval.HistoryTurns,
		MaxWords:      cfg.Retrieval.MaxWords,
		Threshold:     threshold,
		TopK:          cfg.Retrieval.TopK,
		Normalizer:    normalizer(cfg.Corpus.Normalizer),
		Logger:        logger,
	})

	e.Sessions = session.NewManager(e.Store.SessionRepo(), logger)
	if cfg.Session.MaxAge > 0 {
		if n, err := e.Sessions.CleanOld(ctx, cfg.Session.MaxAge); err != nil {
			logger.Warn("session cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info("removed inactive sessions", "count", n)
		}
	}

	if e.Provider != nil {
		chatCfg := chat.DefaultConfig()
		chatCfg.Temperature = cfg.Chat.Temperature
		chatCfg.TopP = cfg.Chat.TopP
		e.Chat = chat.NewService(e.Provider, e.Retriever, e.Content, e.Sessions, chat.Options{
			Responses: responses,
			Config:    chatCfg,
			Logger:    logger,
		})
		e.Lessons = lessons.NewService(e.Provider, e.Content, e.Store.CacheRepo("topic"), lessons.DefaultConfig(), logger)
	}

	e.Mastery = mastery.NewTracker(e.Store.ProgressRepo(), mastery.Options{
		Answers:   e.Store.EventRepo(),
		Publisher: e.Publisher,
		Logger:    logger,
	})

	quizCfg := quiz.DefaultConfig()
	quizCfg.NumQuestions = cfg.Quiz.NumQuestions
	quizCfg.DedupThreshold = cfg.Quiz.DedupThreshold
	quizCfg.MaxContextRows = cfg.Quiz.MaxContextRows
	quizCfg.ContextWords = cfg.Quiz.ContextWords
	quizCfg.QuestionTemperature = cfg.Quiz.QuestionTemperature
	quizCfg.OptionTemperature = cfg.Quiz.OptionTemperature
	quizCfg.ParseRetries = cfg.Quiz.ParseRetries
	var gen *quiz.Generator
	if e.Provider != nil {
		gen = quiz.NewGenerator(e.Provider, e.Embedder, e.Content, quizCfg, logger)
	}

	quizOpts := quiz.ServiceOptions{Regenerate: cfg.Quiz.RegenerateRetries, Logger: logger}
	if cfg.Quiz.CacheQuizzes {
		quizOpts.Cache = e.Store.CacheRepo("quiz")
	}
	e.Quiz = quiz.NewService(gen, e.Mastery, quizOpts)

	validator := events.NewValidator(e.Embedder, cfg.Events.MatchThreshold, logger)
	progress := events.NewTracker(e.Store.EventsProgressRepo(), e.Store.EventRepo(), logger)
	e.EventsQuiz = events.NewService(e.Events, validator, progress, e.Publisher, logger)

	figures := personality.NewTracker(e.Store.PersonalityProgressRepo(), e.Store.EventRepo(), logger)
	e.PersonalityQuiz = personality.NewService(e.Personalities, figures, e.Publisher, logger)

	provider := "none"
	if e.Provider != nil {
		provider = e.Provider.ModelID()
	}
	logger.Debug("engine ready",
		"provider", provider,
		"embedder", e.Embedder.Model(),
		"content", e.Content.Len(),
		"events", e.Events.Len(),
		"personalities", e.Personalities.Len(),
	)
	return e, nil
}

// Close releases everything New opened, most recent first.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func (e *Engine) openStore(dsn string) error {
	if dsn == "" {
		dsn = e.Config.DBPath
	}
	if dsn == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
		dsn = p
	}
	st, err := store.Open(dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	e.Store = st
	e.closers = append(e.closers, st.Close)
	return nil
}

func (e *Engine) initProvider(ctx context.Context, p llm.Provider) error {
	if p != nil {
		e.Provider = p
		return nil
	}
	if err := e.Config.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}
	p, err := llm.NewProvider(ctx, e.Config.LLM, e.Store.EventRepo(), e.logger)
	if err != nil {
		return err
	}
	e.Provider = p
	return nil
}

func (e *Engine) initEmbedder(ctx context.Context, inner embedding.Embedder) error {
	if inner == nil {
		var err error
		inner, err = NewEmbedder(ctx, e.Config.Embedding)
		if err != nil {
			return err
		}
	}
	e.Embedder = embedding.NewCachedEmbedder(inner, e.Config.Embedding.CacheCapacity, e.Store.EmbeddingCacheRepo(), e.logger)
	return nil
}

// NewEmbedder creates the uncached embedding backend named by cfg.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "hash":
		return embedding.NewHashEmbedder(cfg.Dim), nil
	case "openai":
		return embedding.NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "gemini":
		return embedding.NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model)
	case "ollama":
		url, model := cfg.BaseURL, cfg.Model
		if url == "" {
			url = defaultOllamaURL
		}
		if model == "" {
			model = defaultOllamaModel
		}
		return embedding.NewOllamaEmbedder(url, model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}

// loadCorpora reads both corpora and embeds any rows that lack a vector.
// The events corpus is optional.
func (e *Engine) loadCorpora(ctx context.Context, content *corpus.Content, evs *corpus.Events) error {
	if content == nil {
		path := e.Config.Corpus.ContentPath
		if path == "" {
			return errors.New("no content corpus configured (set corpus.content_path or DALIL_CORPUS)")
		}
		var err error
		if content, err = corpus.LoadContent(path); err != nil {
			return err
		}
	}
	if evs == nil {
		if path := e.Config.Corpus.EventsPath; path != "" {
			var err error
			if evs, err = corpus.LoadEvents(path); err != nil {
				return err
			}
		} else {
			evs = corpus.NewEvents(nil)
		}
	}

	n, err := content.EnsureEmbeddings(ctx, e.Embedder)
	if err != nil {
		return fmt.Errorf("embed content corpus: %w", err)
	}
	m, err := evs.EnsureEmbeddings(ctx, e.Embedder)
	if err != nil {
		return fmt.Errorf("embed events corpus: %w", err)
	}
	if n+m > 0 {
		e.logger.Info("computed corpus embeddings", "content", n, "events", m)
	}

	e.Content, e.Events = content, evs
	return nil
}

// loadPersonalities reads the optional personality corpus. It carries no
// vectors.
func (e *Engine) loadPersonalities(p *corpus.Personalities) error {
	if p == nil {
		if path := e.Config.Corpus.PersonalitiesPath; path != "" {
			var err error
			if p, err = corpus.LoadPersonalities(path); err != nil {
				return err
			}
		} else {
			p = corpus.NewPersonalities(nil)
		}
	}
	e.Personalities = p
	return nil
}

func (e *Engine) initPublisher() error {
	p, err := notify.NewAMQPPublisher(e.Config.Notify.AMQPURL, e.Config.Notify.Exchange, e.logger)
	if err != nil {
		return err
	}
	e.Publisher = p
	e.closers = append(e.closers, p.Close)
	return nil
}

func (e *Engine) responseCache(ctx context.Context) (cache.TextCache, error) {
	c := e.Config.Cache
	if c.RedisAddr == "" {
		return cache.NewMemoryText(c.ResponseCapacity), nil
	}
	r, err := cache.NewRedisText(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB, redisKeyPrefix, c.RedisTTL)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, r.Close)
	return r, nil
}

func normalizer(name string) textnorm.Normalizer {
	if name == "arabic" {
		return textnorm.Arabic
	}
	return textnorm.Identity
}
