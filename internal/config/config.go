// Package config assembles runtime configuration from defaults, an
// optional YAML file, a .env file, and DALIL_* environment variables,
// in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/dalil/internal/llm"
)

// Config is the full runtime configuration.
type Config struct {
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Corpus      CorpusConfig      `yaml:"corpus"`
	LLM         llm.Config        `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Chat        ChatConfig        `yaml:"chat"`
	Quiz        QuizConfig        `yaml:"quiz"`
	Events      EventsConfig      `yaml:"events"`
	Personality PersonalityConfig `yaml:"personality"`
	Session     SessionConfig     `yaml:"session"`
	Cache       CacheConfig       `yaml:"cache"`
	Notify      NotifyConfig      `yaml:"notify"`
}

// CorpusConfig points at the content, events and personality corpora.
type CorpusConfig struct {
	ContentPath       string `yaml:"content_path"`
	EventsPath        string `yaml:"events_path"`
	PersonalitiesPath string `yaml:"personalities_path"`
	// Normalizer names the text normalizer applied to questions before
	// embedding: "identity" or "arabic".
	Normalizer string `yaml:"normalizer"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	// Provider is one of "hash", "openai", "gemini", "ollama".
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Dim           int    `yaml:"dim"` // hash provider only
	CacheCapacity int    `yaml:"cache_capacity"`
}

type RetrievalConfig struct {
	CurrentWeight float64 `yaml:"current_weight"`
	TopK          int     `yaml:"top_k"`
	Threshold     float64 `yaml:"threshold"`
	MaxWords      int     `yaml:"max_words"`
	HistoryTurns  int     `yaml:"history_turns"`
}

type ChatConfig struct {
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
}

// QuizConfig tunes quiz generation.
type QuizConfig struct {
	NumQuestions        int     `yaml:"num_questions"`
	DedupThreshold      float64 `yaml:"dedup_threshold"`
	MaxContextRows      int     `yaml:"max_context_rows"`
	ContextWords        int     `yaml:"context_words"`
	QuestionTemperature float64 `yaml:"question_temperature"`
	OptionTemperature   float64 `yaml:"option_temperature"`
	// ParseRetries is the number of extra option calls after an
	// unparseable response.
	ParseRetries int `yaml:"parse_retries"`
	// RegenerateRetries is the number of extra whole-quiz attempts after
	// an empty quiz.
	RegenerateRetries int  `yaml:"regenerate_retries"`
	CacheQuizzes      bool `yaml:"cache_quizzes"`
}

type EventsConfig struct {
	NumQuestions   int     `yaml:"num_questions"`
	MatchThreshold float64 `yaml:"match_threshold"`
}

type PersonalityConfig struct {
	NumQuestions int `yaml:"num_questions"`
}

type SessionConfig struct {
	MaxAge time.Duration `yaml:"max_age"`
}

// CacheConfig configures the generation-response cache. When RedisAddr is
// set responses are shared through Redis; otherwise an in-process LRU of
// ResponseCapacity entries is used.
type CacheConfig struct {
	ResponseCapacity int           `yaml:"response_capacity"`
	RedisAddr        string        `yaml:"redis_addr"`
	RedisPassword    string        `yaml:"redis_password"`
	RedisDB          int           `yaml:"redis_db"`
	RedisTTL         time.Duration `yaml:"redis_ttl"`
}

// NotifyConfig configures progress-event publishing. Empty AMQPURL
// disables publishing.
type NotifyConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Corpus: CorpusConfig{
			Normalizer: "identity",
		},
		LLM: llm.DefaultConfig(),
		Embedding: EmbeddingConfig{
			Provider:      "hash",
			Dim:           256,
			CacheCapacity: 5000,
		},
		Retrieval: RetrievalConfig{
			CurrentWeight: 0.7,
			TopK:          20,
			Threshold:     55,
			MaxWords:      1000,
			HistoryTurns:  2,
		},
		Chat: ChatConfig{
			Temperature: 0.5,
			TopP:        0.9,
		},
		Quiz: QuizConfig{
			NumQuestions:        5,
			DedupThreshold:      0.86,
			MaxContextRows:      25,
			ContextWords:        500,
			QuestionTemperature: 0.7,
			OptionTemperature:   0.3,
			ParseRetries:        3,
			RegenerateRetries:   3,
			CacheQuizzes:        true,
		},
		Events: EventsConfig{
			NumQuestions:   5,
			MatchThreshold: 0.82,
		},
		Personality: PersonalityConfig{
			NumQuestions: 4,
		},
		Session: SessionConfig{
			MaxAge: 30 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			ResponseCapacity: 1000,
			RedisTTL:         24 * time.Hour,
		},
		Notify: NotifyConfig{
			Exchange: "dalil.progress",
		},
	}
}

// Load builds a Config. path names an optional YAML file; an empty path
// tries DALIL_CONFIG and then the XDG config location, skipping either if
// absent. A .env file in the working directory is loaded when present.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	explicit := path != ""
	if !explicit {
		path = os.Getenv("DALIL_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = defaultConfigPath()
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dalil", "config.yaml")
}

func (c *Config) applyEnv() {
	c.DBPath = envStr("DALIL_DB", c.DBPath)
	c.LogLevel = envStr("DALIL_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envStr("DALIL_LOG_FORMAT", c.LogFormat)

	c.Corpus.ContentPath = envStr("DALIL_CORPUS", c.Corpus.ContentPath)
	c.Corpus.EventsPath = envStr("DALIL_EVENTS_CORPUS", c.Corpus.EventsPath)
	c.Corpus.PersonalitiesPath = envStr("DALIL_PERSONALITIES_CORPUS", c.Corpus.PersonalitiesPath)
	c.Corpus.Normalizer = envStr("DALIL_NORMALIZER", c.Corpus.Normalizer)

	c.LLM.ApplyEnv()
	if os.Getenv("DALIL_LLM_PROVIDER") == "" && !c.LLM.HasKey() {
		if discovered, ok := llm.DiscoverConfig(); ok {
			discovered.Retry = c.LLM.Retry
			discovered.Timeout = c.LLM.Timeout
			c.LLM = discovered
		}
	}
	c.LLM.Retry.MaxAttempts = envInt("DALIL_LLM_RETRY_MAX_ATTEMPTS", c.LLM.Retry.MaxAttempts)

	c.Embedding.Provider = envStr("DALIL_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.Model = envStr("DALIL_EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.APIKey = envStr("DALIL_EMBEDDING_API_KEY", c.Embedding.APIKey)
	c.Embedding.BaseURL = envStr("DALIL_EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.Dim = envInt("DALIL_EMBEDDING_DIM", c.Embedding.Dim)
	c.Embedding.CacheCapacity = envInt("DALIL_EMBEDDING_CACHE_CAPACITY", c.Embedding.CacheCapacity)

	c.Retrieval.Threshold = envFloat("DALIL_RETRIEVAL_THRESHOLD", c.Retrieval.Threshold)
	c.Retrieval.MaxWords = envInt("DALIL_RETRIEVAL_MAX_WORDS", c.Retrieval.MaxWords)
	c.Retrieval.TopK = envInt("DALIL_RETRIEVAL_TOP_K", c.Retrieval.TopK)

	c.Quiz.NumQuestions = envInt("DALIL_QUIZ_NUM_QUESTIONS", c.Quiz.NumQuestions)
	c.Quiz.CacheQuizzes = envBool("DALIL_QUIZ_CACHE", c.Quiz.CacheQuizzes)

	c.Events.MatchThreshold = envFloat("DALIL_EVENTS_MATCH_THRESHOLD", c.Events.MatchThreshold)

	c.Personality.NumQuestions = envInt("DALIL_PERSONALITY_NUM_QUESTIONS", c.Personality.NumQuestions)

	c.Session.MaxAge = envDuration("DALIL_SESSION_MAX_AGE", c.Session.MaxAge)

	c.Cache.ResponseCapacity = envInt("DALIL_RESPONSE_CACHE_CAPACITY", c.Cache.ResponseCapacity)
	c.Cache.RedisAddr = envStr("DALIL_REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = envStr("DALIL_REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = envInt("DALIL_REDIS_DB", c.Cache.RedisDB)

	c.Notify.AMQPURL = envStr("DALIL_AMQP_URL", c.Notify.AMQPURL)
	c.Notify.Exchange = envStr("DALIL_AMQP_EXCHANGE", c.Notify.Exchange)
}

// Validate checks ranges of tuning values. LLM credentials are checked
// separately when a command needs the provider.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "hash", "openai", "gemini", "ollama":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "hash" && c.Embedding.Dim < 1 {
		return fmt.Errorf("embedding.dim must be positive, got %d", c.Embedding.Dim)
	}
	if c.Retrieval.CurrentWeight < 0 || c.Retrieval.CurrentWeight > 1 {
		return fmt.Errorf("retrieval.current_weight must be within [0,1], got %f", c.Retrieval.CurrentWeight)
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 100 {
		return fmt.Errorf("retrieval.threshold must be within [0,100], got %f", c.Retrieval.Threshold)
	}
	if c.Retrieval.MaxWords < 1 {
		return fmt.Errorf("retrieval.max_words must be positive, got %d", c.Retrieval.MaxWords)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Quiz.DedupThreshold <= 0 || c.Quiz.DedupThreshold > 1 {
		return fmt.Errorf("quiz.dedup_threshold must be within (0,1], got %f", c.Quiz.DedupThreshold)
	}
	if c.Quiz.ParseRetries < 0 || c.Quiz.RegenerateRetries < 0 {
		return fmt.Errorf("quiz retries must not be negative")
	}
	if c.Events.MatchThreshold <= 0 || c.Events.MatchThreshold > 1 {
		return fmt.Errorf("events.match_threshold must be within (0,1], got %f", c.Events.MatchThreshold)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
