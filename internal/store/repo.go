package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that require the row to exist.
var ErrNotFound = errors.New("store: not found")

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// State kinds stored in learner_state.
const (
	KindQuizProgress        = "quiz"
	KindEventsProgress      = "events"
	KindPersonalityProgress = "personality"
)

// StateKey addresses one learner-state row. Level is 0 for state that is
// not split by level.
type StateKey struct {
	UserID string
	Stage  string
	Level  int
}

// StateRecord is a persisted learner-state blob.
type StateRecord struct {
	StateKey
	Data      json.RawMessage
	UpdatedAt time.Time
}

// StateRepo persists per-user state documents. The document shape is
// owned by the caller; the repository only sees JSON.
type StateRepo interface {
	// Get returns the record for key, or nil if none exists.
	Get(ctx context.Context, key StateKey) (*StateRecord, error)

	// ListByUser returns all records for a user, ordered by stage then level.
	ListByUser(ctx context.Context, userID string) ([]StateRecord, error)

	// Update runs a read-modify-write on one record inside a transaction.
	// fn receives the current document (nil when absent) and returns the
	// replacement.
	Update(ctx context.Context, key StateKey, fn func(current json.RawMessage) (json.RawMessage, error)) error
}

// SessionRecord is a persisted conversation session header.
type SessionRecord struct {
	Token          string
	UserID         string
	Stage          string
	Topic          string
	Language       string
	CreatedAt      time.Time
	LastActivity   time.Time
	QuestionsCount int
}

// TurnRecord is one question/answer exchange within a session.
type TurnRecord struct {
	Seq       int
	Question  string
	Answer    string
	CreatedAt time.Time
}

// SessionRepo persists conversation sessions and their turns.
type SessionRepo interface {
	Create(ctx context.Context, rec SessionRecord) error

	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, token string) (*SessionRecord, error)

	// AppendTurn adds a turn, bumps questions_count, and refreshes
	// last_activity. Returns ErrNotFound for unknown tokens.
	AppendTurn(ctx context.Context, token, question, answer string, at time.Time) error

	// Turns returns the session's turns oldest first.
	Turns(ctx context.Context, token string) ([]TurnRecord, error)

	// ListByUser returns the user's sessions, most recently active first.
	ListByUser(ctx context.Context, userID string) ([]SessionRecord, error)

	// DeleteInactiveSince removes sessions whose last activity is before
	// cutoff and returns how many were removed.
	DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int, error)
}

// CacheEntry is a cached value with its write time.
type CacheEntry struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// CacheRepo is a persistent key/value cache scoped to one namespace.
type CacheRepo interface {
	// Get returns the entry or nil if absent.
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// EmbeddingCacheEntry is a stored embedding vector.
type EmbeddingCacheEntry struct {
	ContentHash string
	Model       string
	Dimension   int
	Embedding   []byte
	CreatedAt   time.Time
}

// EmbeddingCacheRepo persists embeddings keyed by content hash.
type EmbeddingCacheRepo interface {
	// Get returns the entry or nil if absent.
	Get(ctx context.Context, hash string) (*EmbeddingCacheEntry, error)
	Put(ctx context.Context, e EmbeddingCacheEntry) error
	Count(ctx context.Context) (int, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM request event.
type LLMRequestEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsage aggregates LLM usage for one grouping key.
type LLMUsage struct {
	Purpose      string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// AnswerEventData records one graded answer.
type AnswerEventData struct {
	Category string // one of the Kind* values
	UserID   string
	Stage    string
	Level    int
	Question string
	Answer   string
	Correct  bool
}

// AnswerEvent is a stored answer event.
type AnswerEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	AnswerEventData
}

// EventRepo provides append and query access to domain events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns LLM events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns one event by ID, or nil if absent.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error)
	LLMUsageByModel(ctx context.Context) ([]LLMUsage, error)

	// AppendAnswer records a graded answer.
	AppendAnswer(ctx context.Context, data AnswerEventData) error

	// QueryAnswers returns a user's answer events, newest first.
	QueryAnswers(ctx context.Context, userID string, opts QueryOpts) ([]AnswerEvent, error)
}
