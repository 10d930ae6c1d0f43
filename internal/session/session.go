// Package session manages learner conversation sessions: creation,
// appending question/answer turns, listing, and age-based cleanup.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/dalil/internal/store"
)

// ErrNotFound is returned for unknown tokens or tokens owned by another user.
var ErrNotFound = errors.New("session not found")

// DefaultMaxAge is the inactivity period after which CleanOld removes a session.
const DefaultMaxAge = 30 * 24 * time.Hour

// DefaultLanguage is recorded on new sessions.
const DefaultLanguage = "ar"

// Turn is one question and its answer.
type Turn struct {
	Question  string
	Answer    string
	Timestamp time.Time
}

// Session is a conversation with its turns oldest first.
type Session struct {
	Token          string
	UserID         string
	Stage          string
	Topic          string
	Language       string
	Turns          []Turn
	CreatedAt      time.Time
	LastActivity   time.Time
	QuestionsCount int
}

// Summary is a session listing entry.
type Summary struct {
	Token          string
	Stage          string
	Topic          string
	CreatedAt      time.Time
	LastActivity   time.Time
	QuestionsCount int
	FirstQuestion  string
}

// Manager owns session state for all users.
type Manager struct {
	repo   store.SessionRepo
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a Manager backed by repo.
func NewManager(repo store.SessionRepo, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{repo: repo, logger: logger, now: time.Now}
}

// Create starts a new session and returns its token.
func (m *Manager) Create(ctx context.Context, userID, stage, topic string) (string, error) {
	now := m.now()
	token := uuid.NewString()
	err := m.repo.Create(ctx, store.SessionRecord{
		Token:        token,
		UserID:       userID,
		Stage:        stage,
		Topic:        topic,
		Language:     DefaultLanguage,
		CreatedAt:    now,
		LastActivity: now,
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	m.logger.Debug("session created", "user", userID, "stage", stage, "token", token)
	return token, nil
}

// AddTurn appends a question and answer to the user's session.
func (m *Manager) AddTurn(ctx context.Context, userID, token, question, answer string) error {
	if _, err := m.header(ctx, userID, token); err != nil {
		return err
	}
	if err := m.repo.AppendTurn(ctx, token, question, answer, m.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Get returns the user's session with its turns.
func (m *Manager) Get(ctx context.Context, userID, token string) (*Session, error) {
	rec, err := m.header(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	turns, err := m.repo.Turns(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}

	s := &Session{
		Token:          rec.Token,
		UserID:         rec.UserID,
		Stage:          rec.Stage,
		Topic:          rec.Topic,
		Language:       rec.Language,
		CreatedAt:      rec.CreatedAt,
		LastActivity:   rec.LastActivity,
		QuestionsCount: rec.QuestionsCount,
		Turns:          make([]Turn, len(turns)),
	}
	for i, t := range turns {
		s.Turns[i] = Turn{Question: t.Question, Answer: t.Answer, Timestamp: t.CreatedAt}
	}
	return s, nil
}

// List returns summaries of the user's sessions, most recently active first.
func (m *Manager) List(ctx context.Context, userID string) ([]Summary, error) {
	recs, err := m.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]Summary, 0, len(recs))
	for _, r := range recs {
		first := "New Chat"
		turns, err := m.repo.Turns(ctx, r.Token)
		if err != nil {
			m.logger.Warn("skipping session with unreadable turns", "token", r.Token, "error", err)
			continue
		}
		if len(turns) > 0 {
			first = turns[0].Question
		}
		out = append(out, Summary{
			Token:          r.Token,
			Stage:          r.Stage,
			Topic:          r.Topic,
			CreatedAt:      r.CreatedAt,
			LastActivity:   r.LastActivity,
			QuestionsCount: r.QuestionsCount,
			FirstQuestion:  first,
		})
	}
	return out, nil
}

// CleanOld removes sessions inactive for longer than maxAge (DefaultMaxAge
// when zero) and returns the number removed.
func (m *Manager) CleanOld(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	n, err := m.repo.DeleteInactiveSince(ctx, m.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("clean sessions: %w", err)
	}
	if n > 0 {
		m.logger.Info("removed inactive sessions", "count", n, "max_age", maxAge)
	}
	return n, nil
}

func (m *Manager) header(ctx context.Context, userID, token string) (*store.SessionRecord, error) {
	rec, err := m.repo.Get(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if rec.UserID != userID {
		return nil, ErrNotFound
	}
	return rec, nil
}
