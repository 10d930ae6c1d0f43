package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Table names.
const (
	tableLearnerState = "learner_state"
	tableSessions     = "sessions"
	tableSessionTurns = "session_turns"
	tableCache        = "kv_cache"
	tableEmbeddings   = "embedding_cache"
	tableLLMEvents    = "llm_request_events"
	tableAnswerEvents = "answer_events"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS learner_state (
		kind       TEXT    NOT NULL,
		user_id    TEXT    NOT NULL,
		stage      TEXT    NOT NULL,
		level      INTEGER NOT NULL DEFAULT 0,
		data       BLOB    NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (kind, user_id, stage, level)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token           TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		stage           TEXT NOT NULL,
		topic           TEXT NOT NULL DEFAULT '',
		language        TEXT NOT NULL DEFAULT 'ar',
		created_at      DATETIME NOT NULL,
		last_activity   DATETIME NOT NULL,
		questions_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_user_idx ON sessions (user_id, last_activity)`,
	`CREATE TABLE IF NOT EXISTS session_turns (
		token      TEXT    NOT NULL REFERENCES sessions(token) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		question   TEXT    NOT NULL,
		answer     TEXT    NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (token, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS kv_cache (
		namespace  TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      BLOB NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (namespace, key)
	)`,
	`CREATE TABLE IF NOT EXISTS embedding_cache (
		content_hash TEXT PRIMARY KEY,
		model        TEXT    NOT NULL,
		dimension    INTEGER NOT NULL,
		embedding    BLOB    NOT NULL,
		created_at   DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence      INTEGER NOT NULL UNIQUE,
		timestamp     DATETIME NOT NULL,
		provider      TEXT NOT NULL,
		model         TEXT NOT NULL,
		purpose       TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       BOOLEAN NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body  TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS answer_events (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence  INTEGER NOT NULL UNIQUE,
		timestamp DATETIME NOT NULL,
		category  TEXT    NOT NULL,
		user_id   TEXT    NOT NULL,
		stage     TEXT    NOT NULL,
		level     INTEGER NOT NULL DEFAULT 0,
		question  TEXT    NOT NULL,
		answer    TEXT    NOT NULL DEFAULT '',
		correct   BOOLEAN NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS answer_events_user_idx ON answer_events (user_id, stage)`,
}

// migrate creates every table the repositories need. Statements are
// idempotent so it runs on every Open.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
