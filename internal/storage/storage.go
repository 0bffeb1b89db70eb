// Package storage defines the persisted session boundary: local Session
// records correlated with external agent sessions, and their log entries.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session or log entry does not exist.
var ErrNotFound = errors.New("storage: not found")

// Session is the local record correlated with one external agent session.
type Session struct {
	ID         string    `json:"id" db:"id"`
	Intent     string    `json:"intent" db:"intent"`
	ExternalID string    `json:"externalID" db:"external_id"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// LogEntry is one persisted transcript row belonging to a session.
type LogEntry struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"sessionID" db:"session_id"`
	Kind      string    `json:"kind" db:"kind"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// SessionStore persists sessions and their log entries.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	GetSessionByExternalID(ctx context.Context, externalID string) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	UpdateSessionStatus(ctx context.Context, id, status string) error
	SetExternalID(ctx context.Context, id, externalID string) error
	AppendLog(ctx context.Context, entry *LogEntry) error
	ListLogs(ctx context.Context, sessionID string) ([]*LogEntry, error)
	Close() error
}
