// Package sqlite is the SQLite implementation of storage.SessionStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/agentdeck/agentdeck/internal/storage"
)

// Store persists sessions and log entries in a SQLite database.
type Store struct {
	db *sqlx.DB
}

var _ storage.SessionStore = (*Store)(nil)

// New opens (creating if needed) the database at path and initializes the
// schema.
func New(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			intent TEXT NOT NULL,
			external_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_external ON sessions(external_id)`,
		`CREATE TABLE IF NOT EXISTS log_entries (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_session ON log_entries(session_id, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, session *storage.Session) error {
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, intent, external_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.Intent, session.ExternalID, session.Status,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	var session storage.Session
	err := s.db.GetContext(ctx, &session,
		`SELECT id, intent, external_id, status, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return &session, nil
}

func (s *Store) GetSessionByExternalID(ctx context.Context, externalID string) (*storage.Session, error) {
	var session storage.Session
	err := s.db.GetContext(ctx, &session,
		`SELECT id, intent, external_id, status, created_at, updated_at
		 FROM sessions WHERE external_id = ? ORDER BY created_at DESC LIMIT 1`, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session by external id: %w", err)
	}
	return &session, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]*storage.Session, error) {
	var sessions []*storage.Session
	err := s.db.SelectContext(ctx, &sessions,
		`SELECT id, intent, external_id, status, created_at, updated_at
		 FROM sessions ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *Store) UpdateSessionStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return requireRow(result)
}

func (s *Store) SetExternalID(ctx context.Context, id, externalID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET external_id = ?, updated_at = ? WHERE id = ?`,
		externalID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set external id: %w", err)
	}
	return requireRow(result)
}

func (s *Store) AppendLog(ctx context.Context, entry *storage.LogEntry) error {
	entry.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_entries (id, session_id, kind, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.SessionID, entry.Kind, entry.Content, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, sessionID string) ([]*storage.LogEntry, error) {
	var entries []*storage.LogEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT id, session_id, kind, content, created_at
		 FROM log_entries WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	return entries, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
