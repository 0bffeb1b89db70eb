// Package memory is an in-memory SessionStore used in tests and when
// persistence is disabled.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentdeck/agentdeck/internal/storage"
)

// Store is an in-memory implementation of storage.SessionStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*storage.Session
	logs     map[string][]*storage.LogEntry
}

var _ storage.SessionStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		sessions: make(map[string]*storage.Session),
		logs:     make(map[string][]*storage.LogEntry),
	}
}

func (s *Store) CreateSession(ctx context.Context, session *storage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}

	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *Store) GetSessionByExternalID(ctx context.Context, externalID string) (*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.ExternalID == externalID {
			copied := *session
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListSessions(ctx context.Context) ([]*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		copied := *session
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateSessionStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists {
		return storage.ErrNotFound
	}
	session.Status = status
	session.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetExternalID(ctx context.Context, id, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists {
		return storage.ErrNotFound
	}
	session.ExternalID = externalID
	session.UpdatedAt = time.Now()
	return nil
}

func (s *Store) AppendLog(ctx context.Context, entry *storage.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[entry.SessionID]; !exists {
		return storage.ErrNotFound
	}
	entry.CreatedAt = time.Now()
	copied := *entry
	s.logs[entry.SessionID] = append(s.logs[entry.SessionID], &copied)
	return nil
}

func (s *Store) ListLogs(ctx context.Context, sessionID string) ([]*storage.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.logs[sessionID]
	out := make([]*storage.LogEntry, 0, len(entries))
	for _, entry := range entries {
		copied := *entry
		out = append(out, &copied)
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
