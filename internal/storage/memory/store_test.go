package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/agentdeck/agentdeck/internal/storage"
)

func TestSessionLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	session := &storage.Session{ID: "local-1", Intent: "fix the build", ExternalID: "ext-1", Status: "idle"}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateSession(ctx, session); err == nil {
		t.Fatal("duplicate create must fail")
	}

	got, err := store.GetSession(ctx, "local-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Intent != "fix the build" || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected session: %#v", got)
	}

	byExternal, err := store.GetSessionByExternalID(ctx, "ext-1")
	if err != nil {
		t.Fatalf("get by external: %v", err)
	}
	if byExternal.ID != "local-1" {
		t.Fatalf("unexpected session: %#v", byExternal)
	}

	if err := store.UpdateSessionStatus(ctx, "local-1", "running"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = store.GetSession(ctx, "local-1")
	if got.Status != "running" {
		t.Fatalf("status not updated: %#v", got)
	}

	if err := store.SetExternalID(ctx, "local-1", "ext-2"); err != nil {
		t.Fatalf("set external id: %v", err)
	}
	if _, err := store.GetSessionByExternalID(ctx, "ext-2"); err != nil {
		t.Fatalf("get by new external id: %v", err)
	}
}

func TestNotFound(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateSessionStatus(ctx, "missing", "running"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.AppendLog(ctx, &storage.LogEntry{ID: "l1", SessionID: "missing"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLogs(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.CreateSession(ctx, &storage.Session{ID: "local-1", Status: "idle"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i, content := range []string{"first", "second"} {
		entry := &storage.LogEntry{ID: string(rune('a' + i)), SessionID: "local-1", Kind: "user", Content: content}
		if err := store.AppendLog(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	logs, err := store.ListLogs(ctx, "local-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 2 || logs[0].Content != "first" || logs[1].Content != "second" {
		t.Fatalf("unexpected logs: %#v", logs)
	}
}

func TestListSessionsOrdered(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.CreateSession(ctx, &storage.Session{ID: id, Status: "idle"}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
}
