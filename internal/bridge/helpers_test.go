package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/agentdeck/agentdeck/internal/storage"
)

// waitForStatus polls the store until the session reaches the expected
// status; persistence is asynchronous by design.
func waitForStatus(t *testing.T, store storage.SessionStore, id, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		session, err := store.GetSession(context.Background(), id)
		if err == nil && session.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	session, err := store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	t.Fatalf("status never became %q, still %q", want, session.Status)
}
