package domain

// SessionLifecycle is the bridge-tracked status of a session. Exactly one
// value is current per tracked session.
type SessionLifecycle string

const (
	SessionIdleState   SessionLifecycle = "idle"
	SessionRunning     SessionLifecycle = "running"
	SessionCompleted   SessionLifecycle = "completed"
	SessionFailed      SessionLifecycle = "failed"
	SessionInterrupted SessionLifecycle = "interrupted"
)

// Terminal reports whether the session's current turn is closed. Terminal
// sessions may still receive late in-flight events; interrupted sessions
// may not.
func (s SessionLifecycle) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}
