// Package domain holds the typed event and transcript model shared by the
// decoder, the transcript store, and the session bridge.
package domain

// Event is one decoded protocol message. The set of implementations is
// closed; consumers switch on the concrete type.
type Event interface {
	// EventSessionID returns the external session id the event belongs to,
	// or "" for connection-level events (Connected, Heartbeat).
	EventSessionID() string
}

// TextDelta is an incremental fragment of assistant output.
type TextDelta struct {
	SessionID string `json:"sessionID"`
	Delta     string `json:"delta"`
}

// TextComplete is a finalized assistant text part.
type TextComplete struct {
	SessionID string `json:"sessionID"`
	Text      string `json:"text"`
	Timing    Timing `json:"timing"`
}

// ReasoningDelta is an incremental thinking fragment. It never enters the
// transcript; the bridge keeps only the latest text for display.
type ReasoningDelta struct {
	SessionID string `json:"sessionID"`
	Delta     string `json:"delta"`
}

// ToolRunning reports a tool call that has started but produced no output.
type ToolRunning struct {
	SessionID    string `json:"sessionID"`
	ToolName     string `json:"tool"`
	ToolCallID   string `json:"callID"`
	InputSummary string `json:"input"`
	Todos        []Todo `json:"todos,omitempty"`
}

// ToolCompleted reports a tool call that finished with output.
type ToolCompleted struct {
	SessionID    string `json:"sessionID"`
	ToolName     string `json:"tool"`
	ToolCallID   string `json:"callID"`
	InputSummary string `json:"input"`
	Output       string `json:"output"`
	Todos        []Todo `json:"todos,omitempty"`
}

// ToolError reports a tool call that failed.
type ToolError struct {
	SessionID  string `json:"sessionID"`
	ToolName   string `json:"tool"`
	ToolCallID string `json:"callID"`
	Error      string `json:"error"`
}

// SessionStatus reports the agent-side status of a session.
type SessionStatus struct {
	SessionID string `json:"sessionID"`
	Status    string `json:"status"`
}

// SessionIdle means the session finished its turn.
type SessionIdle struct {
	SessionID string `json:"sessionID"`
}

// SessionError is an agent-reported error terminating the current turn.
type SessionError struct {
	SessionID string `json:"sessionID"`
	Error     string `json:"error"`
}

// QuestionAsked is a request for user input, possibly batching several
// questions under one request id.
type QuestionAsked struct {
	RequestID string     `json:"id"`
	SessionID string     `json:"sessionID"`
	Questions []Question `json:"questions"`
}

// Question is a single prompt within a QuestionAsked batch.
type Question struct {
	Prompt   string           `json:"prompt"`
	Options  []QuestionOption `json:"options,omitempty"`
	Multiple bool             `json:"multiple"`
	// Custom reports whether free-text answers are accepted. The wire
	// default is true when the field is absent.
	Custom bool `json:"custom"`
	// PlanContext is "plan_enter" or "plan_exit" when the prompt references
	// a planning-mode transition, "" otherwise.
	PlanContext  string `json:"planContext,omitempty"`
	PlanFilePath string `json:"planFilePath,omitempty"`
}

// QuestionOption is one selectable answer.
type QuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// PermissionAsked is a request to approve an action.
type PermissionAsked struct {
	RequestID      string            `json:"id"`
	SessionID      string            `json:"sessionID"`
	Permission     string            `json:"permission"`
	Patterns       []string          `json:"patterns"`
	Metadata       map[string]string `json:"metadata"`
	AlwaysPatterns []string          `json:"always"`
}

// UsageUpdated carries token accounting and cost for a session's turn.
type UsageUpdated struct {
	SessionID string     `json:"sessionID"`
	Model     string     `json:"model"`
	Tokens    TokenUsage `json:"tokens"`
	Cost      float64    `json:"cost"`
}

// TokenUsage breaks a turn's token count down by kind. Absent wire fields
// decode as zero.
type TokenUsage struct {
	Input      int `json:"input"`
	Output     int `json:"output"`
	Reasoning  int `json:"reasoning"`
	CacheRead  int `json:"cacheRead"`
	CacheWrite int `json:"cacheWrite"`
}

// AgentChanged is derived when a recognized mode-switch tool completes.
type AgentChanged struct {
	SessionID string `json:"sessionID"`
	AgentName string `json:"agent"`
}

// Connected signals the event stream is established.
type Connected struct{}

// Heartbeat is a periodic liveness signal.
type Heartbeat struct{}

// Timing is a start/end pair in epoch milliseconds. End is zero while the
// part is still streaming.
type Timing struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (e TextDelta) EventSessionID() string       { return e.SessionID }
func (e TextComplete) EventSessionID() string    { return e.SessionID }
func (e ReasoningDelta) EventSessionID() string  { return e.SessionID }
func (e ToolRunning) EventSessionID() string     { return e.SessionID }
func (e ToolCompleted) EventSessionID() string   { return e.SessionID }
func (e ToolError) EventSessionID() string       { return e.SessionID }
func (e SessionStatus) EventSessionID() string   { return e.SessionID }
func (e SessionIdle) EventSessionID() string     { return e.SessionID }
func (e SessionError) EventSessionID() string    { return e.SessionID }
func (e QuestionAsked) EventSessionID() string   { return e.SessionID }
func (e PermissionAsked) EventSessionID() string { return e.SessionID }
func (e UsageUpdated) EventSessionID() string    { return e.SessionID }
func (e AgentChanged) EventSessionID() string    { return e.SessionID }
func (e Connected) EventSessionID() string       { return "" }
func (e Heartbeat) EventSessionID() string       { return "" }
