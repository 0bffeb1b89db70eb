// Package bridge owns session correlation and lifecycle: it routes decoded
// domain events into the right session's transcript, drives the
// idle/running/completed/failed/interrupted state machine, and carries the
// outbound boundary to the external agent server.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/opencode"
	"github.com/agentdeck/agentdeck/internal/storage"
	"github.com/agentdeck/agentdeck/internal/transcript"
)

// persistTimeout bounds best-effort persistence so a slow store never
// stalls the event path.
const persistTimeout = 5 * time.Second

// Transport is the outbound boundary to the agent server. *opencode.Client
// satisfies it.
type Transport interface {
	Prompt(ctx context.Context, sessionID string, req *opencode.PromptRequest) error
	Abort(ctx context.Context, sessionID string) error
	ReplyQuestion(ctx context.Context, requestID string, answers [][]string) error
	RejectQuestion(ctx context.Context, requestID string) error
	ReplyPermission(ctx context.Context, requestID string, reply opencode.PermissionReply) error
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTransport sets the agent-server transport. Without one, Submit
// synthesizes a configuration error instead of attempting I/O.
func WithTransport(t Transport) Option {
	return func(b *Bridge) { b.transport = t }
}

// WithStore sets the session persistence collaborator.
func WithStore(store storage.SessionStore) Option {
	return func(b *Bridge) { b.store = store }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithModel pins a default model for submitted prompts.
func WithModel(providerID, modelID string) Option {
	return func(b *Bridge) {
		b.model = &opencode.ModelRef{ProviderID: providerID, ModelID: modelID}
	}
}

// Bridge tracks all sessions seen on one event stream. All state is
// guarded by a single mutex; events for one session must be handled in
// stream order for the transcript fold to be correct.
type Bridge struct {
	mu        sync.Mutex
	transport Transport
	store     storage.SessionStore
	logger    *slog.Logger
	model     *opencode.ModelRef

	sessions      map[string]*session
	activeID      string
	lastHeartbeat time.Time
	connected     bool
}

// session is the bridge's per-session correlation state.
type session struct {
	externalID string
	local      *storage.Session
	status     domain.SessionLifecycle
	transcript *transcript.Store

	toolName     string
	toolInput    string
	reasoning    string
	lastError    string
	agent        string
	model        string
	usage        domain.TokenUsage
	cost         float64
	todoProgress string
}

// New creates a Bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		logger:   slog.Default(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetActiveSession registers the correlation between an external session id
// and a local persisted session and makes it the submission target.
func (b *Bridge) SetActiveSession(externalID string, local *storage.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.session(externalID)
	state.local = local
	b.activeID = externalID
}

// CurrentSessionID returns the active external session id, if any.
func (b *Bridge) CurrentSessionID() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeID, b.activeID != ""
}

// Submit initiates a turn on the active session. Without a configured
// transport no I/O is attempted: a configuration error lands in the
// transcript and the status is left unchanged. Submitting is the only way
// out of the interrupted state.
func (b *Bridge) Submit(ctx context.Context, text, cwd string) error {
	b.mu.Lock()
	activeID := b.activeID
	b.mu.Unlock()
	if activeID == "" {
		return fmt.Errorf("bridge: no active session")
	}
	return b.SubmitTo(ctx, activeID, text, cwd)
}

// SubmitTo initiates a turn on a specific session.
func (b *Bridge) SubmitTo(ctx context.Context, externalID, text, cwd string) error {
	b.mu.Lock()
	state := b.session(externalID)

	if b.transport == nil {
		state.transcript.AppendSystem("Error: agent endpoint is not configured")
		b.mu.Unlock()
		return fmt.Errorf("bridge: transport not configured")
	}

	state.transcript.AppendUser(text)
	state.status = domain.SessionRunning
	state.lastError = ""
	b.persistStatus(state)
	b.persistLog(state, string(domain.EntryUser), text)
	b.mu.Unlock()

	req := &opencode.PromptRequest{
		Parts: []opencode.PromptPart{{Type: "text", Text: text}},
		Model: b.model,
	}
	if err := b.transport.Prompt(ctx, externalID, req); err != nil {
		b.mu.Lock()
		state.status = domain.SessionFailed
		state.lastError = err.Error()
		state.transcript.AppendSystem("Error: " + err.Error())
		b.persistStatus(state)
		b.mu.Unlock()
		return fmt.Errorf("submit prompt: %w", err)
	}

	b.logger.Debug("prompt submitted",
		slog.String("session_id", externalID),
		slog.String("cwd", cwd),
	)
	return nil
}

// Handle routes one decoded event. Events for a session in interrupted
// status are dropped before touching any state; that guard, not transport
// teardown, is what makes cancellation safe against late events.
func (b *Bridge) Handle(event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch event.(type) {
	case domain.Connected:
		b.connected = true
		b.lastHeartbeat = time.Now()
		return
	case domain.Heartbeat:
		b.lastHeartbeat = time.Now()
		return
	}

	externalID := event.EventSessionID()
	if externalID == "" {
		return
	}
	state := b.session(externalID)

	if state.status == domain.SessionInterrupted {
		b.logger.Debug("dropping event for interrupted session",
			slog.String("session_id", externalID),
		)
		return
	}

	switch e := event.(type) {
	case domain.TextDelta:
		state.transcript.Insert(e)

	case domain.TextComplete:
		state.transcript.Insert(e)
		b.persistLog(state, string(domain.EntryAssistant), e.Text)

	case domain.ReasoningDelta:
		state.reasoning = e.Delta

	case domain.ToolRunning:
		state.toolName = e.ToolName
		state.toolInput = e.InputSummary
		if len(e.Todos) > 0 {
			state.todoProgress = transcript.Progress(e.Todos)
		}
		state.transcript.Insert(e)

	case domain.ToolCompleted:
		state.toolName = e.ToolName
		state.toolInput = e.InputSummary
		if len(e.Todos) > 0 {
			state.todoProgress = transcript.Progress(e.Todos)
		}
		state.transcript.Insert(e)

	case domain.ToolError:
		state.transcript.Insert(e)

	case domain.QuestionAsked:
		state.transcript.Insert(e)

	case domain.PermissionAsked:
		state.transcript.Insert(e)

	case domain.SessionIdle:
		// A finish for a turn already closed is a secondary finish and is
		// dropped outright.
		if state.status != domain.SessionRunning {
			return
		}
		state.status = domain.SessionCompleted
		state.reasoning = ""
		state.toolName = ""
		state.toolInput = ""
		state.transcript.AppendSystem("Session idle")
		b.persistStatus(state)
		b.persistLog(state, string(domain.EntrySystem), "Session idle")

	case domain.SessionError:
		state.status = domain.SessionFailed
		state.lastError = e.Error
		state.reasoning = ""
		state.toolName = ""
		state.toolInput = ""
		state.transcript.AppendSystem("Error: " + e.Error)
		b.persistStatus(state)
		b.persistLog(state, string(domain.EntrySystem), "Error: "+e.Error)

	case domain.SessionStatus:
		// Agent-initiated turns become visible here; interrupted sessions
		// were already filtered above and only Submit revives them.
		if e.Status == "busy" && state.status == domain.SessionIdleState {
			state.status = domain.SessionRunning
			b.persistStatus(state)
		}

	case domain.UsageUpdated:
		state.model = e.Model
		state.usage = e.Tokens
		state.cost = e.Cost

	case domain.AgentChanged:
		state.agent = e.AgentName
	}
}

// Interrupt cancels a session's current turn: signal the server, finalize
// every running transcript entry, and start dropping inbound events until
// the next Submit.
func (b *Bridge) Interrupt(ctx context.Context, externalID string) {
	b.mu.Lock()
	state, ok := b.sessions[externalID]
	if !ok || state.status == domain.SessionInterrupted {
		b.mu.Unlock()
		return
	}
	state.status = domain.SessionInterrupted
	state.reasoning = ""
	state.toolName = ""
	state.toolInput = ""
	state.transcript.FinalizeRunning()
	b.persistStatus(state)
	transport := b.transport
	b.mu.Unlock()

	if transport != nil {
		if err := transport.Abort(ctx, externalID); err != nil {
			b.logger.Warn("abort signal failed",
				slog.String("session_id", externalID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// AnswerQuestion replies to a question request and records the response on
// the transcript entry tracking it.
func (b *Bridge) AnswerQuestion(ctx context.Context, externalID, requestID string, answers [][]string, response string) error {
	if b.transport == nil {
		return fmt.Errorf("bridge: transport not configured")
	}
	if err := b.transport.ReplyQuestion(ctx, requestID, answers); err != nil {
		return fmt.Errorf("reply question: %w", err)
	}
	b.resolveRequest(externalID, requestID, response)
	return nil
}

// RejectQuestion declines a question request; the tracking entry records
// the declined answer.
func (b *Bridge) RejectQuestion(ctx context.Context, externalID, requestID string) error {
	if b.transport == nil {
		return fmt.Errorf("bridge: transport not configured")
	}
	if err := b.transport.RejectQuestion(ctx, requestID); err != nil {
		return fmt.Errorf("reject question: %w", err)
	}
	b.resolveRequest(externalID, requestID, "")
	return nil
}

// ResolvePermission replies to a permission request with once, always, or
// reject.
func (b *Bridge) ResolvePermission(ctx context.Context, externalID, requestID string, reply opencode.PermissionReply) error {
	if b.transport == nil {
		return fmt.Errorf("bridge: transport not configured")
	}
	if err := b.transport.ReplyPermission(ctx, requestID, reply); err != nil {
		return fmt.Errorf("reply permission: %w", err)
	}
	response := reply.Reply
	if reply.Message != "" {
		response += ": " + reply.Message
	}
	b.resolveRequest(externalID, requestID, response)
	return nil
}

func (b *Bridge) resolveRequest(externalID, requestID, response string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.sessions[externalID]
	if !ok {
		return
	}
	entryID, ok := state.transcript.EntryIDForRequest(requestID)
	if !ok {
		return
	}
	state.transcript.UpdateEntryResponse(entryID, response)
}

// Transcript returns a snapshot of the session's transcript.
func (b *Bridge) Transcript(externalID string) []domain.TranscriptEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.sessions[externalID]
	if !ok {
		return nil
	}
	return state.transcript.Entries()
}

// Status returns the session's lifecycle status.
func (b *Bridge) Status(externalID string) (domain.SessionLifecycle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.sessions[externalID]
	if !ok {
		return "", false
	}
	return state.status, true
}

// SessionView is a read-only snapshot for observers.
type SessionView struct {
	ExternalID   string                  `json:"externalID"`
	LocalID      string                  `json:"localID,omitempty"`
	Status       domain.SessionLifecycle `json:"status"`
	Reasoning    string                  `json:"reasoning,omitempty"`
	ToolName     string                  `json:"toolName,omitempty"`
	ToolInput    string                  `json:"toolInput,omitempty"`
	LastError    string                  `json:"lastError,omitempty"`
	Agent        string                  `json:"agent,omitempty"`
	Model        string                  `json:"model,omitempty"`
	Usage        domain.TokenUsage       `json:"usage"`
	Cost         float64                 `json:"cost"`
	TodoProgress string                  `json:"todoProgress,omitempty"`
}

// View returns an observer snapshot for the session.
func (b *Bridge) View(externalID string) (SessionView, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.sessions[externalID]
	if !ok {
		return SessionView{}, false
	}
	return b.viewLocked(state), true
}

// Views returns observer snapshots for every tracked session.
func (b *Bridge) Views() []SessionView {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]SessionView, 0, len(b.sessions))
	for _, state := range b.sessions {
		out = append(out, b.viewLocked(state))
	}
	return out
}

// LastHeartbeat reports stream liveness.
func (b *Bridge) LastHeartbeat() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastHeartbeat, b.connected
}

func (b *Bridge) viewLocked(state *session) SessionView {
	view := SessionView{
		ExternalID:   state.externalID,
		Status:       state.status,
		Reasoning:    state.reasoning,
		ToolName:     state.toolName,
		ToolInput:    state.toolInput,
		LastError:    state.lastError,
		Agent:        state.agent,
		Model:        state.model,
		Usage:        state.usage,
		Cost:         state.cost,
		TodoProgress: state.todoProgress,
	}
	if state.local != nil {
		view.LocalID = state.local.ID
	}
	return view
}

// session returns the tracked state for an external id, starting to track
// it if unseen. Unknown sessions are tracked rather than rejected, matching
// the correlation-miss policy of favoring transcript availability.
func (b *Bridge) session(externalID string) *session {
	if state, ok := b.sessions[externalID]; ok {
		return state
	}
	state := &session{
		externalID: externalID,
		status:     domain.SessionIdleState,
		transcript: transcript.NewStore(),
	}
	b.sessions[externalID] = state
	return state
}

// persistStatus mirrors a lifecycle transition to the session store.
// Persistence is best-effort and decoupled from the event path.
func (b *Bridge) persistStatus(state *session) {
	if b.store == nil || state.local == nil {
		return
	}
	localID := state.local.ID
	status := string(state.status)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := b.store.UpdateSessionStatus(ctx, localID, status); err != nil {
			b.logger.Error("failed to persist session status",
				slog.String("session_id", localID),
				slog.String("status", status),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// persistLog mirrors a transcript row to the session store, best-effort.
func (b *Bridge) persistLog(state *session, kind, content string) {
	if b.store == nil || state.local == nil || content == "" {
		return
	}
	entry := &storage.LogEntry{
		ID:        "log_" + uuid.New().String(),
		SessionID: state.local.ID,
		Kind:      kind,
		Content:   content,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := b.store.AppendLog(ctx, entry); err != nil {
			b.logger.Error("failed to persist log entry",
				slog.String("session_id", entry.SessionID),
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
		}
	}()
}
