// Package transcript folds an ordered stream of domain events into a
// conversation transcript. The fold is order-sensitive: merge chains and
// deduplication depend on events arriving in stream order, so each Store
// must be fed by a single writer.
package transcript

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/domain"
)

// DeclinedAnswer is recorded when a question is resolved with an empty
// response.
const DeclinedAnswer = "User declined to answer."

// completionPhrases are the recognized finish texts that deduplicate: once
// one is present as a system entry, later ones are dropped. Matched
// case-insensitively; "task completed" also matches with an appended
// exit-code clause.
var completionPhrases = []string{
	"completed",
	"session idle",
	"task completed",
}

// Store holds one session's transcript. Entries are strictly
// insertion-ordered; they are appended or mutated in place, never
// reordered or removed.
type Store struct {
	mu      sync.Mutex
	entries []*domain.TranscriptEntry
}

// NewStore returns an empty transcript.
func NewStore() *Store {
	return &Store{}
}

// Insert folds one domain event into the transcript. Events that carry
// nothing renderable (reasoning, liveness, empty assistant text, status and
// usage updates) are ignored here; their side effects belong to the bridge.
func (s *Store) Insert(event domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := event.(type) {
	case domain.TextDelta:
		s.appendAssistantText(e.Delta)
	case domain.TextComplete:
		s.appendAssistantText(e.Text)
	case domain.ToolRunning:
		s.mergeTool(e.ToolCallID, e.ToolName, e.InputSummary, "", domain.StatusRunning)
	case domain.ToolCompleted:
		s.mergeTool(e.ToolCallID, e.ToolName, e.InputSummary, e.Output, domain.StatusCompleted)
	case domain.ToolError:
		s.mergeTool(e.ToolCallID, e.ToolName, "", e.Error, domain.StatusFailed)
	case domain.QuestionAsked:
		s.appendRequest("question", e.RequestID, questionContent(e.Questions))
	case domain.PermissionAsked:
		s.appendRequest("permission", e.RequestID, permissionContent(e))
	}
}

// AppendUser appends a user entry. Empty text is dropped.
func (s *Store) AppendUser(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(&domain.TranscriptEntry{
		Kind:    domain.EntryUser,
		Content: text,
		Status:  domain.StatusCompleted,
	})
}

// AppendSystem appends a system entry. Completion texts deduplicate: if a
// system entry already holds a recognized completion phrase, the new one is
// dropped (first one wins). Non-completion text, such as errors, is never
// deduplicated.
func (s *Store) AppendSystem(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if isCompletionText(text) {
		for _, entry := range s.entries {
			if entry.Kind == domain.EntrySystem && isCompletionText(entry.Content) {
				return
			}
		}
	}
	s.append(&domain.TranscriptEntry{
		Kind:    domain.EntrySystem,
		Content: text,
		Status:  domain.StatusCompleted,
	})
}

// UpdateEntryResponse resolves the entry with the given id: its tool output
// becomes the response (or DeclinedAnswer when empty) and its status
// completed, leaving every other field untouched. Unknown ids are a no-op.
func (s *Store) UpdateEntryResponse(id, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if entry.ID != id {
			continue
		}
		if response == "" {
			response = DeclinedAnswer
		}
		entry.ToolOutput = response
		entry.Status = domain.StatusCompleted
		return
	}
}

// FinalizeRunning forces every running entry to completed so nothing is
// left perpetually in flight when the stream ends or the session is
// interrupted. Completed and failed entries are untouched.
func (s *Store) FinalizeRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if entry.Status == domain.StatusRunning || entry.Status == domain.StatusPending {
			entry.Status = domain.StatusCompleted
		}
	}
}

// Entries returns a snapshot copy of the transcript in insertion order.
func (s *Store) Entries() []domain.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.TranscriptEntry, len(s.entries))
	for i, entry := range s.entries {
		out[i] = *entry
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// appendAssistantText merges consecutive assistant text into the last entry
// when nothing of a different kind has been appended since; any intervening
// entry breaks the chain and a fresh entry starts.
func (s *Store) appendAssistantText(text string) {
	if text == "" {
		return
	}
	if last := s.last(); last != nil && last.Kind == domain.EntryAssistant {
		last.Content += text
		return
	}
	s.append(&domain.TranscriptEntry{
		Kind:    domain.EntryAssistant,
		Content: text,
		Status:  domain.StatusCompleted,
	})
}

// mergeTool correlates a tool event into the transcript. Correlation is by
// call id when present; a result event with no id folds into the most
// recent still-running tool entry. Anything uncorrelated appends as a new
// entry rather than raising a fault.
func (s *Store) mergeTool(callID, name, input, output string, status domain.EntryStatus) {
	if target := s.findToolTarget(callID); target != nil {
		if name != "" {
			target.ToolName = name
		}
		if input != "" {
			target.ToolInput = input
		}
		if output != "" {
			target.ToolOutput = output
		}
		if status == domain.StatusCompleted || status == domain.StatusFailed {
			target.Status = status
		}
		return
	}

	s.append(&domain.TranscriptEntry{
		Kind:       domain.EntryTool,
		ToolName:   name,
		ToolInput:  input,
		ToolOutput: output,
		ToolCallID: callID,
		Status:     status,
	})
}

// findToolTarget locates the entry a tool event merges into, or nil when it
// should append instead.
func (s *Store) findToolTarget(callID string) *domain.TranscriptEntry {
	if callID != "" {
		for _, entry := range s.entries {
			if entry.Kind == domain.EntryTool && entry.ToolCallID == callID {
				return entry
			}
		}
		return nil
	}
	// Result events whose generic name carries no id of its own resolve
	// the most recent open tool entry.
	last := s.last()
	if last != nil && last.Kind == domain.EntryTool && last.ToolCallID == "" && last.Status == domain.StatusRunning {
		return last
	}
	return nil
}

// appendRequest appends a pending user-input request (question or
// permission) keyed by its request id for later resolution.
func (s *Store) appendRequest(name, requestID, content string) {
	s.append(&domain.TranscriptEntry{
		Kind:       domain.EntryTool,
		Content:    content,
		ToolName:   name,
		ToolCallID: requestID,
		Status:     domain.StatusRunning,
	})
}

func (s *Store) append(entry *domain.TranscriptEntry) {
	if entry.ID == "" {
		entry.ID = "ent_" + uuid.New().String()
	}
	entry.Position = len(s.entries)
	s.entries = append(s.entries, entry)
}

func (s *Store) last() *domain.TranscriptEntry {
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[len(s.entries)-1]
}

// EntryIDForRequest returns the id of the entry tracking the given request
// id, if any.
func (s *Store) EntryIDForRequest(requestID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if entry.ToolCallID == requestID && entry.Kind == domain.EntryTool {
			return entry.ID, true
		}
	}
	return "", false
}

func isCompletionText(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range completionPhrases {
		if normalized == phrase {
			return true
		}
	}
	return strings.HasPrefix(normalized, "task completed")
}

func questionContent(questions []domain.Question) string {
	prompts := make([]string, 0, len(questions))
	for _, q := range questions {
		prompts = append(prompts, q.Prompt)
	}
	return strings.Join(prompts, "\n")
}

func permissionContent(e domain.PermissionAsked) string {
	if len(e.Patterns) == 0 {
		return e.Permission
	}
	return fmt.Sprintf("%s: %s", e.Permission, strings.Join(e.Patterns, ", "))
}
