package domain

// EntryKind classifies a transcript entry.
type EntryKind string

const (
	EntryUser      EntryKind = "user"
	EntryAssistant EntryKind = "assistant"
	EntryTool      EntryKind = "tool"
	EntrySystem    EntryKind = "system"
)

// EntryStatus is the lifecycle of a single transcript entry.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusRunning   EntryStatus = "running"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
)

// TranscriptEntry is one row of the conversation. Entries are append-only
// and mutated in place by correlating events; they are never reordered or
// removed.
type TranscriptEntry struct {
	ID         string      `json:"id"`
	Kind       EntryKind   `json:"kind"`
	Content    string      `json:"content"`
	ToolName   string      `json:"toolName,omitempty"`
	ToolInput  string      `json:"toolInput,omitempty"`
	ToolOutput string      `json:"toolOutput,omitempty"`
	ToolCallID string      `json:"toolCallID,omitempty"`
	Status     EntryStatus `json:"status"`
	Position   int         `json:"position"`
}

// Todo is one item of an externally supplied task list.
type Todo struct {
	Content string     `json:"content"`
	Status  TodoStatus `json:"status"`
}

// TodoStatus is the state of a single todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoCancelled  TodoStatus = "cancelled"
)
