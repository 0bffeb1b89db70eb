// Package codec decodes raw agent-server envelopes into domain events.
// Decoding is pure and stateless; anything malformed or unrecognized
// decodes to no event.
package codec

import "encoding/json"

// Envelope discriminators understood by Decode. Unknown types are ignored.
const (
	typeMessagePartUpdated = "message.part.updated"
	typeMessageUpdated     = "message.updated"
	typeSessionStatus      = "session.status"
	typeSessionError       = "session.error"
	typeQuestionAsked      = "question.asked"
	typePermissionAsked    = "permission.asked"
	typeServerConnected    = "server.connected"
	typeServerHeartbeat    = "server.heartbeat"
)

// Part types within a message.part.updated envelope.
const (
	partTypeText      = "text"
	partTypeTool      = "tool"
	partTypeReasoning = "reasoning"
)

// Tool state discriminators.
const (
	toolStatusCompleted = "completed"
	toolStatusError     = "error"
)

// Reserved tool names whose completion represents a planning-mode switch.
const (
	toolPlanEnter = "plan_enter"
	toolPlanExit  = "plan_exit"
)

// Wire defaults for fields that may be absent.
const (
	defaultQuestionCustom = true
)

// todoToolName is the tool whose input carries the session task list.
const todoToolName = "todowrite"

type wireEnvelope struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

type wireScoped struct {
	Directory string          `json:"directory"`
	Payload   json.RawMessage `json:"payload"`
}

type wirePartProps struct {
	Part *wirePart `json:"part"`
}

type wirePart struct {
	ID        string         `json:"id"`
	MessageID string         `json:"messageID"`
	SessionID string         `json:"sessionID"`
	Type      string         `json:"type"`
	Text      string         `json:"text"`
	Delta     string         `json:"delta"`
	Tool      string         `json:"tool"`
	CallID    string         `json:"callID"`
	State     *wireToolState `json:"state"`
	Time      *wireTime      `json:"time"`
}

type wireToolState struct {
	Status string         `json:"status"`
	Input  map[string]any `json:"input"`
	Output string         `json:"output"`
	Error  string         `json:"error"`
	Title  string         `json:"title"`
}

type wireTime struct {
	Start int64  `json:"start"`
	End   *int64 `json:"end"`
}

type wireSessionStatusProps struct {
	SessionID string `json:"sessionID"`
	Status    struct {
		Type string `json:"type"`
	} `json:"status"`
}

type wireSessionErrorProps struct {
	SessionID string `json:"sessionID"`
	Error     string `json:"error"`
}

type wireQuestionProps struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionID"`
	Questions []wireQuestion `json:"questions"`
}

type wireQuestion struct {
	Prompt   string               `json:"prompt"`
	Options  []wireQuestionOption `json:"options"`
	Multiple bool                 `json:"multiple"`
	Custom   *bool                `json:"custom"`
}

type wireQuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

type wirePermissionProps struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"sessionID"`
	Permission string            `json:"permission"`
	Patterns   []string          `json:"patterns"`
	Metadata   map[string]string `json:"metadata"`
	Always     []string          `json:"always"`
}

type wireMessageUpdatedProps struct {
	Info *wireMessageInfo `json:"info"`
}

type wireMessageInfo struct {
	SessionID string          `json:"sessionID"`
	ModelID   string          `json:"modelID"`
	Cost      float64         `json:"cost"`
	Tokens    *wireTokenUsage `json:"tokens"`
}

type wireTokenUsage struct {
	Input     int `json:"input"`
	Output    int `json:"output"`
	Reasoning int `json:"reasoning"`
	Cache     struct {
		Read  int `json:"read"`
		Write int `json:"write"`
	} `json:"cache"`
}
