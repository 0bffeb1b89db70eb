package codec

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agentdeck/agentdeck/internal/domain"
)

// Scoped is an event together with the working directory the transport
// associated it with, when multiple directories share one stream.
type Scoped struct {
	Directory string
	Event     domain.Event
}

// Decode translates one raw envelope into a domain event. The second
// return is false when the envelope is malformed, unknown, or carries
// nothing actionable; the stream should be treated as uninterrupted.
func Decode(raw []byte) (domain.Event, bool) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	return decodeEnvelope(env)
}

// DecodeScoped accepts an outer {directory, payload} wrapper around any
// envelope Decode understands. Absence of the directory is valid.
func DecodeScoped(raw []byte) (Scoped, bool) {
	var outer wireScoped
	if err := json.Unmarshal(raw, &outer); err != nil {
		return Scoped{}, false
	}
	if len(outer.Payload) == 0 {
		return Scoped{}, false
	}
	event, ok := Decode(outer.Payload)
	if !ok {
		return Scoped{}, false
	}
	return Scoped{Directory: outer.Directory, Event: event}, true
}

func decodeEnvelope(env wireEnvelope) (domain.Event, bool) {
	switch env.Type {
	case typeMessagePartUpdated:
		return decodePart(env.Properties)
	case typeMessageUpdated:
		return decodeMessageUpdated(env.Properties)
	case typeSessionStatus:
		return decodeSessionStatus(env.Properties)
	case typeSessionError:
		return decodeSessionError(env.Properties)
	case typeQuestionAsked:
		return decodeQuestion(env.Properties)
	case typePermissionAsked:
		return decodePermission(env.Properties)
	case typeServerConnected:
		return domain.Connected{}, true
	case typeServerHeartbeat:
		return domain.Heartbeat{}, true
	default:
		return nil, false
	}
}

func decodePart(raw json.RawMessage) (domain.Event, bool) {
	var props wirePartProps
	if err := json.Unmarshal(raw, &props); err != nil || props.Part == nil {
		return nil, false
	}
	part := props.Part

	switch part.Type {
	case partTypeText:
		if part.Delta != "" {
			return domain.TextDelta{SessionID: part.SessionID, Delta: part.Delta}, true
		}
		if part.Text != "" && part.Time != nil && part.Time.End != nil {
			return domain.TextComplete{
				SessionID: part.SessionID,
				Text:      part.Text,
				Timing:    domain.Timing{Start: part.Time.Start, End: *part.Time.End},
			}, true
		}
		return nil, false

	case partTypeReasoning:
		if part.Delta == "" {
			return nil, false
		}
		return domain.ReasoningDelta{SessionID: part.SessionID, Delta: part.Delta}, true

	case partTypeTool:
		return decodeToolPart(part)

	default:
		return nil, false
	}
}

func decodeToolPart(part *wirePart) (domain.Event, bool) {
	state := part.State
	if state == nil {
		return nil, false
	}

	if state.Error != "" || state.Status == toolStatusError {
		errText := state.Error
		if errText == "" {
			errText = state.Output
		}
		return domain.ToolError{
			SessionID:  part.SessionID,
			ToolName:   part.Tool,
			ToolCallID: part.CallID,
			Error:      errText,
		}, true
	}

	completed := state.Status == toolStatusCompleted || state.Output != ""
	if completed {
		// Planning-mode switches surface as an agent change, not a tool
		// result.
		switch part.Tool {
		case toolPlanExit:
			return domain.AgentChanged{SessionID: part.SessionID, AgentName: "build"}, true
		case toolPlanEnter:
			return domain.AgentChanged{SessionID: part.SessionID, AgentName: "plan"}, true
		}
		return domain.ToolCompleted{
			SessionID:    part.SessionID,
			ToolName:     part.Tool,
			ToolCallID:   part.CallID,
			InputSummary: summarizeInput(state.Input),
			Output:       state.Output,
			Todos:        decodeTodos(part.Tool, state.Input),
		}, true
	}

	return domain.ToolRunning{
		SessionID:    part.SessionID,
		ToolName:     part.Tool,
		ToolCallID:   part.CallID,
		InputSummary: summarizeInput(state.Input),
		Todos:        decodeTodos(part.Tool, state.Input),
	}, true
}

func decodeMessageUpdated(raw json.RawMessage) (domain.Event, bool) {
	var props wireMessageUpdatedProps
	if err := json.Unmarshal(raw, &props); err != nil || props.Info == nil {
		return nil, false
	}
	info := props.Info
	if info.SessionID == "" {
		return nil, false
	}

	var tokens domain.TokenUsage
	if info.Tokens != nil {
		tokens = domain.TokenUsage{
			Input:      info.Tokens.Input,
			Output:     info.Tokens.Output,
			Reasoning:  info.Tokens.Reasoning,
			CacheRead:  info.Tokens.Cache.Read,
			CacheWrite: info.Tokens.Cache.Write,
		}
	}
	return domain.UsageUpdated{
		SessionID: info.SessionID,
		Model:     info.ModelID,
		Tokens:    tokens,
		Cost:      info.Cost,
	}, true
}

func decodeSessionStatus(raw json.RawMessage) (domain.Event, bool) {
	var props wireSessionStatusProps
	if err := json.Unmarshal(raw, &props); err != nil || props.SessionID == "" {
		return nil, false
	}
	if props.Status.Type == "idle" {
		return domain.SessionIdle{SessionID: props.SessionID}, true
	}
	return domain.SessionStatus{SessionID: props.SessionID, Status: props.Status.Type}, true
}

func decodeSessionError(raw json.RawMessage) (domain.Event, bool) {
	var props wireSessionErrorProps
	if err := json.Unmarshal(raw, &props); err != nil || props.SessionID == "" {
		return nil, false
	}
	return domain.SessionError{SessionID: props.SessionID, Error: props.Error}, true
}

func decodeQuestion(raw json.RawMessage) (domain.Event, bool) {
	var props wireQuestionProps
	if err := json.Unmarshal(raw, &props); err != nil || props.ID == "" {
		return nil, false
	}
	questions := make([]domain.Question, 0, len(props.Questions))
	for _, q := range props.Questions {
		custom := defaultQuestionCustom
		if q.Custom != nil {
			custom = *q.Custom
		}
		options := make([]domain.QuestionOption, 0, len(q.Options))
		for _, opt := range q.Options {
			options = append(options, domain.QuestionOption{
				Label:       opt.Label,
				Description: opt.Description,
			})
		}
		question := domain.Question{
			Prompt:   q.Prompt,
			Options:  options,
			Multiple: q.Multiple,
			Custom:   custom,
		}
		question.PlanContext, question.PlanFilePath = inferPlanContext(q.Prompt)
		questions = append(questions, question)
	}
	return domain.QuestionAsked{
		RequestID: props.ID,
		SessionID: props.SessionID,
		Questions: questions,
	}, true
}

func decodePermission(raw json.RawMessage) (domain.Event, bool) {
	var props wirePermissionProps
	if err := json.Unmarshal(raw, &props); err != nil || props.ID == "" {
		return nil, false
	}
	if props.Patterns == nil {
		props.Patterns = []string{}
	}
	if props.Metadata == nil {
		props.Metadata = map[string]string{}
	}
	if props.Always == nil {
		props.Always = []string{}
	}
	return domain.PermissionAsked{
		RequestID:      props.ID,
		SessionID:      props.SessionID,
		Permission:     props.Permission,
		Patterns:       props.Patterns,
		Metadata:       props.Metadata,
		AlwaysPatterns: props.Always,
	}, true
}

var (
	planEnterPattern = regexp.MustCompile(`(?i)\benter(?:ing)?\s+plan(?:ning)?\s+mode\b`)
	planExitPattern  = regexp.MustCompile(`(?i)\bexit(?:ing)?\s+plan(?:ning)?\s+mode\b`)
	planFilePattern  = regexp.MustCompile(`(?i)[^\s"'` + "`" + `]*plan\.md\b`)
)

// inferPlanContext tags questions that reference a planning-mode transition
// and pulls the referenced plan file path out of the prompt text.
func inferPlanContext(prompt string) (context, planFile string) {
	switch {
	case planExitPattern.MatchString(prompt):
		context = "plan_exit"
	case planEnterPattern.MatchString(prompt):
		context = "plan_enter"
	default:
		return "", ""
	}
	return context, planFilePattern.FindString(prompt)
}

// summaryKeys are tool-input fields preferred for the one-line display
// summary, in priority order.
var summaryKeys = []string{"command", "description", "filePath", "file_path", "path", "pattern", "url", "query"}

// summarizeInput reduces a tool's input map to a short display string.
func summarizeInput(input map[string]any) string {
	if len(input) == 0 {
		return ""
	}
	for _, key := range summaryKeys {
		if value, ok := input[key]; ok {
			if s, ok := value.(string); ok && s != "" {
				return s
			}
		}
	}
	// Fall back to a deterministic key=value join.
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, input[k]))
	}
	return strings.Join(parts, " ")
}

// decodeTodos extracts the task list from the todo tool's input. Other
// tools never carry one.
func decodeTodos(tool string, input map[string]any) []domain.Todo {
	if tool != todoToolName || input == nil {
		return nil
	}
	rawList, ok := input["todos"].([]any)
	if !ok {
		return nil
	}
	todos := make([]domain.Todo, 0, len(rawList))
	for _, item := range rawList {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		todo := domain.Todo{}
		if content, ok := entry["content"].(string); ok {
			todo.Content = content
		}
		if status, ok := entry["status"].(string); ok {
			todo.Status = domain.TodoStatus(status)
		}
		todos = append(todos, todo)
	}
	if len(todos) == 0 {
		return nil
	}
	return todos
}
