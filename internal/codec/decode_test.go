package codec

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/agentdeck/agentdeck/internal/domain"
)

func TestDecodeMalformedAndUnknown(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"type": "message.part.updated"`,
		"empty":             ``,
		"unknown type":      `{"type":"something.else","properties":{}}`,
		"missing type":      `{"properties":{}}`,
		"non-object":        `"hello"`,
		"part missing":      `{"type":"message.part.updated","properties":{}}`,
		"unknown part type": `{"type":"message.part.updated","properties":{"part":{"type":"step-start","sessionID":"s1"}}}`,
	}
	for name, raw := range cases {
		if event, ok := Decode([]byte(raw)); ok {
			t.Errorf("%s: expected no event, got %#v", name, event)
		}
	}
}

func TestDecodeTextDelta(t *testing.T) {
	raw := `{"type":"message.part.updated","properties":{"part":{"type":"text","sessionID":"s1","delta":"Hello "}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	delta, ok := event.(domain.TextDelta)
	if !ok {
		t.Fatalf("expected TextDelta, got %T", event)
	}
	if delta.SessionID != "s1" || delta.Delta != "Hello " {
		t.Fatalf("unexpected event: %#v", delta)
	}
}

func TestDecodeTextComplete(t *testing.T) {
	raw := `{"type":"message.part.updated","properties":{"part":{"type":"text","sessionID":"s1","text":"Hello world","time":{"start":100,"end":250}}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	complete, ok := event.(domain.TextComplete)
	if !ok {
		t.Fatalf("expected TextComplete, got %T", event)
	}
	if complete.Text != "Hello world" {
		t.Fatalf("unexpected text %q", complete.Text)
	}
	if complete.Timing.Start != 100 || complete.Timing.End != 250 {
		t.Fatalf("unexpected timing %+v", complete.Timing)
	}
}

func TestDecodeTextWithoutDeltaOrEndIsNothing(t *testing.T) {
	// A text part still streaming (no delta, no end timestamp) carries
	// nothing actionable.
	cases := []string{
		`{"type":"message.part.updated","properties":{"part":{"type":"text","sessionID":"s1"}}}`,
		`{"type":"message.part.updated","properties":{"part":{"type":"text","sessionID":"s1","text":"partial","time":{"start":100}}}}`,
	}
	for _, raw := range cases {
		if event, ok := Decode([]byte(raw)); ok {
			t.Errorf("expected no event, got %#v", event)
		}
	}
}

func TestDecodeReasoning(t *testing.T) {
	raw := `{"type":"message.part.updated","properties":{"part":{"type":"reasoning","sessionID":"s1","delta":"thinking..."}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	reasoning, ok := event.(domain.ReasoningDelta)
	if !ok {
		t.Fatalf("expected ReasoningDelta, got %T", event)
	}
	if reasoning.Delta != "thinking..." {
		t.Fatalf("unexpected delta %q", reasoning.Delta)
	}

	noDelta := `{"type":"message.part.updated","properties":{"part":{"type":"reasoning","sessionID":"s1"}}}`
	if event, ok := Decode([]byte(noDelta)); ok {
		t.Fatalf("expected no event for reasoning without delta, got %#v", event)
	}
}

func TestDecodeToolRunning(t *testing.T) {
	raw := `{"type":"message.part.updated","properties":{"part":{"type":"tool","sessionID":"s1","tool":"read","callID":"call_001","state":{"status":"running","input":{"filePath":"/tmp/test.txt"}}}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	running, ok := event.(domain.ToolRunning)
	if !ok {
		t.Fatalf("expected ToolRunning, got %T", event)
	}
	if running.ToolCallID != "call_001" || running.ToolName != "read" {
		t.Fatalf("unexpected event: %#v", running)
	}
	if running.InputSummary != "/tmp/test.txt" {
		t.Fatalf("unexpected input summary %q", running.InputSummary)
	}
}

func TestDecodeToolCompleted(t *testing.T) {
	raw := `{"type":"message.part.updated","properties":{"part":{"type":"tool","sessionID":"s1","tool":"read","callID":"call_001","state":{"status":"completed","input":{"filePath":"/tmp/test.txt"},"output":"Hello World"}}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	completed, ok := event.(domain.ToolCompleted)
	if !ok {
		t.Fatalf("expected ToolCompleted, got %T", event)
	}
	if completed.Output != "Hello World" {
		t.Fatalf("unexpected output %q", completed.Output)
	}
}

func TestDecodeToolError(t *testing.T) {
	raw := `{"type":"message.part.updated","properties":{"part":{"type":"tool","sessionID":"s1","tool":"bash","callID":"call_002","state":{"status":"error","error":"exit status 1"}}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	toolErr, ok := event.(domain.ToolError)
	if !ok {
		t.Fatalf("expected ToolError, got %T", event)
	}
	if toolErr.Error != "exit status 1" {
		t.Fatalf("unexpected error %q", toolErr.Error)
	}
}

func TestDecodePlanToolCompletionBecomesAgentChanged(t *testing.T) {
	cases := []struct {
		tool  string
		agent string
	}{
		{toolPlanExit, "build"},
		{toolPlanEnter, "plan"},
	}
	for _, tc := range cases {
		raw := `{"type":"message.part.updated","properties":{"part":{"type":"tool","sessionID":"s1","tool":"` + tc.tool + `","callID":"c1","state":{"status":"completed","output":"ok"}}}}`
		event, ok := Decode([]byte(raw))
		if !ok {
			t.Fatalf("%s: expected an event", tc.tool)
		}
		changed, ok := event.(domain.AgentChanged)
		if !ok {
			t.Fatalf("%s: expected AgentChanged, got %T", tc.tool, event)
		}
		if changed.AgentName != tc.agent {
			t.Errorf("%s: expected agent %q, got %q", tc.tool, tc.agent, changed.AgentName)
		}
	}

	// Still a plain tool event while running.
	raw := `{"type":"message.part.updated","properties":{"part":{"type":"tool","sessionID":"s1","tool":"plan_exit","callID":"c1","state":{"status":"running"}}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	if _, ok := event.(domain.ToolRunning); !ok {
		t.Fatalf("expected ToolRunning while plan tool is running, got %T", event)
	}
}

func TestDecodeSessionStatus(t *testing.T) {
	busy := `{"type":"session.status","properties":{"sessionID":"s1","status":{"type":"busy"}}}`
	event, ok := Decode([]byte(busy))
	if !ok {
		t.Fatal("expected an event")
	}
	status, ok := event.(domain.SessionStatus)
	if !ok {
		t.Fatalf("expected SessionStatus, got %T", event)
	}
	if status.Status != "busy" {
		t.Fatalf("unexpected status %q", status.Status)
	}

	idle := `{"type":"session.status","properties":{"sessionID":"s1","status":{"type":"idle"}}}`
	event, ok = Decode([]byte(idle))
	if !ok {
		t.Fatal("expected an event")
	}
	if _, ok := event.(domain.SessionIdle); !ok {
		t.Fatalf("expected SessionIdle, got %T", event)
	}
}

func TestDecodeSessionError(t *testing.T) {
	raw := `{"type":"session.error","properties":{"sessionID":"s1","error":"model overloaded"}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	sessionErr, ok := event.(domain.SessionError)
	if !ok {
		t.Fatalf("expected SessionError, got %T", event)
	}
	if sessionErr.Error != "model overloaded" {
		t.Fatalf("unexpected error %q", sessionErr.Error)
	}
}

func TestDecodeQuestionDefaultsCustomTrue(t *testing.T) {
	raw := `{"type":"question.asked","properties":{"id":"q1","sessionID":"s1","questions":[{"prompt":"Which file?","options":[{"label":"a.go"},{"label":"b.go","description":"the other one"}]},{"prompt":"Sure?","custom":false}]}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	asked, ok := event.(domain.QuestionAsked)
	if !ok {
		t.Fatalf("expected QuestionAsked, got %T", event)
	}
	if asked.RequestID != "q1" || len(asked.Questions) != 2 {
		t.Fatalf("unexpected event: %#v", asked)
	}
	if !asked.Questions[0].Custom {
		t.Error("absent custom flag must default to true")
	}
	if asked.Questions[1].Custom {
		t.Error("explicit custom=false must be honored")
	}
	if asked.Questions[0].Options[1].Description != "the other one" {
		t.Errorf("unexpected option: %#v", asked.Questions[0].Options[1])
	}
}

func TestDecodeQuestionPlanInference(t *testing.T) {
	cases := []struct {
		prompt  string
		context string
		file    string
	}{
		{"Ready to exit plan mode and start building from docs/auth.plan.md?", "plan_exit", "docs/auth.plan.md"},
		{"Entering plan mode. Where should the plan live?", "plan_enter", ""},
		{"Exit planning mode using PLAN.md?", "plan_exit", "PLAN.md"},
		{"Do you want fries with that?", "", ""},
	}
	for _, tc := range cases {
		raw, _ := json.Marshal(map[string]any{
			"type": "question.asked",
			"properties": map[string]any{
				"id":        "q1",
				"sessionID": "s1",
				"questions": []map[string]any{{"prompt": tc.prompt}},
			},
		})
		event, ok := Decode(raw)
		if !ok {
			t.Fatalf("%q: expected an event", tc.prompt)
		}
		question := event.(domain.QuestionAsked).Questions[0]
		if question.PlanContext != tc.context {
			t.Errorf("%q: expected context %q, got %q", tc.prompt, tc.context, question.PlanContext)
		}
		if question.PlanFilePath != tc.file {
			t.Errorf("%q: expected plan file %q, got %q", tc.prompt, tc.file, question.PlanFilePath)
		}
	}
}

func TestDecodePermissionDefaults(t *testing.T) {
	raw := `{"type":"permission.asked","properties":{"id":"p1","sessionID":"s1","permission":"bash","patterns":["rm -rf *"],"metadata":{"cwd":"/tmp"}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	asked, ok := event.(domain.PermissionAsked)
	if !ok {
		t.Fatalf("expected PermissionAsked, got %T", event)
	}
	if asked.AlwaysPatterns == nil || len(asked.AlwaysPatterns) != 0 {
		t.Fatalf("absent always list must default to empty, got %#v", asked.AlwaysPatterns)
	}
	if asked.Metadata["cwd"] != "/tmp" {
		t.Fatalf("unexpected metadata: %#v", asked.Metadata)
	}
}

func TestDecodePermissionRoundTrip(t *testing.T) {
	raw := `{"type":"permission.asked","properties":{"id":"p1","sessionID":"s1","permission":"edit","patterns":["src/**"],"metadata":{"tool":"edit","path":"src/main.go"}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	original := event.(domain.PermissionAsked)

	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded domain.PermissionAsked
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !reflect.DeepEqual(original.Patterns, decoded.Patterns) {
		t.Errorf("patterns not preserved: %#v vs %#v", original.Patterns, decoded.Patterns)
	}
	if !reflect.DeepEqual(original.Metadata, decoded.Metadata) {
		t.Errorf("metadata not preserved: %#v vs %#v", original.Metadata, decoded.Metadata)
	}
	if !reflect.DeepEqual(original.AlwaysPatterns, decoded.AlwaysPatterns) {
		t.Errorf("always list not preserved: %#v vs %#v", original.AlwaysPatterns, decoded.AlwaysPatterns)
	}
}

func TestDecodeUsage(t *testing.T) {
	raw := `{"type":"message.updated","properties":{"info":{"sessionID":"s1","modelID":"sonnet","cost":0.42,"tokens":{"input":100,"output":50,"cache":{"read":10}}}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	usage, ok := event.(domain.UsageUpdated)
	if !ok {
		t.Fatalf("expected UsageUpdated, got %T", event)
	}
	if usage.Model != "sonnet" || usage.Cost != 0.42 {
		t.Fatalf("unexpected event: %#v", usage)
	}
	want := domain.TokenUsage{Input: 100, Output: 50, CacheRead: 10}
	if usage.Tokens != want {
		t.Fatalf("token sub-fields must default to zero: %#v", usage.Tokens)
	}
}

func TestDecodeUsageWithoutTokens(t *testing.T) {
	raw := `{"type":"message.updated","properties":{"info":{"sessionID":"s1","modelID":"sonnet"}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	usage := event.(domain.UsageUpdated)
	if usage.Tokens != (domain.TokenUsage{}) {
		t.Fatalf("absent tokens must decode to zero: %#v", usage.Tokens)
	}
}

func TestDecodeLiveness(t *testing.T) {
	event, ok := Decode([]byte(`{"type":"server.connected","properties":{}}`))
	if !ok {
		t.Fatal("expected an event")
	}
	if _, isConnected := event.(domain.Connected); !isConnected {
		t.Fatalf("expected Connected, got %T", event)
	}

	event, ok = Decode([]byte(`{"type":"server.heartbeat","properties":{}}`))
	if !ok {
		t.Fatal("expected an event")
	}
	if _, isHeartbeat := event.(domain.Heartbeat); !isHeartbeat {
		t.Fatalf("expected Heartbeat, got %T", event)
	}
}

func TestDecodeScoped(t *testing.T) {
	raw := `{"directory":"/work/app","payload":{"type":"session.status","properties":{"sessionID":"s1","status":{"type":"idle"}}}}`
	scoped, ok := DecodeScoped([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	if scoped.Directory != "/work/app" {
		t.Fatalf("unexpected directory %q", scoped.Directory)
	}
	if _, isIdle := scoped.Event.(domain.SessionIdle); !isIdle {
		t.Fatalf("expected SessionIdle, got %T", scoped.Event)
	}
}

func TestDecodeScopedWithoutDirectory(t *testing.T) {
	raw := `{"payload":{"type":"server.heartbeat","properties":{}}}`
	scoped, ok := DecodeScoped([]byte(raw))
	if !ok {
		t.Fatal("absent directory is valid")
	}
	if scoped.Directory != "" {
		t.Fatalf("unexpected directory %q", scoped.Directory)
	}
}

func TestDecodeScopedRejectsBadPayload(t *testing.T) {
	cases := []string{
		`{"directory":"/work/app"}`,
		`{"directory":"/work/app","payload":{"type":"nope","properties":{}}}`,
		`not json`,
	}
	for _, raw := range cases {
		if scoped, ok := DecodeScoped([]byte(raw)); ok {
			t.Errorf("expected no event for %q, got %#v", raw, scoped)
		}
	}
}

func TestSummarizeInput(t *testing.T) {
	cases := []struct {
		name  string
		input map[string]any
		want  string
	}{
		{"empty", nil, ""},
		{"command wins", map[string]any{"command": "go test ./...", "timeout": 30}, "go test ./..."},
		{"fallback join", map[string]any{"b": 2, "a": 1}, "a=1 b=2"},
	}
	for _, tc := range cases {
		if got := summarizeInput(tc.input); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDecodeTodoToolCarriesTodos(t *testing.T) {
	raw := `{"type":"message.part.updated","properties":{"part":{"type":"tool","sessionID":"s1","tool":"todowrite","callID":"c9","state":{"status":"completed","output":"ok","input":{"todos":[{"content":"write tests","status":"completed"},{"content":"ship","status":"pending"}]}}}}}`
	event, ok := Decode([]byte(raw))
	if !ok {
		t.Fatal("expected an event")
	}
	completed := event.(domain.ToolCompleted)
	if len(completed.Todos) != 2 {
		t.Fatalf("expected 2 todos, got %d", len(completed.Todos))
	}
	if completed.Todos[0].Status != domain.TodoCompleted {
		t.Fatalf("unexpected todo: %#v", completed.Todos[0])
	}
}
