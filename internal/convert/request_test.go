package convert

import (
	"encoding/json"
	"testing"

	"github.com/corvidlabs/vertexpass/internal/anthropicapi"
	"github.com/corvidlabs/vertexpass/internal/openaiapi"
)

func rawString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func TestRequestPlainText(t *testing.T) {
	req := openaiapi.ChatRequest{
		Model: "claude-sonnet-4",
		Messages: []openaiapi.Message{
			{Role: openaiapi.RoleUser, RawContent: rawString("Hi")},
		},
	}

	result, err := Request(req, "claude-sonnet-4@vertex")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	body := result.Body
	if body.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", body.MaxTokens, DefaultMaxTokens)
	}
	if len(body.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(body.Messages))
	}
	msg := body.Messages[0]
	if msg.Role != anthropicapi.RoleUser {
		t.Errorf("Role = %q, want %q", msg.Role, anthropicapi.RoleUser)
	}
	if len(msg.Content) != 1 || msg.Content[0].Type != "text" || msg.Content[0].Text != "Hi" {
		t.Errorf("Content = %+v, want single text block \"Hi\"", msg.Content)
	}
}

func TestRequestSystemHoisted(t *testing.T) {
	req := openaiapi.ChatRequest{
		Model: "claude-sonnet-4",
		Messages: []openaiapi.Message{
			{Role: openaiapi.RoleSystem, RawContent: rawString("Be brief")},
			{Role: openaiapi.RoleUser, RawContent: rawString("Hi")},
		},
	}

	result, err := Request(req, "claude-sonnet-4@vertex")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if result.Body.System != "Be brief" {
		t.Errorf("System = %q, want %q", result.Body.System, "Be brief")
	}
	if len(result.Body.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1 (system must not appear in Messages)", len(result.Body.Messages))
	}
}

func TestRequestMultipleSystemMessagesJoinedInOrder(t *testing.T) {
	req := openaiapi.ChatRequest{
		Model: "m",
		Messages: []openaiapi.Message{
			{Role: openaiapi.RoleSystem, RawContent: rawString("first")},
			{Role: openaiapi.RoleSystem, RawContent: rawString("second")},
			{Role: openaiapi.RoleUser, RawContent: rawString("hi")},
		},
	}
	result, err := Request(req, "m")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if want := "first\nsecond"; result.Body.System != want {
		t.Errorf("System = %q, want %q", result.Body.System, want)
	}
}

func TestRequestConsecutiveSameRoleMerged(t *testing.T) {
	req := openaiapi.ChatRequest{
		Model: "m",
		Messages: []openaiapi.Message{
			{Role: openaiapi.RoleUser, RawContent: rawString("one")},
			{Role: openaiapi.RoleUser, RawContent: rawString("two")},
		},
	}
	result, err := Request(req, "m")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(result.Body.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(result.Body.Messages))
	}
	if len(result.Body.Messages[0].Content) != 2 {
		t.Fatalf("len(Content) = %d, want 2", len(result.Body.Messages[0].Content))
	}
}

func TestRequestToolCallRoundTrip(t *testing.T) {
	toolCalls := []openaiapi.ToolCall{
		{ID: "tu_1", Type: "function", Function: openaiapi.ToolCallFunc{Name: "list_directory", Arguments: `{"path":"/tmp"}`}},
	}
	req := openaiapi.ChatRequest{
		Model: "m",
		Messages: []openaiapi.Message{
			{Role: openaiapi.RoleUser, RawContent: rawString("list /tmp")},
			{Role: openaiapi.RoleAssistant, ToolCalls: toolCalls},
			{Role: openaiapi.RoleTool, ToolCallID: "tu_1", RawContent: rawString("a.txt\nb.txt")},
		},
	}

	result, err := Request(req, "m")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if len(result.Body.Messages) != 3 {
		t.Fatalf("len(Messages) = %d, want 3 (user, assistant, user with tool_result)", len(result.Body.Messages))
	}

	assistantMsg := result.Body.Messages[1]
	if assistantMsg.Role != anthropicapi.RoleAssistant {
		t.Fatalf("expected second message to be assistant, got %q", assistantMsg.Role)
	}
	if len(assistantMsg.Content) != 1 || assistantMsg.Content[0].Type != "tool_use" {
		t.Fatalf("expected one tool_use block, got %+v", assistantMsg.Content)
	}
	if assistantMsg.Content[0].ID != "tu_1" || assistantMsg.Content[0].Name != "list_directory" {
		t.Errorf("tool_use block = %+v", assistantMsg.Content[0])
	}

	resultMsg := result.Body.Messages[2]
	if resultMsg.Role != anthropicapi.RoleUser {
		t.Fatalf("expected tool_result inside a user message, got role %q", resultMsg.Role)
	}
	if len(resultMsg.Content) != 1 || resultMsg.Content[0].Type != "tool_result" {
		t.Fatalf("expected one tool_result block, got %+v", resultMsg.Content)
	}
	if resultMsg.Content[0].ToolUseID != "tu_1" {
		t.Errorf("tool_result block = %+v", resultMsg.Content[0])
	}
}

func TestRequestContiguousToolResultsPackedIntoOneUserMessage(t *testing.T) {
	req := openaiapi.ChatRequest{
		Model: "m",
		Messages: []openaiapi.Message{
			{Role: openaiapi.RoleUser, RawContent: rawString("go")},
			{Role: openaiapi.RoleAssistant, ToolCalls: []openaiapi.ToolCall{
				{ID: "tu_1", Function: openaiapi.ToolCallFunc{Name: "a", Arguments: `{}`}},
				{ID: "tu_2", Function: openaiapi.ToolCallFunc{Name: "b", Arguments: `{}`}},
			}},
			{Role: openaiapi.RoleTool, ToolCallID: "tu_1", RawContent: rawString("one")},
			{Role: openaiapi.RoleTool, ToolCallID: "tu_2", RawContent: rawString("two")},
		},
	}

	result, err := Request(req, "m")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	last := result.Body.Messages[len(result.Body.Messages)-1]
	if last.Role != anthropicapi.RoleUser || len(last.Content) != 2 {
		t.Fatalf("last message = %+v, want one user message with two tool_result blocks", last)
	}
	if last.Content[0].ToolUseID != "tu_1" || last.Content[1].ToolUseID != "tu_2" {
		t.Errorf("tool_result order = %+v", last.Content)
	}
}

func TestRequestMalformedToolArgumentsWrapsRaw(t *testing.T) {
	toolCalls := []openaiapi.ToolCall{
		{ID: "tu_1", Function: openaiapi.ToolCallFunc{Name: "f", Arguments: "not json"}},
	}
	req := openaiapi.ChatRequest{
		Model:    "m",
		Messages: []openaiapi.Message{{Role: openaiapi.RoleAssistant, ToolCalls: toolCalls}},
	}
	result, err := Request(req, "m")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Errorf("expected a warning for malformed tool arguments")
	}
	block := result.Body.Messages[0].Content[0]
	var wrapped map[string]string
	if err := json.Unmarshal(block.Input, &wrapped); err != nil {
		t.Fatalf("Input not valid JSON: %v", err)
	}
	if wrapped["_raw"] != "not json" {
		t.Errorf("wrapped input = %+v, want _raw=\"not json\"", wrapped)
	}
}

func TestRequestUnknownRoleFails(t *testing.T) {
	req := openaiapi.ChatRequest{
		Model:    "m",
		Messages: []openaiapi.Message{{Role: "bogus"}},
	}
	if _, err := Request(req, "m"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestRequestToolChoiceMapping(t *testing.T) {
	cases := []struct {
		name string
		in   openaiapi.ToolChoice
		want *anthropicapi.ToolChoice
	}{
		{"auto", openaiapi.ToolChoice{Mode: "auto"}, nil},
		{"none", openaiapi.ToolChoice{Mode: "none"}, &anthropicapi.ToolChoice{Type: "none"}},
		{"function", openaiapi.ToolChoice{Mode: "function", Function: &openaiapi.ToolChoiceFn{Name: "f"}}, &anthropicapi.ToolChoice{Type: "tool", Name: "f"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := openaiapi.ChatRequest{
				Model:      "m",
				Messages:   []openaiapi.Message{{Role: openaiapi.RoleUser, RawContent: rawString("hi")}},
				ToolChoice: &c.in,
			}
			result, err := Request(req, "m")
			if err != nil {
				t.Fatalf("Request: %v", err)
			}
			got := result.Body.ToolChoice
			if c.want == nil {
				if got != nil {
					t.Errorf("ToolChoice = %+v, want nil", got)
				}
				return
			}
			if got == nil || *got != *c.want {
				t.Errorf("ToolChoice = %+v, want %+v", got, c.want)
			}
		})
	}
}
