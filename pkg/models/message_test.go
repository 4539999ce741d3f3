package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRole_Constants(t *testing.T) {
	tests := []struct {
		constant Role
		expected string
	}{
		{RoleSystem, "system"},
		{RoleUser, "user"},
		{RoleAssistant, "assistant"},
		{RoleTool, "tool"},
	}

	for _, tt := range tests {
		t.Run(string(tt.constant), func(t *testing.T) {
			if string(tt.constant) != tt.expected {
				t.Errorf("constant = %q, want %q", tt.constant, tt.expected)
			}
		})
	}
}

func TestToolCallKind_Constants(t *testing.T) {
	if string(ToolCallFunction) != "function" {
		t.Errorf("ToolCallFunction = %q, want %q", ToolCallFunction, "function")
	}
	if string(ToolCallCustom) != "custom" {
		t.Errorf("ToolCallCustom = %q, want %q", ToolCallCustom, "custom")
	}
}

func TestMessage_Struct(t *testing.T) {
	now := time.Now()
	msg := Message{
		ID:        "msg-123",
		SessionID: "session-456",
		Role:      RoleUser,
		Content:   "Hello, world!",
		Metadata:  map[string]any{"key": "value"},
		CreatedAt: now,
	}

	if msg.ID != "msg-123" {
		t.Errorf("ID = %q, want %q", msg.ID, "msg-123")
	}
	if msg.SessionID != "session-456" {
		t.Errorf("SessionID = %q, want %q", msg.SessionID, "session-456")
	}
	if msg.Role != RoleUser {
		t.Errorf("Role = %v, want %v", msg.Role, RoleUser)
	}
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	original := Message{
		ID:        "msg-123",
		SessionID: "session-456",
		Role:      RoleAssistant,
		Content:   "Hello!",
		ToolCalls: []ToolCall{{ID: "tc-1", Kind: ToolCallFunction, Name: "search", Arguments: json.RawMessage(`{"q":"test"}`)}},
		Metadata:  map[string]any{"source": "test"},
		CreatedAt: now,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, original.ID)
	}
	if decoded.Role != original.Role {
		t.Errorf("Role = %v, want %v", decoded.Role, original.Role)
	}
	if len(decoded.ToolCalls) != 1 {
		t.Errorf("ToolCalls length = %d, want 1", len(decoded.ToolCalls))
	}
	if decoded.ToolCalls[0].Name != "search" {
		t.Errorf("ToolCalls[0].Name = %q, want %q", decoded.ToolCalls[0].Name, "search")
	}
}

func TestMessage_ToolResponseRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	original := Message{
		ID:         "msg-456",
		SessionID:  "session-456",
		Role:       RoleTool,
		Content:    "search results",
		ToolCallID: "tc-1",
		OriginTool: "search",
		CreatedAt:  now,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded.ToolCallID != original.ToolCallID {
		t.Errorf("ToolCallID = %q, want %q", decoded.ToolCallID, original.ToolCallID)
	}
	if decoded.OriginTool != original.OriginTool {
		t.Errorf("OriginTool = %q, want %q", decoded.OriginTool, original.OriginTool)
	}
}

func TestToolCall_Struct(t *testing.T) {
	tc := ToolCall{
		ID:        "tc-123",
		Kind:      ToolCallFunction,
		Name:      "web_search",
		Arguments: json.RawMessage(`{"query": "test query"}`),
	}

	if tc.ID != "tc-123" {
		t.Errorf("ID = %q, want %q", tc.ID, "tc-123")
	}
	if tc.Name != "web_search" {
		t.Errorf("Name = %q, want %q", tc.Name, "web_search")
	}
	if tc.Kind != ToolCallFunction {
		t.Errorf("Kind = %v, want %v", tc.Kind, ToolCallFunction)
	}
}

func TestToolResult_Struct(t *testing.T) {
	tr := ToolResult{
		ToolCallID: "tc-123",
		ToolName:   "web_search",
		Content:    "Search results here",
		IsError:    false,
	}

	if tr.ToolCallID != "tc-123" {
		t.Errorf("ToolCallID = %q, want %q", tr.ToolCallID, "tc-123")
	}
	if tr.IsError {
		t.Error("IsError should be false")
	}

	trError := ToolResult{
		ToolCallID: "tc-456",
		Content:    "Error occurred",
		ErrorKind:  "timeout",
		IsError:    true,
	}
	if !trError.IsError {
		t.Error("IsError should be true")
	}
}

func TestToolResult_ToString_Success(t *testing.T) {
	tr := ToolResult{ToolCallID: "tc-1", Content: "plain content", IsError: false}
	if got := tr.ToString(); got != "plain content" {
		t.Errorf("ToString() = %q, want %q", got, "plain content")
	}
}

func TestToolResult_ToString_Error(t *testing.T) {
	tr := ToolResult{ToolCallID: "tc-1", ToolName: "bash", Content: "command not found", ErrorKind: "exec_error", IsError: true}
	got := tr.ToString()

	var decoded map[string]string
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("expected JSON error payload, got %q: %v", got, err)
	}
	if decoded["error"] != "command not found" {
		t.Errorf("error field = %q, want %q", decoded["error"], "command not found")
	}
	if decoded["kind"] != "exec_error" {
		t.Errorf("kind field = %q, want %q", decoded["kind"], "exec_error")
	}
	if decoded["tool"] != "bash" {
		t.Errorf("tool field = %q, want %q", decoded["tool"], "bash")
	}
}
