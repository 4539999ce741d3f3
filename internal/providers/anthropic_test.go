package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/vtcode/agent/pkg/models"
)

func TestNewAnthropicProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      AnthropicConfig
		expectError bool
	}{
		{
			name: "valid config",
			config: AnthropicConfig{
				APIKey:       "test-key",
				MaxRetries:   3,
				RetryDelay:   time.Second,
				DefaultModel: "claude-sonnet-4-20250514",
			},
			expectError: false,
		},
		{
			name:        "missing API key",
			config:      AnthropicConfig{MaxRetries: 3},
			expectError: true,
		},
		{
			name:        "defaults applied",
			config:      AnthropicConfig{APIKey: "test-key"},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewAnthropicProvider(tt.config)

			if tt.expectError {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider == nil {
				t.Fatal("expected provider but got nil")
			}
			if provider.maxRetries <= 0 {
				t.Error("maxRetries should have default value")
			}
			if provider.retryDelay <= 0 {
				t.Error("retryDelay should have default value")
			}
			if provider.defaultModel == "" {
				t.Error("defaultModel should have default value")
			}
		})
	}
}

func TestProviderMethods(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	if provider.Name() != "anthropic" {
		t.Errorf("expected name 'anthropic', got '%s'", provider.Name())
	}

	if !provider.Capabilities("claude-sonnet-4-20250514").Tools {
		t.Error("expected Tools capability to be true")
	}

	availableModels := provider.Models()
	if len(availableModels) == 0 {
		t.Error("expected at least one model")
	}

	expectedModels := []string{
		"claude-sonnet-4-20250514",
		"claude-opus-4-20250514",
		"claude-3-5-sonnet-20241022",
	}

	modelIDs := make(map[string]bool)
	for _, m := range availableModels {
		modelIDs[m.ID] = true
		if m.Name == "" {
			t.Errorf("model %s has empty name", m.ID)
		}
		if m.ContextSize <= 0 {
			t.Errorf("model %s has invalid context size", m.ID)
		}
	}

	for _, expected := range expectedModels {
		if !modelIDs[expected] {
			t.Errorf("expected model %s not found", expected)
		}
	}
}

func TestWrapAnthropicError(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	apiErr := &anthropic.Error{StatusCode: 429, RequestID: "req_123"}
	wrapped := provider.wrapError(apiErr, "claude-sonnet-4")
	providerErr, ok := GetProviderError(wrapped)
	if !ok {
		t.Fatalf("expected ProviderError, got %T", wrapped)
	}
	if providerErr.Status != 429 {
		t.Fatalf("expected status 429, got %d", providerErr.Status)
	}
	if providerErr.Reason != FailoverRateLimit {
		t.Fatalf("expected reason %v, got %v", FailoverRateLimit, providerErr.Reason)
	}
	if providerErr.RequestID != "req_123" {
		t.Fatalf("expected request ID req_123, got %q", providerErr.RequestID)
	}
}

func TestConvertMessages(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	tests := []struct {
		name     string
		messages []models.Message
		wantErr  bool
	}{
		{
			name:     "simple user message",
			messages: []models.Message{{Role: models.RoleUser, Content: "Hello!"}},
		},
		{
			name: "system message is skipped",
			messages: []models.Message{
				{Role: models.RoleSystem, Content: "You are helpful."},
				{Role: models.RoleUser, Content: "Hello!"},
			},
		},
		{
			name: "assistant message",
			messages: []models.Message{
				{Role: models.RoleUser, Content: "Hello!"},
				{Role: models.RoleAssistant, Content: "Hi there!"},
			},
		},
		{
			name: "message with tool calls",
			messages: []models.Message{
				{
					Role:    models.RoleAssistant,
					Content: "Let me check that.",
					ToolCalls: []models.ToolCall{
						{ID: "call_123", Name: "get_weather", Arguments: json.RawMessage(`{"city":"London"}`)},
					},
				},
			},
		},
		{
			name: "message with tool result",
			messages: []models.Message{
				{Role: models.RoleTool, ToolCallID: "call_123", Content: "Sunny, 72F"},
			},
		},
		{
			name: "invalid tool call JSON",
			messages: []models.Message{
				{
					Role: models.RoleAssistant,
					ToolCalls: []models.ToolCall{
						{ID: "call_123", Name: "test", Arguments: json.RawMessage(`invalid json`)},
					},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := provider.convertMessages(tt.messages)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result == nil {
				t.Fatal("expected result but got nil")
			}
		})
	}
}

func TestConvertTools(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	tests := []struct {
		name    string
		tools   []ToolDefinition
		wantErr bool
	}{
		{
			name: "valid tool",
			tools: []ToolDefinition{
				{Name: "get_weather", Description: "Get current weather", Schema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`)},
			},
		},
		{
			name: "multiple tools",
			tools: []ToolDefinition{
				{Name: "get_weather", Description: "Get current weather", Schema: json.RawMessage(`{"type":"object"}`)},
				{Name: "search", Description: "Search the web", Schema: json.RawMessage(`{"type":"object"}`)},
			},
		},
		{
			name:    "invalid schema JSON",
			tools:   []ToolDefinition{{Name: "test", Description: "Test tool", Schema: json.RawMessage(`invalid`)}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := provider.convertTools(tt.tools)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result) != len(tt.tools) {
				t.Errorf("expected %d tools, got %d", len(tt.tools), len(result))
			}
		})
	}
}

func TestCountTokens(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	tests := []struct {
		name string
		req  *LLMRequest
	}{
		{
			name: "simple message",
			req:  &LLMRequest{Messages: []models.Message{{Role: models.RoleUser, Content: "Hello, how are you?"}}},
		},
		{
			name: "with system prompt",
			req: &LLMRequest{
				System:   "You are a helpful assistant.",
				Messages: []models.Message{{Role: models.RoleUser, Content: "Hello!"}},
			},
		},
		{
			name: "with tools",
			req: &LLMRequest{
				Messages: []models.Message{{Role: models.RoleUser, Content: "What's the weather?"}},
				Tools: []ToolDefinition{
					{Name: "get_weather", Description: "Get current weather in a city", Schema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`)},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := provider.CountTokens(tt.req)
			if count == 0 {
				t.Error("expected non-zero token count")
			}
			if count < 0 || count > 100000 {
				t.Errorf("unreasonable token count: %d", count)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	tests := []struct {
		name  string
		err   error
		retry bool
	}{
		{"nil error", nil, false},
		{"rate limit error", errors.New("rate_limit exceeded"), true},
		{"429 status", errors.New("HTTP 429 too many requests"), true},
		{"500 error", errors.New("HTTP 500 internal server error"), true},
		{"503 service unavailable", errors.New("503 service unavailable"), true},
		{"timeout error", errors.New("request timeout"), true},
		{"deadline exceeded", errors.New("context deadline exceeded"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"invalid API key (not retryable)", errors.New("invalid API key"), false},
		{"validation error (not retryable)", errors.New("validation failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := provider.isRetryableError(tt.err)
			if result != tt.retry {
				t.Errorf("expected retry=%v, got %v for error: %v", tt.retry, result, tt.err)
			}
		})
	}
}

func TestErrorHandling(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   string
		wantRetry  bool
	}{
		{"rate limit error", http.StatusTooManyRequests, `{"error":{"type":"rate_limit_error","message":"Rate limit exceeded"}}`, true},
		{"server error", http.StatusInternalServerError, `{"error":{"type":"api_error","message":"Internal server error"}}`, true},
		{"authentication error", http.StatusUnauthorized, `{"error":{"type":"authentication_error","message":"Invalid API key"}}`, false},
		{"validation error", http.StatusBadRequest, `{"error":{"type":"invalid_request_error","message":"Invalid request"}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				fmt.Fprint(w, tt.response)
			}))
			defer server.Close()

			provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
			if err != nil {
				t.Fatalf("failed to create provider: %v", err)
			}

			testErr := fmt.Errorf("HTTP %d", tt.statusCode)
			shouldRetry := provider.isRetryableError(testErr)
			if shouldRetry != tt.wantRetry {
				t.Errorf("expected retry=%v, got %v", tt.wantRetry, shouldRetry)
			}
		})
	}
}

func TestParseSSEStream(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []struct{ eventType, data string }
	}{
		{
			name:  "simple event",
			input: "event: message_start\ndata: {\"type\":\"message_start\"}\n\n",
			expected: []struct{ eventType, data string }{
				{"message_start", `{"type":"message_start"}`},
			},
		},
		{
			name:  "multiple events",
			input: "event: content_block_delta\ndata: {\"text\":\"Hello\"}\n\nevent: content_block_delta\ndata: {\"text\":\" world\"}\n\n",
			expected: []struct{ eventType, data string }{
				{"content_block_delta", `{"text":"Hello"}`},
				{"content_block_delta", `{"text":" world"}`},
			},
		},
		{
			name:  "multiline data",
			input: "event: test\ndata: line1\ndata: line2\n\n",
			expected: []struct{ eventType, data string }{
				{"test", "line1\nline2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := strings.NewReader(tt.input)
			var events []struct{ eventType, data string }

			err := ParseSSEStream(reader, func(eventType, data string) error {
				events = append(events, struct{ eventType, data string }{eventType, data})
				return nil
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(events) != len(tt.expected) {
				t.Fatalf("expected %d events, got %d", len(tt.expected), len(events))
			}
			for i, event := range events {
				if event.eventType != tt.expected[i].eventType || event.data != tt.expected[i].data {
					t.Errorf("event %d: got %+v, want %+v", i, event, tt.expected[i])
				}
			}
		})
	}
}

func TestModelDefaults(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", DefaultModel: "claude-opus-4-20250514"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	if model := provider.getModel(""); model != "claude-opus-4-20250514" {
		t.Errorf("expected default model, got %s", model)
	}
	if model := provider.getModel("claude-3-haiku-20240307"); model != "claude-3-haiku-20240307" {
		t.Errorf("expected specified model, got %s", model)
	}
	if maxTokens := provider.getMaxTokens(0); maxTokens != 4096 {
		t.Errorf("expected default maxTokens=4096, got %d", maxTokens)
	}
	if maxTokens := provider.getMaxTokens(2000); maxTokens != 2000 {
		t.Errorf("expected specified maxTokens=2000, got %d", maxTokens)
	}
}

func TestMaxEmptyStreamEventsConstant(t *testing.T) {
	if maxEmptyStreamEvents < 100 {
		t.Errorf("maxEmptyStreamEvents=%d is too low, may cause false positives", maxEmptyStreamEvents)
	}
	if maxEmptyStreamEvents > 1000 {
		t.Errorf("maxEmptyStreamEvents=%d is too high, may not protect against malformed streams", maxEmptyStreamEvents)
	}
}

func TestAnthropicProviderWithBaseURL(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", BaseURL: "https://custom.api.example.com/"})
	if err != nil {
		t.Fatalf("failed to create provider with base URL: %v", err)
	}
	if provider == nil {
		t.Fatal("expected provider but got nil")
	}
}

func TestAnthropicProviderWithEmptyBaseURL(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", BaseURL: "   "})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	if provider == nil {
		t.Fatal("expected provider but got nil")
	}
}

func TestAnthropicProviderNegativeRetries(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", MaxRetries: -5, RetryDelay: -1 * time.Second})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	if provider.maxRetries <= 0 {
		t.Errorf("expected positive maxRetries, got %d", provider.maxRetries)
	}
	if provider.retryDelay <= 0 {
		t.Errorf("expected positive retryDelay, got %v", provider.retryDelay)
	}
}

func TestConvertMessagesWithMultipleToolCalls(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	messages := []models.Message{
		{
			Role:    models.RoleAssistant,
			Content: "I'll help you with both.",
			ToolCalls: []models.ToolCall{
				{ID: "call_1", Name: "get_weather", Arguments: json.RawMessage(`{"city":"London"}`)},
				{ID: "call_2", Name: "search", Arguments: json.RawMessage(`{"query":"news"}`)},
			},
		},
	}

	result, err := provider.convertMessages(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("expected 1 message, got %d", len(result))
	}
}

func TestConvertMessagesWithToolResultError(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	messages := []models.Message{
		{Role: models.RoleTool, ToolCallID: "call_1", Content: "Network error occurred", IsError: true},
	}

	result, err := provider.convertMessages(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("expected 1 message, got %d", len(result))
	}
}

func TestConvertToolsWithComplexSchema(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	tools := []ToolDefinition{
		{
			Name:        "complex_tool",
			Description: "A tool with complex schema",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search query"},
					"filters": {"type": "object", "properties": {"date": {"type": "string"}, "limit": {"type": "integer"}}},
					"options": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["query"]
			}`),
		},
	}

	result, err := provider.convertTools(tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("expected 1 tool, got %d", len(result))
	}
}

func TestIsRetryableWithProviderError(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	rateLimitErr := NewProviderError("anthropic", "claude-sonnet", errors.New("rate limit")).WithStatus(429)
	if !provider.isRetryableError(rateLimitErr) {
		t.Error("expected rate limit ProviderError to be retryable")
	}

	authErr := NewProviderError("anthropic", "claude-sonnet", errors.New("unauthorized")).WithStatus(401)
	if provider.isRetryableError(authErr) {
		t.Error("expected auth ProviderError to not be retryable")
	}
}

func TestWrapErrorNil(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	if result := provider.wrapError(nil, "claude-sonnet"); result != nil {
		t.Errorf("expected nil for nil error, got %v", result)
	}
}

func TestWrapErrorAlreadyWrapped(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	originalErr := NewProviderError("anthropic", "claude-sonnet", errors.New("test")).WithStatus(429).WithCode("rate_limit")
	wrapped := provider.wrapError(originalErr, "different-model")
	if wrapped != originalErr {
		t.Error("expected already-wrapped error to be returned as-is")
	}
}

func TestWrapErrorExtractsRequestID(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	apiErr := &anthropic.Error{StatusCode: 500, RequestID: "req_test_123"}
	wrapped := provider.wrapError(apiErr, "claude-sonnet")
	providerErr, ok := GetProviderError(wrapped)
	if !ok {
		t.Fatal("expected ProviderError")
	}
	if providerErr.RequestID != "req_test_123" {
		t.Errorf("expected request ID req_test_123, got %s", providerErr.RequestID)
	}
}

func TestGetMaxTokensEdgeCases(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"zero", 0, 4096},
		{"negative", -100, 4096},
		{"positive", 2000, 2000},
		{"large", 100000, 100000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := provider.getMaxTokens(tt.input); result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestCountTokensWithToolCalls(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	req := &LLMRequest{
		Messages: []models.Message{
			{
				Role:    models.RoleAssistant,
				Content: "Let me check that.",
				ToolCalls: []models.ToolCall{
					{ID: "call_123", Name: "get_weather", Arguments: json.RawMessage(`{"city":"London","units":"celsius"}`)},
				},
			},
		},
	}

	if count := provider.CountTokens(req); count <= 0 {
		t.Error("expected positive token count")
	}
}

func TestParseSSEStreamHandlerError(t *testing.T) {
	reader := strings.NewReader("event: test\ndata: some data\n\n")
	handlerErr := errors.New("handler failed")

	err := ParseSSEStream(reader, func(eventType, data string) error { return handlerErr })
	if err != handlerErr {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestParseSSEStreamEmptyInput(t *testing.T) {
	var events []string
	err := ParseSSEStream(strings.NewReader(""), func(eventType, data string) error {
		events = append(events, eventType)
		return nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestParseSSEStreamDataOnly(t *testing.T) {
	reader := strings.NewReader("data: just data\n\n")
	var events []struct{ eventType, data string }

	err := ParseSSEStream(reader, func(eventType, data string) error {
		events = append(events, struct{ eventType, data string }{eventType, data})
		return nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].eventType != "" || events[0].data != "just data" {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestConvertMessagesEmptyContent(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	messages := []models.Message{
		{
			Role:      models.RoleAssistant,
			Content:   "",
			ToolCalls: []models.ToolCall{{ID: "call_1", Name: "test", Arguments: json.RawMessage(`{}`)}},
		},
	}

	result, err := provider.convertMessages(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("expected 1 message, got %d", len(result))
	}
}

func TestModelContextSizes(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	for _, m := range provider.Models() {
		if m.ContextSize != 200000 {
			t.Errorf("model %s has unexpected context size %d", m.ID, m.ContextSize)
		}
	}
}

func TestIsRetryableWithServerErrors(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	for _, errMsg := range []string{"internal server error", "bad gateway", "service unavailable", "gateway timeout"} {
		if !provider.isRetryableError(errors.New(errMsg)) {
			t.Errorf("expected %q to be retryable", errMsg)
		}
	}
}

func TestIsRetryableWithConnectionErrors(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	for _, errMsg := range []string{"connection reset", "connection refused", "no such host"} {
		if !provider.isRetryableError(errors.New(errMsg)) {
			t.Errorf("expected %q to be retryable", errMsg)
		}
	}
}
