package providers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/vtcode/agent/internal/providers"
	"github.com/vtcode/agent/pkg/models"
)

// weatherTool is an example tool definition used across these examples.
var weatherToolDef = providers.ToolDefinition{
	Name:        "get_weather",
	Description: "Get the current weather for a given city",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"city": {
				"type": "string",
				"description": "The city name"
			}
		},
		"required": ["city"]
	}`),
}

func executeWeatherTool(params json.RawMessage) models.ToolResult {
	var input struct {
		City string `json:"city"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return models.ToolResult{Content: "Invalid input", IsError: true}
	}

	return models.ToolResult{Content: fmt.Sprintf("The weather in %s is sunny and 72F", input.City)}
}

// Example demonstrates basic usage of the Anthropic provider
func Example_basicUsage() {
	provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey:       "sk-ant-api03-...", // Your API key
		DefaultModel: "claude-sonnet-4-20250514",
	})
	if err != nil {
		log.Fatal(err)
	}

	req := &providers.LLMRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "Hello! How are you today?"},
		},
		MaxTokens: 1024,
	}

	ctx := context.Background()
	events, err := provider.Complete(ctx, req)
	if err != nil {
		log.Fatal(err)
	}

	for event := range events {
		if event.Err != nil {
			log.Printf("Error: %v", event.Err)
			continue
		}

		if event.TextDelta != "" {
			fmt.Print(event.TextDelta)
		}

		if event.Done {
			fmt.Println("\n[Done]")
		}
	}
}

// Example demonstrates using the provider with tools (function calling)
func Example_withTools() {
	provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey: "sk-ant-api03-...", // Your API key
	})
	if err != nil {
		log.Fatal(err)
	}

	req := &providers.LLMRequest{
		System: "You are a helpful weather assistant.",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "What's the weather like in San Francisco?"},
		},
		Tools:     []providers.ToolDefinition{weatherToolDef},
		MaxTokens: 1024,
	}

	ctx := context.Background()
	events, err := provider.Complete(ctx, req)
	if err != nil {
		log.Fatal(err)
	}

	for event := range events {
		if event.Err != nil {
			log.Printf("Error: %v", event.Err)
			continue
		}

		if event.TextDelta != "" {
			fmt.Print(event.TextDelta)
		}

		if event.ToolCall != nil {
			fmt.Printf("\n[Tool Call: %s]\n", event.ToolCall.Name)

			result := executeWeatherTool(event.ToolCall.Arguments)
			fmt.Printf("Tool Result: %s\n", result.Content)
		}

		if event.Done {
			fmt.Println("\n[Done]")
		}
	}
}

// Example demonstrates handling different Claude models
func Example_multipleModels() {
	provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey: "sk-ant-api03-...",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Available Claude models:")
	for _, model := range provider.Models() {
		fmt.Printf("- %s: %s (context: %d tokens)\n", model.ID, model.Name, model.ContextSize)
	}

	tasks := []struct {
		name  string
		model string
		task  string
	}{
		{"Fast", "claude-3-haiku-20240307", "Quick question answering"},
		{"Balanced", "claude-sonnet-4-20250514", "General purpose tasks"},
		{"Advanced", "claude-opus-4-20250514", "Complex reasoning"},
	}

	for _, m := range tasks {
		fmt.Printf("\n%s model (%s) for: %s\n", m.name, m.model, m.task)
	}
}

// Example demonstrates error handling and retries
func Example_errorHandling() {
	provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey:     "sk-ant-api03-...",
		MaxRetries: 3,
	})
	if err != nil {
		log.Fatal(err)
	}

	req := &providers.LLMRequest{
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "Hello!"},
		},
		MaxTokens: 100,
	}

	ctx := context.Background()
	events, err := provider.Complete(ctx, req)
	if err != nil {
		log.Fatal(err)
	}

	for event := range events {
		if event.Err != nil {
			fmt.Printf("Error occurred: %v\n", event.Err)
			continue
		}

		if event.TextDelta != "" {
			fmt.Print(event.TextDelta)
		}
	}
}

// Example demonstrates system prompts and configuration
func Example_systemPrompt() {
	provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey: "sk-ant-api03-...",
	})
	if err != nil {
		log.Fatal(err)
	}

	req := &providers.LLMRequest{
		System: `You are a helpful programming assistant. You provide clear,
concise code examples and explanations. Always format code with proper syntax highlighting.`,
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "How do I create a HTTP server in Go?"},
		},
		MaxTokens: 2048,
	}

	ctx := context.Background()
	events, err := provider.Complete(ctx, req)
	if err != nil {
		log.Fatal(err)
	}

	for event := range events {
		if event.Err != nil {
			log.Printf("Error: %v", event.Err)
			continue
		}

		if event.TextDelta != "" {
			fmt.Print(event.TextDelta)
		}
	}
}
