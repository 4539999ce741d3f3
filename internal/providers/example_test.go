package providers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/vtcode/agent/internal/providers"
	"github.com/vtcode/agent/pkg/models"
)

// Example of basic usage with text completion
func ExampleOpenAIProvider_basicCompletion() {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}

	provider := providers.NewOpenAIProvider(apiKey)

	req := &providers.LLMRequest{
		Model:  "gpt-3.5-turbo",
		System: "You are a helpful assistant.",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "Say hello in 3 words"},
		},
		MaxTokens: 50,
	}

	events, err := provider.Complete(context.Background(), req)
	if err != nil {
		log.Fatal(err)
	}

	for event := range events {
		if event.Err != nil {
			log.Printf("Error: %v", event.Err)
			break
		}

		if event.TextDelta != "" {
			fmt.Print(event.TextDelta)
		}

		if event.Done {
			break
		}
	}
}

// exampleWeatherTool is an example tool definition used for function-calling examples.
var exampleWeatherTool = providers.ToolDefinition{
	Name:        "get_weather",
	Description: "Get the current weather for a location",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"location": {
				"type": "string",
				"description": "The city name, e.g., 'San Francisco'"
			},
			"unit": {
				"type": "string",
				"enum": ["celsius", "fahrenheit"],
				"description": "Temperature unit"
			}
		},
		"required": ["location"]
	}`),
}

// Example of function calling
func ExampleOpenAIProvider_functionCalling() {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}

	provider := providers.NewOpenAIProvider(apiKey)

	req := &providers.LLMRequest{
		Model: "gpt-4o",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "What's the weather in San Francisco?"},
		},
		Tools:     []providers.ToolDefinition{exampleWeatherTool},
		MaxTokens: 500,
	}

	events, err := provider.Complete(context.Background(), req)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Conversation:")
	for event := range events {
		if event.Err != nil {
			log.Printf("Error: %v", event.Err)
			break
		}

		if event.TextDelta != "" {
			fmt.Print(event.TextDelta)
		}

		if event.ToolCall != nil {
			fmt.Printf("\n[Tool Call: %s]\n", event.ToolCall.Name)
			fmt.Printf("Arguments: %s\n", string(event.ToolCall.Arguments))

			// In a real application, you would execute the tool
			// and send the result back to continue the conversation
		}

		if event.Done {
			fmt.Println()
			break
		}
	}
}

// Example of listing available models
func ExampleOpenAIProvider_listModels() {
	provider := providers.NewOpenAIProvider("")

	fmt.Println("Available OpenAI models:")
	for _, model := range provider.Models() {
		fmt.Printf("- %s: %s (context: %dK)\n", model.ID, model.Name, model.ContextSize/1000)
	}
}
