// Package providers defines the vendor-neutral LLM provider contract and
// the per-vendor adapters (Anthropic, OpenAI, Bedrock, Google) that
// implement it.
package providers

import (
	"context"
	"encoding/json"

	"github.com/vtcode/agent/pkg/models"
)

// LLMProvider is implemented by each vendor adapter. Implementations must
// be safe for concurrent use: the turn engine may call Complete for
// different turns from different goroutines.
type LLMProvider interface {
	// Complete sends a request and returns a channel of streamed events.
	// The channel is closed when the stream ends or an error occurs.
	Complete(ctx context.Context, req *LLMRequest) (<-chan *LLMStreamEvent, error)

	// Name returns the provider's identifier (e.g. "anthropic").
	Name() string

	// Models lists the models this provider exposes.
	Models() []Model

	// Capabilities returns the capability set for model, consulting the
	// provider's own capability cache.
	Capabilities(model string) Capabilities
}

// ToolDefinition is the vendor-neutral shape of a tool the model may call.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// ToolChoice directs how the model should use the tools it was given.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// ReasoningEffort is the vendor-neutral reasoning-effort level, mapped to
// each provider's own parameter (Anthropic thinking budget, OpenAI
// reasoning_effort, ...).
type ReasoningEffort string

const (
	ReasoningOff    ReasoningEffort = ""
	ReasoningLow    ReasoningEffort = "low"
	ReasoningMedium ReasoningEffort = "medium"
	ReasoningHigh   ReasoningEffort = "high"
)

// LLMRequest is the vendor-neutral request shape the turn engine builds
// once per RequestingModel transition.
type LLMRequest struct {
	Model              string
	System             string
	Messages           []models.Message
	Tools              []ToolDefinition
	ToolChoice         ToolChoice
	MaxTokens          int
	Temperature        float64
	ReasoningEffort    ReasoningEffort
	Stream             bool
	StructuredSchema   json.RawMessage
	ParallelToolConfig *ParallelToolConfig

	// EnableThinking requests extended/reasoning output where the
	// provider supports it (Anthropic's thinking blocks, etc.).
	EnableThinking       bool
	ThinkingBudgetTokens int
}

// ParallelToolConfig controls whether/how many tool calls the model may
// emit in one turn.
type ParallelToolConfig struct {
	Enabled  bool
	MaxCalls int
}

// LLMStreamEvent is one unit streamed back from a provider. Exactly one
// of the payload fields is meaningful per event.
type LLMStreamEvent struct {
	TextDelta      string
	ReasoningDelta string
	ReasoningStart bool
	ReasoningEnd   bool
	ToolCall       *models.ToolCall
	Usage          *Usage
	Done           bool
	Err            *LLMError
}

// Usage reports token accounting for a completed request.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Model describes one model a provider exposes.
type Model struct {
	ID          string
	Name        string
	ContextSize int
}

// Capabilities is the capability set cached per (provider, model), per
// SPEC_FULL.md §4.6.
type Capabilities struct {
	Streaming                   bool
	Reasoning                   bool
	ReasoningEffort             bool
	Tools                       bool
	ParallelToolConfig          bool
	StructuredOutput            bool
	ContextCaching              bool
	Vision                      bool
	// ThinkingExcludesTemperature is Anthropic-specific: when thinking is
	// enabled, temperature must not also be set.
	ThinkingExcludesTemperature bool
}

// CapabilityCache memoizes Capabilities per (provider, model) pair so
// adapters don't recompute them on every request.
type CapabilityCache struct {
	entries map[string]Capabilities
}

// NewCapabilityCache creates an empty cache.
func NewCapabilityCache() *CapabilityCache {
	return &CapabilityCache{entries: make(map[string]Capabilities)}
}

func capabilityKey(provider, model string) string { return provider + "\x00" + model }

// Get returns the cached capabilities, if present.
func (c *CapabilityCache) Get(provider, model string) (Capabilities, bool) {
	cap, ok := c.entries[capabilityKey(provider, model)]
	return cap, ok
}

// Set stores capabilities for (provider, model).
func (c *CapabilityCache) Set(provider, model string, cap Capabilities) {
	c.entries[capabilityKey(provider, model)] = cap
}
