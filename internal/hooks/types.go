// Package hooks provides the turn engine's lifecycle hook dispatch: a
// priority-ordered event bus that notifies registered handlers at the
// junctures named in SPEC_FULL.md §4.12 without letting them alter the
// turn result.
package hooks

import (
	"context"
	"time"
)

// EventType identifies one of the lifecycle junctures the turn engine
// emits an event at.
type EventType string

const (
	// EventSessionStart fires once, when a session is created or resumed.
	EventSessionStart EventType = "SessionStart"

	// EventUserPromptSubmit fires when the user submits a prompt, before
	// the turn engine begins building context for it.
	EventUserPromptSubmit EventType = "UserPromptSubmit"

	// EventPreToolUse fires before a tool call is dispatched. Handlers
	// may return an advisory message but cannot alter the call.
	EventPreToolUse EventType = "PreToolUse"

	// EventPostToolUse fires after a tool call returns, success or
	// failure.
	EventPostToolUse EventType = "PostToolUse"

	// EventSessionEnd fires once when the session terminates, carrying
	// a reason in Event.Reason.
	EventSessionEnd EventType = "SessionEnd"

	// EventTaskCompletion fires when a turn reaches a Final state with
	// no further tool calls pending.
	EventTaskCompletion EventType = "TaskCompletion"
)

// hookVersion is carried on every event so external handlers can version
// their expectations against the payload shape, per SPEC_FULL.md §4's
// lifecycle hook payload supplement.
const hookVersion = "1"

// Event is the payload delivered to a hook handler. Attributes beyond
// Type are populated only where relevant to that juncture; e.g. ToolName
// is empty for SessionStart.
type Event struct {
	// Type is the lifecycle juncture this event represents.
	Type EventType `json:"type"`

	// SessionID identifies the session the event belongs to.
	SessionID string `json:"session_id"`

	// WorkspacePath is the workspace root the session operates on.
	WorkspacePath string `json:"workspace_path,omitempty"`

	// TranscriptPath is the path to the session's transcript archive.
	TranscriptPath string `json:"transcript_path,omitempty"`

	// Reason explains a SessionEnd event (e.g. "user_exit", "fatal_error").
	Reason string `json:"reason,omitempty"`

	// ToolName, ToolInput, ToolOutput are populated for PreToolUse and
	// PostToolUse events. ToolOutput and ToolError are empty on
	// PreToolUse, since the tool has not run yet.
	ToolName   string `json:"tool_name,omitempty"`
	ToolInput  string `json:"tool_input,omitempty"`
	ToolOutput string `json:"tool_output,omitempty"`
	ToolError  string `json:"tool_error,omitempty"`

	// Prompt is the raw user input for a UserPromptSubmit event.
	Prompt string `json:"prompt,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// ElapsedMs is the time since SessionStart, in milliseconds.
	ElapsedMs int64 `json:"elapsed_ms"`

	// HookVersion lets handlers detect payload-shape changes.
	HookVersion string `json:"hook_version"`

	// Context holds any additional event-specific data.
	Context map[string]any `json:"context,omitempty"`
}

// Handler processes a lifecycle event. A handler may return an advisory
// error (logged and surfaced to the user) but cannot block or rewrite
// the turn result — the engine never waits on a handler's outcome.
type Handler func(ctx context.Context, event *Event) error

// Priority determines the order handlers are called in, lower first.
type Priority int

const (
	PriorityHighest Priority = 0
	PriorityHigh    Priority = 25
	PriorityNormal  Priority = 50
	PriorityLow     Priority = 75
	PriorityLowest  Priority = 100
)

// Registration represents a registered hook handler.
type Registration struct {
	ID       string
	EventKey string
	Handler  Handler
	Priority Priority
	Name     string
	Source   string
}

// NewEvent creates an event of the given type with Timestamp and
// HookVersion populated. started is the session's start time, used to
// derive ElapsedMs.
func NewEvent(eventType EventType, sessionID string, started time.Time) *Event {
	now := time.Now()
	elapsed := int64(0)
	if !started.IsZero() {
		elapsed = now.Sub(started).Milliseconds()
	}
	return &Event{
		Type:        eventType,
		SessionID:   sessionID,
		Timestamp:   now,
		ElapsedMs:   elapsed,
		HookVersion: hookVersion,
		Context:     make(map[string]any),
	}
}

// WithWorkspace sets the workspace and transcript paths.
func (e *Event) WithWorkspace(workspacePath, transcriptPath string) *Event {
	e.WorkspacePath = workspacePath
	e.TranscriptPath = transcriptPath
	return e
}

// WithTool sets the tool name/input/output/error fields.
func (e *Event) WithTool(name, input, output, errMsg string) *Event {
	e.ToolName = name
	e.ToolInput = input
	e.ToolOutput = output
	e.ToolError = errMsg
	return e
}

// WithPrompt sets the user prompt on a UserPromptSubmit event.
func (e *Event) WithPrompt(prompt string) *Event {
	e.Prompt = prompt
	return e
}

// WithReason sets the termination reason on a SessionEnd event.
func (e *Event) WithReason(reason string) *Event {
	e.Reason = reason
	return e
}

// WithContext adds context data to the event.
func (e *Event) WithContext(key string, value any) *Event {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
