package tape

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/vtcode/agent/internal/agent"
	"github.com/vtcode/agent/internal/providers"
	"github.com/vtcode/agent/pkg/models"
)

// Recorder wraps a provider and its tools to record every interaction to
// a Tape, for deterministic replay in tests.
type Recorder struct {
	provider providers.LLMProvider
	tape     *Tape
	mu       sync.Mutex
	turnIdx  int
}

// NewRecorder creates a new recorder wrapping the given provider.
func NewRecorder(provider providers.LLMProvider) *Recorder {
	tape := NewTape()
	tape.Metadata["provider"] = provider.Name()
	return &Recorder{provider: provider, tape: tape}
}

// WithModel sets the model in the tape metadata.
func (r *Recorder) WithModel(model string) *Recorder {
	r.tape.Model = model
	return r
}

// WithSystemPrompt sets the system prompt in the tape.
func (r *Recorder) WithSystemPrompt(system string) *Recorder {
	r.tape.SystemPrompt = system
	return r
}

// Complete implements providers.LLMProvider, recording the interaction.
func (r *Recorder) Complete(ctx context.Context, req *providers.LLMRequest) (<-chan *providers.LLMStreamEvent, error) {
	r.mu.Lock()
	turnIndex := r.turnIdx
	r.turnIdx++
	r.mu.Unlock()

	start := time.Now()
	upstream, err := r.provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan *providers.LLMStreamEvent, 10)

	go func() {
		defer close(out)

		turn := Turn{Index: turnIndex, Request: req}
		var text string
		var toolCalls []models.ToolCall

		for event := range upstream {
			turn.Events = append(turn.Events, *event)
			if event.TextDelta != "" {
				text += event.TextDelta
			}
			if event.ToolCall != nil {
				toolCalls = append(toolCalls, *event.ToolCall)
			}
			out <- event
		}

		turn.Text = text
		turn.ToolCalls = toolCalls
		turn.Duration = time.Since(start)
		if len(toolCalls) > 0 {
			turn.StopReason = "tool_use"
		} else {
			turn.StopReason = "end_turn"
		}

		r.mu.Lock()
		r.tape.AddTurn(turn)
		r.mu.Unlock()
	}()

	return out, nil
}

// Name implements providers.LLMProvider.
func (r *Recorder) Name() string { return "recorder:" + r.provider.Name() }

// Models implements providers.LLMProvider.
func (r *Recorder) Models() []providers.Model { return r.provider.Models() }

// Capabilities implements providers.LLMProvider.
func (r *Recorder) Capabilities(model string) providers.Capabilities {
	return r.provider.Capabilities(model)
}

// RecordToolRun records a tool execution against the current tape.
func (r *Recorder) RecordToolRun(turnIndex int, call models.ToolCall, result models.ToolResult, err error, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := ToolRun{TurnIndex: turnIndex, Call: call, Result: &result, Duration: duration}
	if err != nil {
		run.Error = err.Error()
	}
	r.tape.AddToolRun(run)
}

// Tape returns a snapshot of the recorded tape.
func (r *Recorder) Tape() *Tape {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tape.Clone()
}

// Reset clears the recording and starts fresh.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tape = NewTape()
	r.tape.Metadata["provider"] = r.provider.Name()
	r.turnIdx = 0
}

// RecordingTool wraps a tool to record its executions against a Recorder.
type RecordingTool struct {
	tool      agent.Tool
	recorder  *Recorder
	turnIndex int
}

// WrapTool creates a recording wrapper for a tool.
func (r *Recorder) WrapTool(tool agent.Tool, turnIndex int) *RecordingTool {
	return &RecordingTool{tool: tool, recorder: r, turnIndex: turnIndex}
}

func (t *RecordingTool) Name() string                  { return t.tool.Name() }
func (t *RecordingTool) Description() string           { return t.tool.Description() }
func (t *RecordingTool) Schema() json.RawMessage       { return t.tool.Schema() }
func (t *RecordingTool) Category() models.ToolCategory { return t.tool.Category() }
func (t *RecordingTool) Mutates() bool                 { return t.tool.Mutates() }
func (t *RecordingTool) ParallelSafe() bool            { return t.tool.ParallelSafe() }
func (t *RecordingTool) Priority() models.Priority     { return t.tool.Priority() }

// Execute implements agent.Tool, recording the outcome.
func (t *RecordingTool) Execute(ctx context.Context, params json.RawMessage) (models.ToolResult, error) {
	start := time.Now()
	result, err := t.tool.Execute(ctx, params)
	call := models.ToolCall{Name: t.tool.Name(), Arguments: params}
	t.recorder.RecordToolRun(t.turnIndex, call, result, err, time.Since(start))
	return result, err
}
