// Package tape provides recording and replay capabilities for turn-engine
// conversations, so the agentic loop can be exercised in tests without
// making real LLM API calls.
package tape

import (
	"encoding/json"
	"time"

	"github.com/vtcode/agent/internal/providers"
	"github.com/vtcode/agent/pkg/models"
)

// Tape records a complete conversation with a provider.
type Tape struct {
	Version      string         `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	Model        string         `json:"model,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Turns        []Turn         `json:"turns"`
	ToolRuns     []ToolRun      `json:"tool_runs"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Turn represents a single LLM turn (request + streamed response).
type Turn struct {
	Index      int                       `json:"index"`
	Request    *providers.LLMRequest     `json:"request"`
	Events     []providers.LLMStreamEvent `json:"events"`
	ToolCalls  []models.ToolCall         `json:"tool_calls,omitempty"`
	Text       string                    `json:"text,omitempty"`
	StopReason string                    `json:"stop_reason,omitempty"`
	Duration   time.Duration             `json:"duration"`
}

// ToolRun represents a single tool execution.
type ToolRun struct {
	TurnIndex int               `json:"turn_index"`
	Call      models.ToolCall   `json:"call"`
	Result    *models.ToolResult `json:"result"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// NewTape creates a new empty tape.
func NewTape() *Tape {
	return &Tape{
		Version:   "1.0",
		CreatedAt: time.Now(),
		Turns:     []Turn{},
		ToolRuns:  []ToolRun{},
		Metadata:  make(map[string]any),
	}
}

// AddTurn adds a turn to the tape.
func (t *Tape) AddTurn(turn Turn) {
	turn.Index = len(t.Turns)
	t.Turns = append(t.Turns, turn)
}

// AddToolRun adds a tool run to the tape.
func (t *Tape) AddToolRun(run ToolRun) {
	t.ToolRuns = append(t.ToolRuns, run)
}

// GetTurn returns the turn at the given index.
func (t *Tape) GetTurn(index int) (*Turn, bool) {
	if index < 0 || index >= len(t.Turns) {
		return nil, false
	}
	return &t.Turns[index], true
}

// GetToolRuns returns all tool runs for a given turn.
func (t *Tape) GetToolRuns(turnIndex int) []ToolRun {
	var runs []ToolRun
	for _, run := range t.ToolRuns {
		if run.TurnIndex == turnIndex {
			runs = append(runs, run)
		}
	}
	return runs
}

// TotalTurns returns the number of turns in the tape.
func (t *Tape) TotalTurns() int { return len(t.Turns) }

// TotalToolRuns returns the number of tool runs in the tape.
func (t *Tape) TotalToolRuns() int { return len(t.ToolRuns) }

// Marshal serializes the tape to JSON.
func (t *Tape) Marshal() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// Unmarshal deserializes a tape from JSON.
func Unmarshal(data []byte) (*Tape, error) {
	var tape Tape
	if err := json.Unmarshal(data, &tape); err != nil {
		return nil, err
	}
	return &tape, nil
}

// Clone creates a deep copy of the tape.
func (t *Tape) Clone() *Tape {
	data, err := t.Marshal()
	if err == nil {
		if clone, err := Unmarshal(data); err == nil {
			return clone
		}
	}
	clone := *t
	if t.Metadata != nil {
		clone.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			clone.Metadata[k] = v
		}
	}
	clone.Turns = append([]Turn(nil), t.Turns...)
	clone.ToolRuns = append([]ToolRun(nil), t.ToolRuns...)
	return &clone
}

// Summary returns a brief summary of the tape contents.
func (t *Tape) Summary() TapeSummary {
	var totalEvents, totalText int
	for _, turn := range t.Turns {
		totalEvents += len(turn.Events)
		totalText += len(turn.Text)
	}
	return TapeSummary{
		Version:      t.Version,
		CreatedAt:    t.CreatedAt,
		Model:        t.Model,
		TurnCount:    len(t.Turns),
		ToolRunCount: len(t.ToolRuns),
		TotalEvents:  totalEvents,
		TotalTextLen: totalText,
	}
}

// TapeSummary is a brief overview of a tape.
type TapeSummary struct {
	Version      string    `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	Model        string    `json:"model,omitempty"`
	TurnCount    int       `json:"turn_count"`
	ToolRunCount int       `json:"tool_run_count"`
	TotalEvents  int       `json:"total_events"`
	TotalTextLen int       `json:"total_text_len"`
}
