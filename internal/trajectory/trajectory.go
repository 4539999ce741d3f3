// Package trajectory implements the append-only decision log the turn
// engine writes to, grounded on the teacher's CacheTrace JSONL writer.
package trajectory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vtcode/agent/pkg/models"
)

// RouteRecord is a "route" trajectory line: which model served a turn.
type RouteRecord struct {
	Kind          string `json:"kind"`
	Turn          int    `json:"turn"`
	SelectedModel string `json:"selected_model"`
	Class         string `json:"class,omitempty"`
	InputPreview  string `json:"input_preview,omitempty"`
	Timestamp     int64  `json:"ts"`
}

// ToolRecord is a "tool" trajectory line: one tool invocation's outcome.
type ToolRecord struct {
	Kind      string          `json:"kind"`
	Turn      int             `json:"turn"`
	Name      string          `json:"name"`
	Args      json.RawMessage `json:"args,omitempty"`
	OK        bool            `json:"ok"`
	Timestamp int64           `json:"ts"`
}

// Logger appends JSONL records to the workspace trajectory file, one per
// line, flushing after every write so a crash mid-session never loses
// the last entry.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	turn int
}

// NewLogger opens (creating parent directories as needed) the trajectory
// file at path for appending.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Logger{file: f}, nil
}

// SetTurn updates the turn counter subsequent records are stamped with.
func (l *Logger) SetTurn(turn int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turn = turn
}

// RecordRoute appends a routing decision for the current turn.
func (l *Logger) RecordRoute(selectedModel, class, inputPreview string) error {
	l.mu.Lock()
	turn := l.turn
	l.mu.Unlock()
	return l.writeLine(RouteRecord{
		Kind:          "route",
		Turn:          turn,
		SelectedModel: selectedModel,
		Class:         class,
		InputPreview:  inputPreview,
		Timestamp:     time.Now().Unix(),
	})
}

// Record implements agent.DecisionRecorder, appending a tool-execution
// decision to the log in the §6 "tool" record shape.
func (l *Logger) Record(decision models.DecisionRecord) {
	l.mu.Lock()
	turn := l.turn
	l.mu.Unlock()
	args := json.RawMessage(`{}`)
	if decision.ArgsSummary != "" {
		args = json.RawMessage(`"` + decision.ArgsSummary + `"`)
	}
	_ = l.writeLine(ToolRecord{
		Kind:      "tool",
		Turn:      turn,
		Name:      decision.ToolName,
		Args:      args,
		OK:        decision.Outcome == models.OutcomeSuccess,
		Timestamp: decision.Timestamp.Unix(),
	})
}

func (l *Logger) writeLine(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')
	if _, err := l.file.Write(encoded); err != nil {
		return err
	}
	return l.file.Sync()
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
