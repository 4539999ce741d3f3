// Package session owns the per-conversation state the turn engine reads
// and mutates: history, editing mode, and Ctrl-C cancellation signaling.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vtcode/agent/pkg/models"
)

const (
	// debounceWindow discards a second Ctrl-C within this long of the
	// first as key-repeat noise rather than a deliberate second press.
	debounceWindow = 200 * time.Millisecond
	// escalateWindow is how long after the first Ctrl-C a second press
	// escalates from "cancel the turn" to "exit the process".
	escalateWindow = 2 * time.Second
)

// CtrlC tracks the two-atomics signal state from SPEC_FULL.md §4.9's
// cancellation design: a first press cancels the in-flight turn, a
// second press within the escalation window arms process exit.
type CtrlC struct {
	cancelReq    atomic.Bool
	exitArmed    atomic.Bool
	mu           sync.Mutex
	lastSignal   time.Time
}

// Signal records one Ctrl-C press and reports the resulting action.
func (c *CtrlC) Signal() (cancelled, exit bool) {
	now := time.Now()
	c.mu.Lock()
	since := now.Sub(c.lastSignal)
	debounced := c.lastSignal.IsZero() == false && since < debounceWindow
	armedEscalation := c.lastSignal.IsZero() == false && since < escalateWindow
	c.lastSignal = now
	c.mu.Unlock()

	if debounced {
		return c.cancelReq.Load(), c.exitArmed.Load()
	}

	if armedEscalation && c.cancelReq.Load() {
		c.exitArmed.Store(true)
		return true, true
	}

	c.cancelReq.Store(true)
	return true, false
}

// CancelRequested reports whether a cancellation is currently pending.
func (c *CtrlC) CancelRequested() bool { return c.cancelReq.Load() }

// ExitArmed reports whether the session loop should exit after teardown.
func (c *CtrlC) ExitArmed() bool { return c.exitArmed.Load() }

// Reset clears cancellation state at the start of a new turn.
func (c *CtrlC) Reset() {
	c.cancelReq.Store(false)
}

// State is the mutable state of one conversation, per spec.md's
// SessionState entity.
type State struct {
	mu sync.Mutex

	ID          string
	History     []*models.Message
	ToolsUsed   map[string]struct{}
	Mode        models.EditingMode
	CtrlC       CtrlC
	Queued      []string
	TurnCount   int
	ToolCalls   int
}

// New creates an empty session in agent mode.
func New(id string) *State {
	return &State{
		ID:        id,
		Mode:      models.ModeAgent,
		ToolsUsed: make(map[string]struct{}),
	}
}

// Append adds a message to history. Messages are immutable once
// appended: callers must not mutate a *models.Message after this call.
func (s *State) Append(msg *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, msg)
}

// Snapshot returns a copy of the current history slice header (not a
// deep copy of the messages themselves, which are treated as immutable).
func (s *State) Snapshot() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Message, len(s.History))
	copy(out, s.History)
	return out
}

// MarkToolUsed records that a tool has been invoked at least once in
// this session.
func (s *State) MarkToolUsed(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ToolsUsed[name] = struct{}{}
	s.ToolCalls++
}

// SetMode changes the session's editing mode.
func (s *State) SetMode(mode models.EditingMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mode = mode
}

// GetMode returns the session's current editing mode.
func (s *State) GetMode() models.EditingMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Mode
}

// EnqueueInput queues a user input submitted while a turn is in flight.
func (s *State) EnqueueInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queued = append(s.Queued, text)
}

// DequeueInput pops the oldest queued input, if any.
func (s *State) DequeueInput() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Queued) == 0 {
		return "", false
	}
	text := s.Queued[0]
	s.Queued = s.Queued[1:]
	return text, true
}

// NextTurn increments and returns the turn counter.
func (s *State) NextTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TurnCount++
	return s.TurnCount
}
