package session

import (
	"testing"
	"time"

	"github.com/vtcode/agent/pkg/models"
)

func TestCtrlCFirstPressCancelsOnly(t *testing.T) {
	var c CtrlC
	cancelled, exit := c.Signal()
	if !cancelled {
		t.Fatal("expected first press to request cancellation")
	}
	if exit {
		t.Fatal("first press must not arm exit")
	}
}

func TestCtrlCSecondPressEscalates(t *testing.T) {
	var c CtrlC
	c.Signal()
	time.Sleep(debounceWindow + 10*time.Millisecond)
	cancelled, exit := c.Signal()
	if !cancelled || !exit {
		t.Fatalf("expected second press within escalation window to arm exit, got cancelled=%v exit=%v", cancelled, exit)
	}
}

func TestCtrlCDebouncesRapidRepeats(t *testing.T) {
	var c CtrlC
	c.Signal()
	cancelled, exit := c.Signal()
	if exit {
		t.Fatal("a repeat within the debounce window must not escalate")
	}
	_ = cancelled
}

func TestCtrlCResetClearsCancellation(t *testing.T) {
	var c CtrlC
	c.Signal()
	c.Reset()
	if c.CancelRequested() {
		t.Fatal("Reset should clear the cancellation flag")
	}
}

func TestStateAppendAndSnapshot(t *testing.T) {
	s := New("sess-1")
	s.Append(&models.Message{Content: "hello"})
	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Content != "hello" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestStateModeRoundTrip(t *testing.T) {
	s := New("sess-2")
	if s.GetMode() != models.ModeAgent {
		t.Fatalf("expected default mode agent, got %v", s.GetMode())
	}
	s.SetMode(models.ModePlan)
	if s.GetMode() != models.ModePlan {
		t.Fatalf("expected mode plan after SetMode")
	}
}

func TestStateQueueFIFO(t *testing.T) {
	s := New("sess-3")
	s.EnqueueInput("first")
	s.EnqueueInput("second")
	got, ok := s.DequeueInput()
	if !ok || got != "first" {
		t.Fatalf("expected first queued input, got %q ok=%v", got, ok)
	}
	got, ok = s.DequeueInput()
	if !ok || got != "second" {
		t.Fatalf("expected second queued input, got %q ok=%v", got, ok)
	}
	if _, ok := s.DequeueInput(); ok {
		t.Fatal("expected queue to be empty")
	}
}

func TestStateNextTurnIncrements(t *testing.T) {
	s := New("sess-4")
	if s.NextTurn() != 1 || s.NextTurn() != 2 {
		t.Fatal("expected turn counter to increment monotonically")
	}
}
