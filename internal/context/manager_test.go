package context

import (
	"testing"

	"github.com/vtcode/agent/pkg/models"
)

func TestNewManagerUsesModelWindow(t *testing.T) {
	m := NewManager("claude-sonnet-4-20250514", nil)
	if m.Window().Remaining() <= 0 {
		t.Fatal("expected a positive remaining window for a known model")
	}
}

func TestAggressiveTrimKeepsSystemAndLastUser(t *testing.T) {
	messages := []*models.Message{
		{Role: models.RoleSystem, Content: "system prompt"},
		{Role: models.RoleUser, Content: "first question"},
		{Role: models.RoleAssistant, Content: "first answer"},
		{Role: models.RoleTool, Content: "tool output"},
		{Role: models.RoleUser, Content: "latest question"},
	}

	kept := AggressiveTrim(messages)

	if len(kept) != 2 {
		t.Fatalf("expected system + latest user message only, got %d: %+v", len(kept), kept)
	}
	if kept[0].Role != models.RoleSystem {
		t.Fatalf("expected first kept message to be system, got %v", kept[0].Role)
	}
	if kept[1].Content != "latest question" {
		t.Fatalf("expected last kept message to be the latest user message, got %q", kept[1].Content)
	}
}

func TestAggressiveTrimWithNoUserMessage(t *testing.T) {
	messages := []*models.Message{
		{Role: models.RoleSystem, Content: "system prompt"},
		{Role: models.RoleAssistant, Content: "stray reply"},
	}
	kept := AggressiveTrim(messages)
	if len(kept) != 1 || kept[0].Role != models.RoleSystem {
		t.Fatalf("expected only the system message kept, got %+v", kept)
	}
}

func TestManagerEnforceContextWindowFitsBudget(t *testing.T) {
	m := NewManager("claude-sonnet-4-20250514", nil)
	history := []*models.Message{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi there"},
	}
	incoming := &models.Message{Role: models.RoleUser, Content: "what's next?"}

	packed, err := m.EnforceContextWindow(history, incoming, nil)
	if err != nil {
		t.Fatalf("unexpected error packing history: %v", err)
	}
	if len(packed) == 0 {
		t.Fatal("expected packed history to include at least the incoming message")
	}
}
