package context

import (
	agentctx "github.com/vtcode/agent/internal/agent/context"
	"github.com/vtcode/agent/pkg/models"
)

// Manager owns the three context-shrinking operations the turn engine
// applies, in escalating order of aggressiveness, before a request would
// otherwise exceed the model's window.
type Manager struct {
	window          *Window
	pruningSettings agentctx.ContextPruningSettings
}

// NewManager builds a Manager for modelID, applying pruning settings
// (nil means pruning-by-TTL is disabled and only hard limits apply).
func NewManager(modelID string, pruning *agentctx.ContextPruningSettings) *Manager {
	settings := agentctx.DefaultContextPruningSettings()
	if pruning != nil {
		settings = *pruning
	}
	return &Manager{window: NewWindowForModel(modelID), pruningSettings: settings}
}

// Window exposes the underlying token window, e.g. for diagnostics.
func (m *Manager) Window() *Window { return m.window }

// PruneToolResponses is SPEC_FULL.md §4.7's prune_tool_responses: it
// soft-trims or hard-clears tool result content outside the configured
// TTL/keep window, without dropping any message wholesale.
func (m *Manager) PruneToolResponses(messages []*models.Message) []*models.Message {
	return agentctx.PruneContextMessages(messages, m.pruningSettings, m.window.totalTokens*4)
}

// EnforceContextWindow is enforce_context_window: it packs history
// against the model's token budget using the teacher-derived packer,
// dropping or summarizing the oldest non-pinned messages as needed so
// the result fits within the window.
func (m *Manager) EnforceContextWindow(history []*models.Message, incoming, summary *models.Message) ([]*models.Message, error) {
	opts := agentctx.DefaultPackOptions()
	opts.MaxChars = m.window.Remaining() * 4
	packer := agentctx.NewPacker(opts)
	return packer.Pack(history, incoming, summary)
}

// AggressiveTrim is aggressive_trim: the last resort when even a packed
// history still doesn't fit. It keeps only the system/summary messages,
// the single most recent user message, and drops everything else,
// matching the teacher's behavior of favoring availability over
// completeness when a request would otherwise be rejected outright.
func AggressiveTrim(messages []*models.Message) []*models.Message {
	var kept []*models.Message
	var lastUser *models.Message
	for _, m := range messages {
		if m == nil {
			continue
		}
		switch m.Role {
		case models.RoleSystem:
			kept = append(kept, m)
		case models.RoleUser:
			lastUser = m
		}
	}
	if lastUser != nil {
		kept = append(kept, lastUser)
	}
	return kept
}
