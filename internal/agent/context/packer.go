// Package context provides context management for agent conversations.
//
// This package handles:
//   - Context packing: selecting which messages to include in LLM requests
//   - Rolling summaries: compressing old history into summaries
//   - Budget management: staying within token/char limits
package context

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/vtcode/agent/pkg/models"
)

// PackOptions configures how messages are packed into context.
type PackOptions struct {
	// MaxMessages is the hard cap on number of messages to include (e.g. 60).
	MaxMessages int

	// MaxChars is the approximate character budget (cheap proxy for tokens).
	// Default: 30000 (~7500 tokens at 4 chars/token).
	MaxChars int

	// MaxToolResultChars is the max chars per tool result content.
	// Longer results are truncated. Default: 6000.
	MaxToolResultChars int

	// IncludeSummary controls whether to include the rolling summary.
	IncludeSummary bool

	// SummaryMetadataKey is the metadata key marking summary messages.
	// Default: "nexus_summary".
	SummaryMetadataKey string
}

// DefaultPackOptions returns sensible defaults for context packing.
func DefaultPackOptions() PackOptions {
	return PackOptions{
		MaxMessages:        60,
		MaxChars:           30000,
		MaxToolResultChars: 6000,
		IncludeSummary:     true,
		SummaryMetadataKey: SummaryMetadataKey,
	}
}

// Packer selects and prepares messages for LLM context.
type Packer struct {
	opts PackOptions
}

// NewPacker creates a new context packer with the given options.
func NewPacker(opts PackOptions) *Packer {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 60
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 30000
	}
	if opts.MaxToolResultChars <= 0 {
		opts.MaxToolResultChars = 6000
	}
	if opts.SummaryMetadataKey == "" {
		opts.SummaryMetadataKey = SummaryMetadataKey
	}
	return &Packer{opts: opts}
}

// Pack selects messages from history to fit within budget.
//
// The packed result includes (in order):
//  1. Summary message (if IncludeSummary and summary exists)
//  2. Recent messages from history (newest first, up to budget)
//  3. The incoming user message
//
// Tool result content is truncated to MaxToolResultChars.
// Messages are selected from the end (most recent) backwards until
// either MaxMessages or MaxChars is reached.
func (p *Packer) Pack(history []*models.Message, incoming *models.Message, summary *models.Message) ([]*models.Message, error) {
	var result []*models.Message

	// Track budget
	totalChars := 0
	totalMsgs := 0

	// Reserve space for incoming message (only if present)
	if incoming != nil {
		incomingChars := p.messageChars(incoming)
		totalChars += incomingChars
		totalMsgs++
	}

	// Reserve space for summary if present and enabled
	if p.opts.IncludeSummary && summary != nil {
		summaryChars := p.messageChars(summary)
		totalChars += summaryChars
		totalMsgs++
	}

	// Filter out summary messages from history (they're handled separately)
	filtered := make([]*models.Message, 0, len(history))
	for _, m := range history {
		if m == nil {
			continue
		}
		if p.isSummaryMessage(m) {
			continue
		}
		filtered = append(filtered, m)
	}

	// Select messages from the end (most recent) backwards
	// Build in reverse order, then reverse once (O(n) instead of O(n²))
	selectedReverse := make([]*models.Message, 0)
	for i := len(filtered) - 1; i >= 0; i-- {
		m := filtered[i]
		msgChars := p.messageChars(m)

		// Check if we'd exceed budget
		if totalMsgs+1 > p.opts.MaxMessages {
			break
		}
		if totalChars+msgChars > p.opts.MaxChars {
			break
		}

		selectedReverse = append(selectedReverse, m)
		totalMsgs++
		totalChars += msgChars
	}

	// Reverse selectedReverse to get chronological order
	selected := make([]*models.Message, len(selectedReverse))
	for i, m := range selectedReverse {
		selected[len(selectedReverse)-1-i] = m
	}

	// Build final result in order
	// 1. Summary (if present and enabled)
	if p.opts.IncludeSummary && summary != nil {
		result = append(result, summary)
	}

	// 2. Selected history messages (now in chronological order)
	for _, m := range selected {
		// Truncate tool results if needed
		packed := p.truncateToolResults(m)
		result = append(result, packed)
	}

	// 3. Incoming message
	if incoming != nil {
		result = append(result, incoming)
	}

	return result, nil
}

// messageChars estimates the character count for a message.
func (p *Packer) messageChars(m *models.Message) int {
	if m == nil {
		return 0
	}
	chars := len(m.Content)
	for _, tc := range m.ToolCalls {
		chars += len(tc.Name) + len(tc.Arguments)
	}
	return chars
}

// isSummaryMessage checks if a message is a summary marker.
func (p *Packer) isSummaryMessage(m *models.Message) bool {
	if m.Metadata == nil {
		return false
	}
	val, ok := m.Metadata[p.opts.SummaryMetadataKey]
	if !ok {
		return false
	}
	if b, ok := val.(bool); ok {
		return b
	}
	return false
}

// truncateToolResults returns a copy with truncated content if m is a
// standalone tool-response message (RoleTool) whose content exceeds the
// per-result budget.
func (p *Packer) truncateToolResults(m *models.Message) *models.Message {
	if m.Role != models.RoleTool || len(m.Content) <= p.opts.MaxToolResultChars {
		return m
	}
	truncated := *m
	truncated.Content = m.Content[:p.opts.MaxToolResultChars] + "\n...[truncated]"
	return &truncated
}

// PackResult is the output of PackWithDiagnostics: the packed messages plus
// a record of every candidate considered and why it was kept or dropped.
type PackResult struct {
	Packed      []*models.Message
	Diagnostics *models.ContextEventPayload
}

// packCandidate pairs a history message with the inclusion decision made
// for it while walking the budget backwards from the newest message.
type packCandidate struct {
	msg      *models.Message
	included bool
	reason   models.ContextPackReason
}

// PackWithDiagnostics runs the same selection as Pack but also returns a
// ContextEventPayload describing every candidate considered: its kind,
// size, and whether (and why) it was included.
func (p *Packer) PackWithDiagnostics(history []*models.Message, incoming *models.Message, summary *models.Message) *PackResult {
	diag := &models.ContextEventPayload{
		BudgetChars:    p.opts.MaxChars,
		BudgetMessages: p.opts.MaxMessages,
	}

	totalChars := 0
	totalMsgs := 0

	if incoming != nil {
		totalChars += p.messageChars(incoming)
		totalMsgs++
	}

	hasSummary := p.opts.IncludeSummary && summary != nil
	if hasSummary {
		summaryChars := p.messageChars(summary)
		totalChars += summaryChars
		totalMsgs++
		diag.SummaryUsed = true
		diag.SummaryChars = summaryChars
	}

	filtered := make([]*models.Message, 0, len(history))
	for _, m := range history {
		if m == nil {
			continue
		}
		if p.isSummaryMessage(m) {
			continue
		}
		filtered = append(filtered, m)
	}
	diag.Candidates = len(filtered)

	// Walk from newest to oldest, same as Pack, recording a decision for
	// every candidate (not just the ones that fit).
	decisionsReverse := make([]packCandidate, 0, len(filtered))
	selectedReverse := make([]*models.Message, 0, len(filtered))
	for i := len(filtered) - 1; i >= 0; i-- {
		m := filtered[i]
		msgChars := p.messageChars(m)

		if totalMsgs+1 > p.opts.MaxMessages || totalChars+msgChars > p.opts.MaxChars {
			decisionsReverse = append(decisionsReverse, packCandidate{m, false, models.ContextReasonOverBudget})
			continue
		}

		selectedReverse = append(selectedReverse, m)
		decisionsReverse = append(decisionsReverse, packCandidate{m, true, models.ContextReasonIncluded})
		totalMsgs++
		totalChars += msgChars
	}

	decisions := make([]packCandidate, len(decisionsReverse))
	for i, d := range decisionsReverse {
		decisions[len(decisionsReverse)-1-i] = d
	}

	selected := make([]*models.Message, len(selectedReverse))
	for i, m := range selectedReverse {
		selected[len(selectedReverse)-1-i] = m
	}

	var packed []*models.Message
	var items []models.ContextPackItem

	if hasSummary {
		packed = append(packed, summary)
		items = append(items, models.ContextPackItem{
			ID:       hashMessageID(summary),
			Kind:     models.ContextItemSummary,
			Chars:    p.messageChars(summary),
			Included: true,
			Reason:   models.ContextReasonReserved,
		})
	}

	for _, d := range decisions {
		items = append(items, models.ContextPackItem{
			ID:       hashMessageID(d.msg),
			Kind:     classifyItemKind(d.msg),
			Chars:    p.messageChars(d.msg),
			Included: d.included,
			Reason:   d.reason,
		})
	}

	for _, m := range selected {
		packed = append(packed, p.truncateToolResults(m))
	}

	if incoming != nil {
		packed = append(packed, incoming)
		items = append(items, models.ContextPackItem{
			ID:       hashMessageID(incoming),
			Kind:     models.ContextItemIncoming,
			Chars:    p.messageChars(incoming),
			Included: true,
			Reason:   models.ContextReasonIncluded,
		})
	}

	diag.Included = len(selected)
	diag.Dropped = diag.Candidates - len(selected)
	diag.UsedChars = totalChars
	diag.UsedMessages = totalMsgs
	diag.Items = items

	return &PackResult{Packed: packed, Diagnostics: diag}
}

// classifyItemKind maps a history message onto the coarse item kinds used
// in pack diagnostics.
func classifyItemKind(m *models.Message) models.ContextItemKind {
	if m == nil {
		return models.ContextItemHistory
	}
	switch m.Role {
	case models.RoleTool:
		return models.ContextItemTool
	case models.RoleAssistant:
		if len(m.ToolCalls) > 0 {
			return models.ContextItemTool
		}
		return models.ContextItemHistory
	case models.RoleSystem:
		return models.ContextItemSystem
	default:
		return models.ContextItemHistory
	}
}

// hashMessageID derives a short, stable identifier for a message so
// diagnostics can reference it without leaking full content.
func hashMessageID(m *models.Message) string {
	if m == nil {
		return ""
	}
	sum := sha256.Sum256([]byte(m.ID + string(m.Role) + m.Content))
	return hex.EncodeToString(sum[:])[:12]
}
