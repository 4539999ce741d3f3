package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	vtcontext "github.com/vtcode/agent/internal/context"
	"github.com/vtcode/agent/internal/hooks"
	"github.com/vtcode/agent/internal/providers"
	"github.com/vtcode/agent/internal/session"
	"github.com/vtcode/agent/pkg/models"
)

// EngineConfig bounds a Turn Engine's loop protection and retry policy,
// per SPEC_FULL.md §4.9.
type EngineConfig struct {
	MaxToolLoops         int
	MaxRepeatedToolCalls int
	RetryBase            time.Duration
	RetryMultiplier      float64
	RetryCap             time.Duration
	MaxRetries           int
}

// DefaultEngineConfig returns the spec's stated defaults: 2s base
// backoff, 2x multiplier, 30s cap.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxToolLoops:         25,
		MaxRepeatedToolCalls: 3,
		RetryBase:            2 * time.Second,
		RetryMultiplier:      2,
		RetryCap:             30 * time.Second,
		MaxRetries:           3,
	}
}

// TrajectoryRecorder is implemented by the trajectory logger; kept as an
// interface here so the engine doesn't import the concrete package.
type TrajectoryRecorder interface {
	RecordRoute(selectedModel, class, inputPreview string) error
	SetTurn(turn int)
}

// Engine drives one session through the turn state machine described in
// SPEC_FULL.md §4.9. It owns no UI concerns: callers consume TextDelta
// events from the returned channel.
type Engine struct {
	provider   providers.LLMProvider
	registry   *ToolRegistry
	curator    *vtcontext.Curator
	ctxManager *vtcontext.Manager
	hooksBus   *hooks.Registry
	trajectory TrajectoryRecorder
	cfg        EngineConfig
	model      string
}

// NewEngine builds a Turn Engine. hooksBus and trajectory may be nil.
func NewEngine(
	provider providers.LLMProvider,
	registry *ToolRegistry,
	curator *vtcontext.Curator,
	ctxManager *vtcontext.Manager,
	hooksBus *hooks.Registry,
	trajectory TrajectoryRecorder,
	model string,
	cfg EngineConfig,
) *Engine {
	return &Engine{
		provider:   provider,
		registry:   registry,
		curator:    curator,
		ctxManager: ctxManager,
		hooksBus:   hooksBus,
		trajectory: trajectory,
		model:      model,
		cfg:        cfg,
	}
}

// TurnEvent is one unit of turn output surfaced to the UI layer: a text
// delta, a tool-dispatch notice, or the final state.
type TurnEvent struct {
	TextDelta string
	State     TurnState
	Err       error
	Final     *models.Message
}

// Run drives a single user turn to completion (or cancellation),
// returning the state machine's final state. sess.CtrlC.CancelRequested
// is polled between steps; an in-flight stream is abandoned if it trips
// mid-stream.
func (e *Engine) Run(ctx context.Context, sess *session.State, userInput string, events chan<- TurnEvent) (TurnState, error) {
	turn := sess.NextTurn()
	sess.CtrlC.Reset()
	if e.trajectory != nil {
		e.trajectory.SetTurn(turn)
	}

	if e.hooksBus != nil {
		_ = e.hooksBus.Trigger(ctx, hooks.NewEvent(hooks.EventUserPromptSubmit, sess.ID, time.Now()).WithPrompt(userInput))
	}

	userMsg := &models.Message{SessionID: sess.ID, Role: models.RoleUser, Content: userInput, CreatedAt: time.Now()}
	sess.Append(userMsg)

	state := StateBuildingContext
	repeatedCalls := make(map[string]int)

	for loop := 0; ; loop++ {
		if sess.CtrlC.CancelRequested() {
			events <- TurnEvent{State: StateCancelled}
			return StateCancelled, nil
		}
		if loop > e.cfg.MaxToolLoops {
			warn := &models.Message{SessionID: sess.ID, Role: models.RoleAssistant, Content: "tool-loop limit exceeded", CreatedAt: time.Now()}
			sess.Append(warn)
			events <- TurnEvent{State: StateFinal, Final: warn}
			return StateFinal, nil
		}

		state = StateBuildingContext
		history := sess.Snapshot()
		if e.ctxManager != nil {
			history = e.ctxManager.PruneToolResponses(history)
		}

		system := ""
		if e.curator != nil {
			system = e.curator.BuildSystemPrompt("You are a terminal coding agent operating inside the user's workspace.")
		}

		req := &providers.LLMRequest{
			Model:    e.model,
			System:   system,
			Messages: derefMessages(history),
			Stream:   true,
		}
		if e.registry != nil {
			req.Tools = toProviderTools(e.registry.AsLLMTools())
		}

		state = StateRequestingModel
		if e.trajectory != nil {
			preview := userInput
			if len(preview) > 80 {
				preview = preview[:80]
			}
			_ = e.trajectory.RecordRoute(e.model, string(sess.GetMode()), preview)
		}

		reply, toolCalls, err := e.stream(ctx, req, events, sess)
		if err != nil {
			return state, err
		}

		if len(toolCalls) == 0 {
			final := &models.Message{SessionID: sess.ID, Role: models.RoleAssistant, Content: reply, CreatedAt: time.Now()}
			sess.Append(final)
			if e.hooksBus != nil {
				_ = e.hooksBus.Trigger(ctx, hooks.NewEvent(hooks.EventTaskCompletion, sess.ID, time.Now()))
			}
			events <- TurnEvent{State: StateFinal, Final: final}
			return StateFinal, nil
		}

		assistantMsg := &models.Message{SessionID: sess.ID, Role: models.RoleAssistant, Content: reply, ToolCalls: toolCalls, CreatedAt: time.Now()}
		sess.Append(assistantMsg)

		state = StateGatingTools
		for _, call := range toolCalls {
			key := call.Name + "\x00" + string(call.Arguments)
			repeatedCalls[key]++
			if repeatedCalls[key] > e.cfg.MaxRepeatedToolCalls {
				warn := &models.Message{SessionID: sess.ID, Role: models.RoleAssistant, Content: fmt.Sprintf("repeated tool call limit exceeded for %s", call.Name), CreatedAt: time.Now()}
				sess.Append(warn)
				events <- TurnEvent{State: StateFinal, Final: warn}
				return StateFinal, nil
			}
		}

		state = StateExecutingTools
		if e.registry == nil {
			break
		}
		results := e.registry.ExecuteAll(ctx, toolCalls)
		for _, res := range results {
			if e.hooksBus != nil {
				out, errMsg := "", ""
				if res.Result != nil {
					out = res.Result.Content
				}
				if res.Error != nil {
					errMsg = res.Error.Error()
				}
				_ = e.hooksBus.Trigger(ctx, hooks.NewEvent(hooks.EventPostToolUse, sess.ID, time.Now()).WithTool(res.ToolName, "", out, errMsg))
			}
			sess.MarkToolUsed(res.ToolName)
			sess.Append(resultToMessage(sess.ID, res))
		}

		state = StateRequestingModel
	}

	return state, nil
}

func (e *Engine) stream(ctx context.Context, req *providers.LLMRequest, events chan<- TurnEvent, sess *session.State) (string, []models.ToolCall, error) {
	var attempt int
	backoff := e.cfg.RetryBase
	for {
		stream, err := e.provider.Complete(ctx, req)
		if err != nil {
			if attempt >= e.cfg.MaxRetries || !isTransient(err) {
				return "", nil, err
			}
			attempt++
			select {
			case <-ctx.Done():
				return "", nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = minDuration(time.Duration(float64(backoff)*e.cfg.RetryMultiplier), e.cfg.RetryCap)
			continue
		}

		var text strings.Builder
		var toolCalls []models.ToolCall
		for ev := range stream {
			if sess.CtrlC.CancelRequested() {
				return "", nil, nil
			}
			if ev.Err != nil {
				return "", nil, fmt.Errorf("stream error: %s", ev.Err.Message)
			}
			if ev.TextDelta != "" {
				text.WriteString(ev.TextDelta)
				events <- TurnEvent{TextDelta: ev.TextDelta, State: StateStreamingReply}
			}
			if ev.ToolCall != nil {
				toolCalls = append(toolCalls, *ev.ToolCall)
			}
			if ev.Done {
				break
			}
		}
		return text.String(), toolCalls, nil
	}
}

func isTransient(err error) bool {
	llmErr, ok := err.(*providers.LLMError)
	if !ok {
		return false
	}
	switch llmErr.Kind {
	case providers.ErrNetwork, providers.ErrTimeout, providers.ErrRateLimit:
		return true
	}
	return false
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func derefMessages(history []*models.Message) []models.Message {
	out := make([]models.Message, 0, len(history))
	for _, m := range history {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out
}

func toProviderTools(views []ToolDefinitionView) []providers.ToolDefinition {
	out := make([]providers.ToolDefinition, 0, len(views))
	for _, v := range views {
		out = append(out, providers.ToolDefinition{Name: v.Name, Description: v.Description, Schema: json.RawMessage(v.Schema)})
	}
	return out
}

func resultToMessage(sessionID string, res *ExecutionResult) *models.Message {
	msg := &models.Message{
		SessionID:  sessionID,
		Role:       models.RoleTool,
		ToolCallID: res.ToolCallID,
		OriginTool: res.ToolName,
		CreatedAt:  time.Now(),
	}
	if res.Error != nil {
		msg.Content = res.Error.Error()
		msg.IsError = true
		return msg
	}
	if res.Result != nil {
		msg.Content = res.Result.ToString()
		msg.IsError = res.Result.IsError
	}
	return msg
}
