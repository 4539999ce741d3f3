// Package policy implements the policy gateway that gates every tool
// call before it reaches the executor: plan-mode restrictions, explicit
// allow/deny lists, and the read-only fast path.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/vtcode/agent/pkg/models"
)

// DefaultPath is where the persisted policy lives inside a workspace.
const DefaultPath = ".vtcode/policies/tool-policy.json"

// Policy is the persisted, user-editable rule set.
type Policy struct {
	// Allow lists tools (or patterns, see matchesPattern) admitted
	// without a prompt.
	Allow []string `json:"allow"`
	// Deny lists tools that are always rejected, regardless of mode.
	Deny []string `json:"deny"`
	// ReadOnly lists non-mutating tools that skip the prompt even when
	// not explicitly allowed.
	ReadOnly []string `json:"read_only"`
	// FullAuto admits any tool call not explicitly denied, without a
	// prompt.
	FullAuto bool `json:"full_auto"`
}

// DefaultPolicy returns the conservative default: common read-only
// tools pass, everything else prompts.
func DefaultPolicy() Policy {
	return Policy{
		ReadOnly: []string{"read_file", "list_files", "grep", "glob", "web_search"},
	}
}

// Gateway evaluates tool calls against a Policy and the session's
// editing mode, per SPEC_FULL.md §4.2's five ordered rules:
//  1. plan mode denies mutating calls outright
//  2. an explicit deny match is terminal
//  3. a non-mutating call matching ReadOnly (or the built-in default set)
//     is allowed without a prompt
//  4. an explicit allow match, or FullAuto, is allowed
//  5. anything else prompts the user
type Gateway struct {
	mu     sync.RWMutex
	policy Policy
	path   string
	watch  *fsnotify.Watcher
}

// NewGateway loads the policy from path, falling back to DefaultPolicy
// if the file does not exist yet.
func NewGateway(path string) (*Gateway, error) {
	if path == "" {
		path = DefaultPath
	}
	g := &Gateway{policy: DefaultPolicy(), path: path}
	if err := g.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return g, nil
}

func (g *Gateway) load() error {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return err
	}
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("policy: parse %s: %w", g.path, err)
	}
	g.mu.Lock()
	g.policy = p
	g.mu.Unlock()
	return nil
}

// Save persists the current policy to disk.
func (g *Gateway) Save() error {
	g.mu.RLock()
	p := g.policy
	g.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.path, data, 0o644)
}

// SetPolicy replaces the in-memory policy (does not persist; call Save).
func (g *Gateway) SetPolicy(p Policy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy = p
}

// Policy returns a copy of the current policy.
func (g *Gateway) Policy() Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.policy
}

// WatchForChanges starts an fsnotify watcher that reloads the policy
// file whenever it is edited externally (e.g. by a user editing it by
// hand). Call Close to stop watching.
func (g *Gateway) WatchForChanges(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(g.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.Close()
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	g.mu.Lock()
	g.watch = w
	g.mu.Unlock()

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(g.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					_ = g.load()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Close stops the watcher, if any.
func (g *Gateway) Close() error {
	g.mu.RLock()
	w := g.watch
	g.mu.RUnlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

// Evaluate applies the five-rule evaluation to a single tool call.
// mutates reports whether the tool call can change workspace or session
// state; the caller (tool registry) determines this from the tool's
// declared capability.
func (g *Gateway) Evaluate(mode models.EditingMode, call models.ToolCall, mutates bool) (models.ToolPolicyDecision, string) {
	g.mu.RLock()
	p := g.policy
	g.mu.RUnlock()

	name := call.Name

	if mode == models.ModePlan && mutates {
		return models.PolicyDeny, "plan mode forbids mutating tools"
	}
	if matchesPattern(p.Deny, name) {
		return models.PolicyDeny, "tool in deny list"
	}
	if !mutates && matchesPattern(p.ReadOnly, name) {
		return models.PolicyAllow, "read-only tool"
	}
	if matchesPattern(p.Allow, name) {
		return models.PolicyAllow, "tool in allow list"
	}
	if p.FullAuto {
		return models.PolicyAllow, "full-auto mode"
	}
	return models.PolicyPromptUser, "no matching rule"
}

// matchesPattern reports whether name matches any entry in patterns.
// Supports exact match, "*" (match all), "prefix*", and "*suffix".
func matchesPattern(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if pattern == "*" || pattern == name {
			return true
		}
		if strings.HasSuffix(pattern, "*") && strings.HasPrefix(name, pattern[:len(pattern)-1]) {
			return true
		}
		if strings.HasPrefix(pattern, "*") && strings.HasSuffix(name, pattern[1:]) {
			return true
		}
	}
	return false
}
