package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vtcode/agent/internal/agent"
	execsafety "github.com/vtcode/agent/internal/exec"
	"github.com/vtcode/agent/internal/shell"
	"github.com/vtcode/agent/pkg/models"
)

// RunShellTool runs a command line in the workspace, tracking the
// invocation in a shell.ProcessRegistry the way the teacher's exec
// manager tracks background processes, except every call here runs to
// completion before returning.
type RunShellTool struct {
	Root     string
	Registry *shell.ProcessRegistry
}

func NewRunShellTool(root string, registry *shell.ProcessRegistry) *RunShellTool {
	return &RunShellTool{Root: root, Registry: registry}
}

func (t *RunShellTool) Name() string        { return "run_shell" }
func (t *RunShellTool) Description() string { return "Run a shell command in the workspace and return its output." }
func (t *RunShellTool) Category() models.ToolCategory { return models.CategoryDefault }
func (t *RunShellTool) Mutates() bool                 { return true }
func (t *RunShellTool) ParallelSafe() bool            { return false }
func (t *RunShellTool) Priority() models.Priority      { return models.PriorityLow }

func (t *RunShellTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "Shell command to execute."},
			"cwd": {"type": "string", "description": "Working directory relative to the workspace root."},
			"timeout_seconds": {"type": "integer", "minimum": 0, "description": "Timeout in seconds (0 = default)."}
		},
		"required": ["command"]
	}`)
}

func (t *RunShellTool) Execute(ctx context.Context, args json.RawMessage) (models.ToolResult, error) {
	var input struct {
		Command        string `json:"command"`
		Cwd            string `json:"cwd"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errResult(t.Name(), "invalid_arguments", fmt.Errorf("decode arguments: %w", err)), nil
	}
	command := strings.TrimSpace(input.Command)
	if command == "" {
		return errResult(t.Name(), "invalid_arguments", fmt.Errorf("command is required")), nil
	}
	if execsafety.ControlChars.MatchString(command) {
		return errResult(t.Name(), "unsafe_command", fmt.Errorf("command contains control characters")), nil
	}

	cwd, err := workspaceRoot(t.Root, input.Cwd)
	if err != nil {
		return errResult(t.Name(), "invalid_path", err), nil
	}

	timeout := 60 * time.Second
	if input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = cwd
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	session := &shell.ProcessSession{ID: uuid.New().String(), Command: command, CWD: cwd, StartedAt: time.Now()}
	if t.Registry != nil {
		t.Registry.AddSession(session)
	}

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return errResult(t.Name(), "exec_failed", runErr), nil
		}
	}
	if t.Registry != nil {
		code := exitCode
		status := shell.ProcessStatusCompleted
		if exitCode != 0 {
			status = shell.ProcessStatusFailed
		}
		t.Registry.MarkExited(session, &code, "", status)
	}

	payload := map[string]any{
		"exit_code": exitCode,
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return errResult(t.Name(), "encode_failed", err), nil
	}
	return models.ToolResult{ToolName: t.Name(), Content: string(encoded), IsError: exitCode != 0}, nil
}

var _ agent.Tool = (*RunShellTool)(nil)
