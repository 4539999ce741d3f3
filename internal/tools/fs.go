// Package tools implements the built-in filesystem and shell capabilities
// exposed to the model through the tool registry.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vtcode/agent/internal/agent"
	"github.com/vtcode/agent/pkg/models"
)

// workspaceRoot resolves a tool-supplied path against the workspace root,
// rejecting anything that would escape it. Mirrors the workspace-scoping
// idiom the teacher applies to its skills and plugin loaders.
func workspaceRoot(root, path string) (string, error) {
	if path == "" {
		path = "."
	}
	joined := filepath.Join(root, path)
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(absRoot, absJoined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", path)
	}
	return absJoined, nil
}

func errResult(name, kind string, err error) models.ToolResult {
	return models.ToolResult{ToolName: name, Content: err.Error(), IsError: true, ErrorKind: kind}
}

// ReadFileTool reads a workspace file, optionally sliced by line range.
type ReadFileTool struct {
	Root string
}

func NewReadFileTool(root string) *ReadFileTool { return &ReadFileTool{Root: root} }

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read a file from the workspace, optionally restricted to a line range." }
func (t *ReadFileTool) Category() models.ToolCategory { return models.CategoryDefault }
func (t *ReadFileTool) Mutates() bool                 { return false }
func (t *ReadFileTool) ParallelSafe() bool            { return true }
func (t *ReadFileTool) Priority() models.Priority      { return models.PriorityHigh }

func (t *ReadFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path relative to the workspace root."},
			"start_line": {"type": "integer", "minimum": 1, "description": "First line to include (1-indexed)."},
			"end_line": {"type": "integer", "minimum": 1, "description": "Last line to include (1-indexed)."}
		},
		"required": ["path"]
	}`)
}

func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (models.ToolResult, error) {
	var input struct {
		Path      string `json:"path"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errResult(t.Name(), "invalid_arguments", fmt.Errorf("decode arguments: %w", err)), nil
	}
	resolved, err := workspaceRoot(t.Root, input.Path)
	if err != nil {
		return errResult(t.Name(), "invalid_path", err), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return errResult(t.Name(), "read_failed", err), nil
	}
	if input.StartLine == 0 && input.EndLine == 0 {
		return models.ToolResult{ToolName: t.Name(), Content: string(data)}, nil
	}
	lines := strings.Split(string(data), "\n")
	start := input.StartLine
	if start < 1 {
		start = 1
	}
	end := input.EndLine
	if end == 0 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return models.ToolResult{ToolName: t.Name(), Content: ""}, nil
	}
	return models.ToolResult{ToolName: t.Name(), Content: strings.Join(lines[start-1:end], "\n")}, nil
}

// WriteFileTool creates or overwrites a workspace file.
type WriteFileTool struct {
	Root string
}

func NewWriteFileTool(root string) *WriteFileTool { return &WriteFileTool{Root: root} }

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Create or overwrite a file in the workspace." }
func (t *WriteFileTool) Category() models.ToolCategory { return models.CategoryDefault }
func (t *WriteFileTool) Mutates() bool                 { return true }
func (t *WriteFileTool) ParallelSafe() bool            { return false }
func (t *WriteFileTool) Priority() models.Priority      { return models.PriorityNormal }

func (t *WriteFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path relative to the workspace root."},
			"content": {"type": "string", "description": "Full file content to write."}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (models.ToolResult, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return errResult(t.Name(), "invalid_arguments", fmt.Errorf("decode arguments: %w", err)), nil
	}
	resolved, err := workspaceRoot(t.Root, input.Path)
	if err != nil {
		return errResult(t.Name(), "invalid_path", err), nil
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return errResult(t.Name(), "write_failed", err), nil
	}
	if err := os.WriteFile(resolved, []byte(input.Content), 0o644); err != nil {
		return errResult(t.Name(), "write_failed", err), nil
	}
	return models.ToolResult{ToolName: t.Name(), Content: fmt.Sprintf("wrote %d bytes to %s", len(input.Content), input.Path)}, nil
}

// ListDirTool lists the entries of a workspace directory, non-recursively.
type ListDirTool struct {
	Root string
}

func NewListDirTool(root string) *ListDirTool { return &ListDirTool{Root: root} }

func (t *ListDirTool) Name() string        { return "list_dir" }
func (t *ListDirTool) Description() string { return "List the entries of a workspace directory." }
func (t *ListDirTool) Category() models.ToolCategory { return models.CategoryDefault }
func (t *ListDirTool) Mutates() bool                 { return false }
func (t *ListDirTool) ParallelSafe() bool            { return true }
func (t *ListDirTool) Priority() models.Priority      { return models.PriorityHigh }

func (t *ListDirTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Directory path relative to the workspace root. Defaults to the root."}
		}
	}`)
}

func (t *ListDirTool) Execute(ctx context.Context, args json.RawMessage) (models.ToolResult, error) {
	var input struct {
		Path string `json:"path"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return errResult(t.Name(), "invalid_arguments", fmt.Errorf("decode arguments: %w", err)), nil
		}
	}
	resolved, err := workspaceRoot(t.Root, input.Path)
	if err != nil {
		return errResult(t.Name(), "invalid_path", err), nil
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return errResult(t.Name(), "read_failed", err), nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name()+"/")
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return models.ToolResult{ToolName: t.Name(), Content: strings.Join(names, "\n")}, nil
}

var _ agent.Tool = (*ReadFileTool)(nil)
var _ agent.Tool = (*WriteFileTool)(nil)
var _ agent.Tool = (*ListDirTool)(nil)
