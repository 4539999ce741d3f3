package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/vtcode/agent/internal/shell"
)

func TestRunShellToolReturnsStdout(t *testing.T) {
	root := t.TempDir()
	registry := shell.NewProcessRegistry(nil)
	tool := NewRunShellTool(root, registry)

	args, _ := json.Marshal(map[string]string{"command": "echo hello"})
	res, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success, got error result: %+v", res)
	}
	if !strings.Contains(res.Content, "hello") {
		t.Fatalf("expected stdout to contain 'hello', got %q", res.Content)
	}
}

func TestRunShellToolReportsNonZeroExit(t *testing.T) {
	root := t.TempDir()
	registry := shell.NewProcessRegistry(nil)
	tool := NewRunShellTool(root, registry)

	args, _ := json.Marshal(map[string]string{"command": "exit 3"})
	res, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected non-zero exit to be reported as an error result: %+v", res)
	}
}

func TestRunShellToolRejectsControlCharacters(t *testing.T) {
	root := t.TempDir()
	tool := NewRunShellTool(root, shell.NewProcessRegistry(nil))

	args, _ := json.Marshal(map[string]string{"command": "echo hi\x00"})
	res, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !res.IsError || res.ErrorKind != "unsafe_command" {
		t.Fatalf("expected unsafe_command error, got %+v", res)
	}
}
