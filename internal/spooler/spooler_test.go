package spooler

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSpoolUnderThresholdPassesThrough(t *testing.T) {
	s := New(t.TempDir(), 1024, 10)
	content := "short output"
	out, spooled := s.Spool("read_file", content)
	if spooled {
		t.Fatal("content under threshold should not be spooled")
	}
	if out != content {
		t.Fatalf("expected content unchanged, got %q", out)
	}
}

func TestSpoolOverThresholdWritesFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 16, 2)
	content := strings.Repeat("line\n", 20)
	out, spooled := s.Spool("run_shell", content)
	if !spooled {
		t.Fatal("content over threshold should be spooled")
	}
	if !strings.Contains(out, dir) {
		t.Fatalf("expected summary to reference spool dir, got %q", out)
	}
	if strings.Count(out, "line") > 3 {
		t.Fatalf("expected preview truncated to configured line count, got %q", out)
	}
}

func TestSpoolSanitizesToolNameForFilename(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 1, 5)
	out, spooled := s.Spool("weird/tool name!", strings.Repeat("x", 100))
	if !spooled {
		t.Fatal("expected content to be spooled")
	}
	matches, err := filepath.Glob(filepath.Join(dir, "weird_tool_name_-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one sanitized spool file, found %v (summary: %q)", matches, out)
	}
}
