// Package spooler implements the disk-backed overflow for oversized tool
// output, grounded on the pending/tail truncation scheme in
// internal/shell's process registry.
package spooler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Spooler writes tool output that exceeds a byte threshold to disk and
// returns a short preview plus a handle the model can refer back to,
// instead of flooding the conversation with raw output.
type Spooler struct {
	dir            string
	thresholdBytes int
	previewLines   int
	counter        atomic.Uint64
}

// New creates a Spooler rooted at dir. The directory is created lazily on
// first spool.
func New(dir string, thresholdBytes, previewLines int) *Spooler {
	if thresholdBytes <= 0 {
		thresholdBytes = 16 << 10
	}
	if previewLines <= 0 {
		previewLines = 50
	}
	return &Spooler{dir: dir, thresholdBytes: thresholdBytes, previewLines: previewLines}
}

// Spool implements agent.ResultSpooler. Content under the threshold is
// returned unchanged (spooled=false). Content over the threshold is
// written to a file under dir and a preview + handle summary is
// returned instead.
func (s *Spooler) Spool(toolName, content string) (string, bool) {
	if len(content) <= s.thresholdBytes {
		return content, false
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return content, false
	}

	n := s.counter.Add(1)
	sum := sha256.Sum256([]byte(content))
	name := fmt.Sprintf("%s-%04d-%s.txt", sanitizeName(toolName), n, hex.EncodeToString(sum[:4]))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return content, false
	}

	lines := strings.SplitN(content, "\n", s.previewLines+1)
	truncated := len(lines) > s.previewLines
	preview := lines
	if truncated {
		preview = lines[:s.previewLines]
	}

	lineCount := strings.Count(content, "\n") + 1
	summary := fmt.Sprintf(
		"[%s output spooled to %s: %d bytes, %d lines]\n%s",
		toolName, path, len(content), lineCount, strings.Join(preview, "\n"),
	)
	return summary, true
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "tool"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
