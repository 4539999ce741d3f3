package context

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vtcode/agent/internal/config"
)

// Curator assembles the system prompt from the workspace's context files
// (AGENTS.md, TOOLS.md, MEMORY.md), implementing SPEC_FULL.md §4.10's
// build_system_prompt.
type Curator struct {
	cfg config.WorkspaceConfig
}

// NewCurator builds a Curator for the given workspace config.
func NewCurator(cfg config.WorkspaceConfig) *Curator {
	return &Curator{cfg: cfg}
}

// BuildSystemPrompt concatenates a fixed identity preamble with whichever
// of the configured workspace context files exist, each truncated to
// MaxChars, in AGENTS -> TOOLS -> MEMORY order.
func (c *Curator) BuildSystemPrompt(preamble string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(preamble))
	b.WriteString("\n\n")

	if !c.cfg.Enabled {
		return strings.TrimSpace(b.String())
	}

	for _, name := range []string{c.cfg.AgentsFile, c.cfg.ToolsFile, c.cfg.MemoryFile} {
		if name == "" {
			continue
		}
		content, ok := c.readContextFile(name)
		if !ok {
			continue
		}
		b.WriteString("## ")
		b.WriteString(name)
		b.WriteString("\n\n")
		b.WriteString(content)
		b.WriteString("\n\n")
	}

	return strings.TrimSpace(b.String())
}

func (c *Curator) readContextFile(name string) (string, bool) {
	path := filepath.Join(c.cfg.Path, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	content := string(data)
	if c.cfg.MaxChars > 0 && len(content) > c.cfg.MaxChars {
		content = content[:c.cfg.MaxChars] + "\n...(truncated)"
	}
	return content, true
}
