package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the agent CLI.
type Config struct {
	LLM            LLMConfig            `yaml:"llm"`
	Tools          ToolsConfig          `yaml:"tools"`
	Workspace      WorkspaceConfig      `yaml:"workspace"`
	ContextPruning ContextPruningConfig `yaml:"context_pruning"`
	PTY            PTYConfig            `yaml:"pty"`
	Spooler        SpoolerConfig        `yaml:"spooler"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// WorkspaceConfig controls how the workspace context files (AGENTS.md and
// friends) are discovered and folded into the system prompt.
type WorkspaceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxChars   int    `yaml:"max_chars"`
	AgentsFile string `yaml:"agents_file"`
	ToolsFile  string `yaml:"tools_file"`
	MemoryFile string `yaml:"memory_file"`
}

// PTYConfig bounds the pseudo-terminal session manager.
type PTYConfig struct {
	// DefaultShell is used when a session doesn't request one explicitly.
	DefaultShell string `yaml:"default_shell"`
	// DefaultCols/DefaultRows size a session when the caller omits dims.
	DefaultCols int `yaml:"default_cols"`
	DefaultRows int `yaml:"default_rows"`
	// ScrollbackLines/ScrollbackBytes cap the circular scrollback buffer;
	// whichever limit is hit first starts evicting the oldest lines.
	ScrollbackLines int `yaml:"scrollback_lines"`
	ScrollbackBytes int `yaml:"scrollback_bytes"`
	// MaxSessions caps how many PTY sessions can be open at once.
	MaxSessions int `yaml:"max_sessions"`
}

// SpoolerConfig controls when oversized tool output is written to disk
// instead of being returned inline to the model.
type SpoolerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Dir            string `yaml:"dir"`
	ThresholdBytes int    `yaml:"threshold_bytes"`
	PreviewLines   int    `yaml:"preview_lines"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a Config populated entirely from defaults and
// environment overrides, for callers running without a config file on
// disk.
func Default() *Config {
	var cfg Config
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	applyLLMDefaults(&cfg.LLM)
	applyToolsDefaults(&cfg.Tools)
	applyWorkspaceDefaults(&cfg.Workspace)
	applyPTYDefaults(&cfg.PTY)
	applySpoolerDefaults(&cfg.Spooler)
	applyLoggingDefaults(&cfg.Logging)
}

func applyWorkspaceDefaults(cfg *WorkspaceConfig) {
	// Workspace context curation is part of the ambient stack: it stays
	// on unless a config file explicitly turns it off. There's no
	// tri-state here, so an explicit "enabled: false" and an omitted
	// key are indistinguishable; we default to the common case.
	cfg.Enabled = true
	if cfg.Path == "" {
		cfg.Path = "."
	}
	if cfg.MaxChars == 0 {
		cfg.MaxChars = 20000
	}
	if cfg.AgentsFile == "" {
		cfg.AgentsFile = "AGENTS.md"
	}
	if cfg.ToolsFile == "" {
		cfg.ToolsFile = "TOOLS.md"
	}
	if cfg.MemoryFile == "" {
		cfg.MemoryFile = "MEMORY.md"
	}
}

// DefaultWorkspaceConfig returns a workspace config with defaults applied.
func DefaultWorkspaceConfig() WorkspaceConfig {
	cfg := WorkspaceConfig{}
	applyWorkspaceDefaults(&cfg)
	return cfg
}

func applyPTYDefaults(cfg *PTYConfig) {
	if cfg.DefaultShell == "" {
		cfg.DefaultShell = defaultShell()
	}
	if cfg.DefaultCols == 0 {
		cfg.DefaultCols = 80
	}
	if cfg.DefaultRows == 0 {
		cfg.DefaultRows = 24
	}
	if cfg.ScrollbackLines == 0 {
		cfg.ScrollbackLines = 10000
	}
	if cfg.ScrollbackBytes == 0 {
		cfg.ScrollbackBytes = 2 << 20
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = 8
	}
}

func defaultShell() string {
	if shell := strings.TrimSpace(os.Getenv("SHELL")); shell != "" {
		return shell
	}
	return "/bin/bash"
}

func applySpoolerDefaults(cfg *SpoolerConfig) {
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "vtcode-spool")
	}
	if cfg.ThresholdBytes == 0 {
		cfg.ThresholdBytes = 16 << 10
	}
	if cfg.PreviewLines == 0 {
		cfg.PreviewLines = 50
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("VTCODE_LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
	if value := strings.TrimSpace(os.Getenv("VTCODE_WORKSPACE")); value != "" {
		cfg.Workspace.Path = value
	}
}

// ConfigValidationError collects every rule violation found while
// validating a loaded config, rather than failing on the first one.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.Workspace.MaxChars < 0 {
		issues = append(issues, "workspace.max_chars must be >= 0")
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}

	if cfg.Tools.Execution.MaxIterations < 0 {
		issues = append(issues, "tools.execution.max_iterations must be >= 0")
	}
	if cfg.Tools.Execution.Parallelism < 0 {
		issues = append(issues, "tools.execution.parallelism must be >= 0")
	}
	if cfg.Tools.Execution.Timeout < 0 {
		issues = append(issues, "tools.execution.timeout must be >= 0")
	}
	if cfg.Tools.Execution.MaxAttempts < 0 {
		issues = append(issues, "tools.execution.max_attempts must be >= 0")
	}
	if cfg.Tools.Execution.RetryBackoff < 0 {
		issues = append(issues, "tools.execution.retry_backoff must be >= 0")
	}
	if cfg.Tools.Execution.MaxToolCalls < 0 {
		issues = append(issues, "tools.execution.max_tool_calls must be >= 0")
	}
	if profile := strings.ToLower(strings.TrimSpace(cfg.Tools.Execution.Approval.Profile)); profile != "" {
		switch profile {
		case "coding", "readonly", "full", "minimal":
		default:
			issues = append(issues, "tools.execution.approval.profile must be \"coding\", \"readonly\", \"full\", or \"minimal\"")
		}
	}

	if cfg.PTY.ScrollbackLines < 0 {
		issues = append(issues, "pty.scrollback_lines must be >= 0")
	}
	if cfg.PTY.ScrollbackBytes < 0 {
		issues = append(issues, "pty.scrollback_bytes must be >= 0")
	}
	if cfg.PTY.MaxSessions < 0 {
		issues = append(issues, "pty.max_sessions must be >= 0")
	}

	if cfg.Spooler.ThresholdBytes < 0 {
		issues = append(issues, "spooler.threshold_bytes must be >= 0")
	}

	if pluginIssues := pluginValidationIssues(cfg); len(pluginIssues) > 0 {
		issues = append(issues, pluginIssues...)
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}

	return nil
}
