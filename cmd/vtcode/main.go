// Command vtcode is the terminal entrypoint for the coding agent: an
// interactive chat loop, a one-shot workspace analysis, and a
// single-turn query mode, all driven by the same turn engine.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build-time version metadata, populated via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vtcode",
		Short:         "vtcode is a terminal coding agent",
		Long:          "vtcode drives LLM-backed coding sessions against a local workspace: an interactive chat, one-shot workspace analysis, and single-turn queries.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "vtcode.yaml", "path to the configuration file")

	root.AddCommand(buildChatCmd())
	root.AddCommand(buildAnalyzeCmd())
	root.AddCommand(buildAskCmd())

	return root
}

// exitCode carries the process exit code a cobra RunE wants without
// cobra itself interpreting non-error-string output.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func exitCodeFor(err error) int {
	if ec, ok := err.(*exitCode); ok {
		return ec.code
	}
	return 1
}
