package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vtcode/agent/internal/agent"
)

var (
	analyzeProvider string
	analyzeModel    string
)

func buildAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Run a one-shot analysis of a workspace path",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	cmd.Flags().StringVar(&analyzeProvider, "provider", "", "LLM provider (anthropic, openai, google, bedrock)")
	cmd.Flags().StringVar(&analyzeModel, "model", "", "model id to use")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	target := args[0]
	rt, cleanup, err := newRuntime(".", analyzeProvider, analyzeModel)
	if err != nil {
		return &exitCode{code: 2, err: err}
	}
	defer cleanup()

	prompt := fmt.Sprintf("Analyze %q in this workspace: summarize its purpose, structure, and anything that looks broken or risky. Use the available tools to read whatever you need.", target)

	events := make(chan agent.TurnEvent, 16)
	var runErr error
	go func() {
		_, runErr = rt.engine.Run(context.Background(), rt.session, prompt, events)
		close(events)
	}()

	for ev := range events {
		if ev.TextDelta != "" {
			fmt.Fprint(cmd.OutOrStdout(), ev.TextDelta)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout())
	if runErr != nil {
		return &exitCode{code: 1, err: runErr}
	}
	return nil
}
