package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vtcode/agent/internal/agent"
)

var (
	askQuery    string
	askProvider string
	askModel    string
)

func buildAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run a single query against the workspace and print the reply",
		RunE:  runAsk,
	}
	cmd.Flags().StringVar(&askQuery, "query", "", "the question to ask")
	cmd.Flags().StringVar(&askProvider, "provider", "", "LLM provider (anthropic, openai, google, bedrock)")
	cmd.Flags().StringVar(&askModel, "model", "", "model id to use")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	rt, cleanup, err := newRuntime(".", askProvider, askModel)
	if err != nil {
		return &exitCode{code: 2, err: err}
	}
	defer cleanup()

	events := make(chan agent.TurnEvent, 16)
	var runErr error
	go func() {
		_, runErr = rt.engine.Run(context.Background(), rt.session, askQuery, events)
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
