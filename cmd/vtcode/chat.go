package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vtcode/agent/internal/agent"
	"github.com/vtcode/agent/pkg/models"
)

var (
	chatWorkspace         string
	chatFullAuto          bool
	chatPlan              bool
	chatResume            string
	chatSkipConfirmations bool
	chatProvider          string
	chatModel             string
)

func buildChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive coding session",
		RunE:  runChat,
	}
	cmd.Flags().StringVar(&chatWorkspace, "workspace", ".", "workspace root to operate in")
	cmd.Flags().BoolVar(&chatFullAuto, "full-auto", false, "approve every tool call without prompting")
	cmd.Flags().BoolVar(&chatPlan, "plan", false, "start in plan mode (no mutating tool calls)")
	cmd.Flags().StringVar(&chatResume, "resume", "", "resume a previous session by id")
	cmd.Flags().BoolVar(&chatSkipConfirmations, "skip-confirmations", false, "skip interactive confirmation prompts")
	cmd.Flags().StringVar(&chatProvider, "provider", "", "LLM provider (anthropic, openai, google, bedrock)")
	cmd.Flags().StringVar(&chatModel, "model", "", "model id to use")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, cleanup, err := newRuntime(chatWorkspace, chatProvider, chatModel)
	if err != nil {
		return &exitCode{code: 2, err: err}
	}
	defer cleanup()

	if chatPlan {
		rt.session.SetMode(models.ModePlan)
	} else if chatFullAuto {
		rt.session.SetMode(models.ModeAgent)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer stop()
	go watchCtrlC(stop, rt)

	fmt.Fprintln(cmd.OutOrStdout(), "vtcode chat — type your request, or /help for commands. Ctrl-C once cancels a turn, twice exits.")
	reader := bufio.NewScanner(os.Stdin)
	reader.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(cmd.OutOrStdout(), "> ")
		if !reader.Scan() {
			break
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if handled, exit := handleSlashCommand(cmd, rt, line); handled {
				if exit {
					return nil
				}
				continue
			}
		}

		if err := runTurn(ctx, cmd, rt, line); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			return &exitCode{code: 1, err: err}
		}

		if rt.session.CtrlC.ExitArmed() {
			return nil
		}
	}
	return nil
}

func watchCtrlC(stop context.CancelFunc, rt *runtime) {
	// signal.NotifyContext cancels ctx on the first SIGINT; this routes
	// every press (first and subsequent) into the session's own
	// debounce/escalation state machine so a second press can force exit.
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)
	for range sigCh {
		_, exit := rt.session.CtrlC.Signal()
		if exit {
			stop()
			os.Exit(130)
		}
	}
}

func runTurn(ctx context.Context, cmd *cobra.Command, rt *runtime, input string) error {
	events := make(chan agent.TurnEvent, 16)
	done := make(chan struct{})
	var runErr error

	go func() {
		defer close(done)
		_, runErr = rt.engine.Run(ctx, rt.session, input, events)
		close(events)
	}()

	for ev := range events {
		if ev.TextDelta != "" {
			fmt.Fprint(cmd.OutOrStdout(), ev.TextDelta)
		}
		if ev.State == agent.StateCancelled {
			fmt.Fprintln(cmd.OutOrStdout(), "\n(turn cancelled)")
		}
		if ev.Final != nil && ev.State == agent.StateFinal {
			fmt.Fprintln(cmd.OutOrStdout())
		}
	}
	<-done
	return runErr
}

func handleSlashCommand(cmd *cobra.Command, rt *runtime, line string) (handled bool, exit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/help":
		fmt.Fprintln(cmd.OutOrStdout(), "commands: /help /mode <agent|plan|edit> /skills /launch /update /share-log /quit")
		return true, false
	case "/mode":
		if len(fields) < 2 {
			fmt.Fprintln(cmd.OutOrStdout(), "usage: /mode <agent|plan|edit>")
			return true, false
		}
		switch fields[1] {
		case "plan":
			rt.session.SetMode(models.ModePlan)
		case "edit":
			rt.session.SetMode(models.ModeEdit)
		default:
			rt.session.SetMode(models.ModeAgent)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "mode set to", fields[1])
		return true, false
	case "/skills", "/launch", "/update":
		fmt.Fprintln(cmd.OutOrStdout(), fields[0], "is not available in this environment")
		return true, false
	case "/share-log":
		fmt.Fprintln(cmd.OutOrStdout(), "trajectory log:", rt.workspace+"/.vtcode/logs/trajectory.jsonl")
		return true, false
	case "/quit", "/exit":
		return true, true
	}
	return false, false
}
