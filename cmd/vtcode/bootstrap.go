package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vtcode/agent/internal/agent"
	"github.com/vtcode/agent/internal/config"
	vtcontext "github.com/vtcode/agent/internal/context"
	"github.com/vtcode/agent/internal/hooks"
	"github.com/vtcode/agent/internal/infra"
	"github.com/vtcode/agent/internal/observability"
	"github.com/vtcode/agent/internal/policy"
	"github.com/vtcode/agent/internal/providers"
	"github.com/vtcode/agent/internal/ratelimit"
	"github.com/vtcode/agent/internal/session"
	"github.com/vtcode/agent/internal/shell"
	"github.com/vtcode/agent/internal/spooler"
	"github.com/vtcode/agent/internal/tools"
	"github.com/vtcode/agent/internal/trajectory"
)

// runtime bundles every component the turn engine needs, assembled once
// per CLI invocation and shared by chat, analyze, and ask.
type runtime struct {
	cfg        *config.Config
	log        *observability.Logger
	workspace  string
	engine     *agent.Engine
	session    *session.State
	trajectory *trajectory.Logger
	hooksBus   *hooks.Registry
}

func newRuntime(workspace, provider, model string) (*runtime, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	appLog := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	// observability.Logger keeps its *slog.Logger private, so the hooks
	// registry gets its own handle onto the same stream.
	hooksLog := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	hooksBus := hooks.NewRegistry(hooksLog)

	if workspace == "" {
		workspace = "."
	}
	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve workspace: %w", err)
	}

	policyPath := filepath.Join(absWorkspace, policy.DefaultPath)
	gateway, err := policy.NewGateway(policyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load policy gateway: %w", err)
	}

	breakers := infra.NewCategoryRegistry(infra.CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	})

	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.DefaultAdaptiveConfig())

	registry := agent.NewToolRegistry(agent.DefaultRegistryConfig(), gateway, breakers, limiter)
	processes := shell.NewProcessRegistry(hooksLog)
	registerBuiltinTools(registry, absWorkspace, processes)

	if cfg.Spooler.Enabled {
		spoolDir := cfg.Spooler.Dir
		if spoolDir == "" {
			spoolDir = filepath.Join(absWorkspace, ".vtcode", "spool")
		}
		registry.SetSpooler(spooler.New(spoolDir, cfg.Spooler.ThresholdBytes, cfg.Spooler.PreviewLines))
	}

	trajectoryPath := filepath.Join(absWorkspace, ".vtcode", "logs", "trajectory.jsonl")
	trajLogger, err := trajectory.NewLogger(trajectoryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open trajectory log: %w", err)
	}
	registry.SetRecorder(trajLogger)

	providerName := provider
	if providerName == "" {
		providerName = cfg.LLM.DefaultProvider
	}
	llmProvider, modelID, err := buildProvider(cfg, providerName, model)
	if err != nil {
		trajLogger.Close()
		return nil, nil, err
	}

	curator := vtcontext.NewCurator(cfg.Workspace)
	ctxManager := vtcontext.NewManager(modelID, config.EffectiveContextPruningSettings(cfg.ContextPruning))

	engine := agent.NewEngine(llmProvider, registry, curator, ctxManager, hooksBus, trajLogger, modelID, agent.DefaultEngineConfig())

	sess := session.New(newSessionID())

	_ = hooksBus.Trigger(context.Background(), hooks.NewEvent(hooks.EventSessionStart, sess.ID, time.Now()).WithWorkspace(absWorkspace, trajectoryPath))

	rt := &runtime{cfg: cfg, log: appLog, workspace: absWorkspace, engine: engine, session: sess, trajectory: trajLogger, hooksBus: hooksBus}
	cleanup := func() {
		_ = hooksBus.Trigger(context.Background(), hooks.NewEvent(hooks.EventSessionEnd, sess.ID, time.Now()))
		_ = trajLogger.Close()
	}
	return rt, cleanup, nil
}

func newSessionID() string {
	return "sess-" + uuid.New().String()
}

func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func registerBuiltinTools(registry *agent.ToolRegistry, workspace string, processes *shell.ProcessRegistry) {
	_ = registry.Register(tools.NewReadFileTool(workspace))
	_ = registry.Register(tools.NewWriteFileTool(workspace))
	_ = registry.Register(tools.NewListDirTool(workspace))
	_ = registry.Register(tools.NewRunShellTool(workspace, processes))
}

func buildProvider(cfg *config.Config, providerName, model string) (providers.LLMProvider, string, error) {
	providerCfg := cfg.LLM.Providers[providerName]
	resolvedModel := model
	if resolvedModel == "" {
		resolvedModel = providerCfg.DefaultModel
	}

	// resolvedModel may be left empty here: every provider below falls
	// back to its own DefaultModel/hardcoded default when the request
	// doesn't specify one.
	switch providerName {
	case "anthropic", "":
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{APIKey: providerCfg.APIKey, BaseURL: providerCfg.BaseURL, DefaultModel: providerCfg.DefaultModel})
		if err != nil {
			return nil, "", fmt.Errorf("build anthropic provider: %w", err)
		}
		return p, resolvedModel, nil
	case "openai":
		p := providers.NewOpenAIProvider(providerCfg.APIKey)
		return p, resolvedModel, nil
	case "google":
		p, err := providers.NewGoogleProvider(providers.GoogleConfig{APIKey: providerCfg.APIKey, DefaultModel: providerCfg.DefaultModel})
		if err != nil {
			return nil, "", fmt.Errorf("build google provider: %w", err)
		}
		return p, resolvedModel, nil
	case "bedrock":
		p, err := providers.NewBedrockProvider(providers.BedrockConfig{Region: cfg.LLM.Bedrock.Region})
		if err != nil {
			return nil, "", fmt.Errorf("build bedrock provider: %w", err)
		}
		return p, resolvedModel, nil
	default:
		return nil, "", fmt.Errorf("unknown provider %q", providerName)
	}
}
