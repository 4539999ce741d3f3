package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vtcode/agent/internal/infra"
	"github.com/vtcode/agent/internal/policy"
	"github.com/vtcode/agent/internal/ratelimit"
	"github.com/vtcode/agent/pkg/models"
)

const (
	// MaxToolNameLength bounds a tool-call's name to guard against
	// pathological provider output.
	MaxToolNameLength = 256
	// MaxToolParamsSize bounds the raw argument payload accepted for a
	// single tool call.
	MaxToolParamsSize = 10 << 20
)

// ResultSpooler persists large tool output to disk and returns a handle
// that replaces the inline content, per SPEC_FULL.md's output spooler.
// Registered lazily; a registry with no spooler keeps output inline.
type ResultSpooler interface {
	Spool(toolName, content string) (handle string, spooled bool)
}

// DecisionRecorder appends one entry per completed tool call to the
// session's decision ledger / trajectory log.
type DecisionRecorder interface {
	Record(models.DecisionRecord)
}

// RegistryConfig configures the tool registry's execution pipeline.
type RegistryConfig struct {
	MaxConcurrency  int
	DefaultTimeout  time.Duration
	DefaultRetries  int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	CacheTTL        time.Duration
}

// DefaultRegistryConfig mirrors the teacher executor's defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxConcurrency:  5,
		DefaultTimeout:  30 * time.Second,
		DefaultRetries:  2,
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 5 * time.Second,
		CacheTTL:        30 * time.Second,
	}
}

type cacheEntry struct {
	result  models.ToolResult
	expires time.Time
}

// ToolRegistry holds the available tools and runs every call through the
// ten-step execution pipeline described in SPEC_FULL.md §4.3:
// canonicalize name, validate args, policy gate, cache lookup, circuit
// breaker, rate limiter, adaptive timeout, execute, spool, record.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	config     RegistryConfig
	toolConfig map[string]*ToolConfig
	sem        chan struct{}

	gateway  *policy.Gateway
	breakers *infra.CategoryRegistry
	limiter  *ratelimit.AdaptiveLimiter

	cacheMu sync.Mutex
	cache   map[string]cacheEntry

	spooler  ResultSpooler
	recorder DecisionRecorder

	mode   models.EditingMode
	modeMu sync.RWMutex

	metrics ExecutorMetrics
}

// NewToolRegistry builds a registry wired to the policy gateway, the
// per-category circuit breakers, and the adaptive rate limiter. Any of
// gateway/breakers/limiter may be nil, in which case that pipeline step
// is skipped.
func NewToolRegistry(config RegistryConfig, gateway *policy.Gateway, breakers *infra.CategoryRegistry, limiter *ratelimit.AdaptiveLimiter) *ToolRegistry {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 30 * time.Second
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 100 * time.Millisecond
	}
	if config.MaxRetryBackoff <= 0 {
		config.MaxRetryBackoff = 5 * time.Second
	}
	return &ToolRegistry{
		tools:      make(map[string]Tool),
		config:     config,
		toolConfig: make(map[string]*ToolConfig),
		sem:        make(chan struct{}, config.MaxConcurrency),
		gateway:    gateway,
		breakers:   breakers,
		limiter:    limiter,
		cache:      make(map[string]cacheEntry),
		mode:       models.ModeAgent,
	}
}

// SetMode changes the editing mode the policy gateway evaluates against.
func (r *ToolRegistry) SetMode(mode models.EditingMode) {
	r.modeMu.Lock()
	defer r.modeMu.Unlock()
	r.mode = mode
}

func (r *ToolRegistry) currentMode() models.EditingMode {
	r.modeMu.RLock()
	defer r.modeMu.RUnlock()
	return r.mode
}

// SetSpooler wires the output spooler used for post-processing step 9.
func (r *ToolRegistry) SetSpooler(s ResultSpooler) { r.spooler = s }

// SetRecorder wires the decision ledger used for step 10.
func (r *ToolRegistry) SetRecorder(rec DecisionRecorder) { r.recorder = rec }

// Register adds a tool, replacing any existing tool with the same name.
func (r *ToolRegistry) Register(t Tool) error {
	name := canonicalToolName(t.Name())
	if name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if len(name) > MaxToolNameLength {
		return fmt.Errorf("tool name %q exceeds %d characters", name, MaxToolNameLength)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = t
	return nil
}

// Unregister removes a tool by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, canonicalToolName(name))
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[canonicalToolName(name)]
	return t, ok
}

// ConfigureTool sets per-tool timeout/retry/priority overrides.
func (r *ToolRegistry) ConfigureTool(name string, tc *ToolConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolConfig[canonicalToolName(name)] = tc
}

// AsLLMTools renders every registered tool's definition in the format the
// provider layer sends to the model, sorted by name for a stable prompt.
func (r *ToolRegistry) AsLLMTools() []ToolDefinitionView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	views := make([]ToolDefinitionView, 0, len(r.tools))
	for _, t := range r.tools {
		views = append(views, ToolDefinitionView{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}

// ToolDefinitionView is the read-only shape the provider layer marshals
// into each vendor's tool-definition wire format.
type ToolDefinitionView struct {
	Name        string
	Description string
	Schema      []byte
}

func canonicalToolName(name string) string {
	return strings.TrimSpace(name)
}

// ParallelGroups partitions calls into groups that may execute
// concurrently, per SPEC_FULL.md §4.2: two calls share a group only if
// both are parallel-safe and neither mutates. Anything else runs alone,
// preserving call order across groups.
func (r *ToolRegistry) ParallelGroups(calls []models.ToolCall) [][]models.ToolCall {
	var groups [][]models.ToolCall
	var batch []models.ToolCall

	flush := func() {
		if len(batch) > 0 {
			groups = append(groups, batch)
			batch = nil
		}
	}

	for _, call := range calls {
		t, ok := r.Get(call.Name)
		if !ok || !t.ParallelSafe() || t.Mutates() {
			flush()
			groups = append(groups, []models.ToolCall{call})
			continue
		}
		batch = append(batch, call)
	}
	flush()
	return groups
}

// ExecuteAll runs every call through ParallelGroups sequentially across
// groups, concurrently within a group, preserving input order in the
// returned slice.
func (r *ToolRegistry) ExecuteAll(ctx context.Context, calls []models.ToolCall) []*ExecutionResult {
	if len(calls) == 0 {
		return nil
	}
	results := make([]*ExecutionResult, len(calls))
	index := make(map[string]int, len(calls))
	for i, c := range calls {
		index[c.ID] = i
	}

	for _, group := range r.ParallelGroups(calls) {
		var wg sync.WaitGroup
		for _, call := range group {
			wg.Add(1)
			go func(tc models.ToolCall) {
				defer wg.Done()
				res := r.Execute(ctx, r.currentMode(), tc)
				results[index[tc.ID]] = res
			}(call)
		}
		wg.Wait()
	}
	return results
}

// ExecutionResult is the outcome of one tool call, including timing and
// retry accounting.
type ExecutionResult struct {
	ToolCallID string
	ToolName   string
	Result     *models.ToolResult
	Error      error
	Duration   time.Duration
	Attempts   int
	Decision   models.ToolPolicyDecision
}

// Execute runs the full pipeline for one tool call: validate, gate,
// cache, circuit-break, rate-limit, time out, execute, spool, record.
func (r *ToolRegistry) Execute(ctx context.Context, mode models.EditingMode, call models.ToolCall) *ExecutionResult {
	start := time.Now()
	res := &ExecutionResult{ToolCallID: call.ID, ToolName: call.Name}

	name := canonicalToolName(call.Name)
	if len(call.Arguments) > MaxToolParamsSize {
		res.Error = NewToolError(name, fmt.Errorf("arguments exceed %d bytes", MaxToolParamsSize)).WithType(ToolErrorInvalidInput).WithToolCallID(call.ID)
		res.Duration = time.Since(start)
		r.recordDecision(name, call, res)
		return res
	}

	t, ok := r.Get(name)
	if !ok {
		res.Error = NewToolError(name, ErrToolNotFound).WithType(ToolErrorNotFound).WithToolCallID(call.ID)
		res.Duration = time.Since(start)
		r.recordDecision(name, call, res)
		return res
	}

	if err := validateArgs(t, call.Arguments); err != nil {
		res.Error = NewToolError(name, err).WithType(ToolErrorInvalidInput).WithToolCallID(call.ID)
		res.Duration = time.Since(start)
		r.recordDecision(name, call, res)
		return res
	}

	if r.gateway != nil {
		decision, reason := r.gateway.Evaluate(mode, call, t.Mutates())
		res.Decision = decision
		if decision == models.PolicyDeny {
			res.Error = NewToolError(name, fmt.Errorf("denied by policy: %s", reason)).WithType(ToolErrorPermission).WithToolCallID(call.ID)
			res.Duration = time.Since(start)
			r.recordDecision(name, call, res)
			return res
		}
		// PolicyPromptUser is surfaced to the caller via Decision; the
		// turn engine is responsible for blocking on user confirmation
		// before Execute is invoked again with an allow.
	}

	cacheKey := name + "\x00" + string(call.Arguments)
	if !t.Mutates() {
		if cached, ok := r.lookupCache(cacheKey); ok {
			res.Result = &cached
			res.Duration = time.Since(start)
			return res
		}
	}

	tc := r.getToolConfig(name)
	timeout := r.config.DefaultTimeout
	maxRetries := r.config.DefaultRetries
	backoff := r.config.RetryBackoff
	if tc != nil {
		if tc.Timeout > 0 {
			timeout = tc.Timeout
		}
		if tc.Retries >= 0 {
			maxRetries = tc.Retries
		}
		if tc.RetryBackoff > 0 {
			backoff = tc.RetryBackoff
		}
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		res.Error = NewToolError(name, ctx.Err()).WithType(ToolErrorTimeout).WithToolCallID(call.ID)
		res.Duration = time.Since(start)
		r.recordDecision(name, call, res)
		return res
	}

	if r.limiter != nil {
		if err := r.limiter.Acquire(ctx, t.Priority()); err != nil {
			res.Error = NewToolError(name, err).WithType(ToolErrorRateLimit).WithToolCallID(call.ID)
			res.Duration = time.Since(start)
			r.recordDecision(name, call, res)
			return res
		}
	}

	var breaker *infra.CircuitBreaker
	if r.breakers != nil {
		breaker = r.breakers.For(t.Category())
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		res.Attempts = attempt + 1

		var execRes *models.ToolResult
		var execErr error
		run := func(execCtx context.Context) error {
			execRes, execErr = r.executeWithTimeout(execCtx, t, call, timeout)
			return execErr
		}
		if breaker != nil {
			if err := breaker.Execute(ctx, run); err != nil && execErr == nil {
				execErr = err
			}
		} else {
			_ = run(ctx)
		}

		if execErr == nil {
			res.Result = execRes
			res.Duration = time.Since(start)
			if !t.Mutates() {
				r.storeCache(cacheKey, *execRes)
			}
			r.spoolResult(name, res)
			r.recordDecision(name, call, res)
			return res
		}

		lastErr = execErr
		if !IsToolRetryable(execErr) || ctx.Err() != nil || attempt >= maxRetries {
			break
		}

		sleep := backoff * time.Duration(1<<uint(attempt))
		if sleep > r.config.MaxRetryBackoff {
			sleep = r.config.MaxRetryBackoff
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			lastErr = NewToolError(name, ctx.Err()).WithType(ToolErrorTimeout).WithToolCallID(call.ID)
		}
	}

	res.Error = lastErr
	res.Duration = time.Since(start)
	r.recordDecision(name, call, res)
	return res
}

// executeWithTimeout runs t.Execute under a per-call timeout, recovering
// from panics as a ToolErrorPanic.
func (r *ToolRegistry) executeWithTimeout(ctx context.Context, t Tool, call models.ToolCall, timeout time.Duration) (*models.ToolResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *models.ToolResult
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- outcome{err: NewToolError(call.Name, fmt.Errorf("panic: %v\n%s", rec, debug.Stack())).WithType(ToolErrorPanic).WithToolCallID(call.ID)}
			}
		}()
		result, err := t.Execute(execCtx, call.Arguments)
		if err != nil {
			ch <- outcome{err: NewToolError(call.Name, err).WithToolCallID(call.ID)}
			return
		}
		ch <- outcome{result: &result}
	}()

	select {
	case out := <-ch:
		return out.result, out.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, NewToolError(call.Name, ctx.Err()).WithType(ToolErrorTimeout).WithToolCallID(call.ID).WithMessage("context cancelled")
		}
		return nil, NewToolError(call.Name, ErrToolTimeout).WithType(ToolErrorTimeout).WithToolCallID(call.ID).WithMessage(fmt.Sprintf("execution timed out after %s", timeout))
	}
}

func (r *ToolRegistry) getToolConfig(name string) *ToolConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.toolConfig[name]
}

func (r *ToolRegistry) lookupCache(key string) (models.ToolResult, bool) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	entry, ok := r.cache[key]
	if !ok || time.Now().After(entry.expires) {
		return models.ToolResult{}, false
	}
	return entry.result, true
}

func (r *ToolRegistry) storeCache(key string, result models.ToolResult) {
	if r.config.CacheTTL <= 0 {
		return
	}
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache[key] = cacheEntry{result: result, expires: time.Now().Add(r.config.CacheTTL)}
}

func (r *ToolRegistry) spoolResult(name string, res *ExecutionResult) {
	if r.spooler == nil || res.Result == nil {
		return
	}
	if handle, spooled := r.spooler.Spool(name, res.Result.Content); spooled {
		res.Result.Content = handle
	}
}

func (r *ToolRegistry) recordDecision(name string, call models.ToolCall, res *ExecutionResult) {
	if r.recorder == nil {
		return
	}
	outcome := models.OutcomeSuccess
	reason := ""
	if res.Error != nil {
		outcome = models.OutcomeFailure
		reason = res.Error.Error()
	}
	r.recorder.Record(models.DecisionRecord{
		ID:               call.ID,
		Timestamp:        time.Now(),
		ToolName:         name,
		ArgsSummary:      summarizeArgs(call.Arguments),
		Outcome:          outcome,
		FailureReason:    reason,
		RecoveryAttempts: res.Attempts - 1,
	})
}

func summarizeArgs(raw []byte) string {
	const maxLen = 200
	s := string(raw)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// ExecutorMetrics mirrors the teacher's parallel-executor counters.
type ExecutorMetrics struct {
	mu              sync.Mutex
	TotalExecutions int64
	TotalRetries    int64
	TotalFailures   int64
	TotalTimeouts   int64
	TotalPanics     int64
}

// ToolConfig holds per-tool overrides for timeout, retry, and priority.
type ToolConfig struct {
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	Priority     int
}

// ResultsToMessages converts execution results into tool-role messages
// ready to append to the conversation.
func ResultsToMessages(results []*ExecutionResult) []models.ToolResult {
	out := make([]models.ToolResult, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Error != nil {
			out = append(out, models.ToolResult{ToolCallID: r.ToolCallID, ToolName: r.ToolName, Content: r.Error.Error(), IsError: true})
			continue
		}
		if r.Result != nil {
			out = append(out, *r.Result)
		}
	}
	return out
}

// AnyErrors reports whether any execution result failed.
func AnyErrors(results []*ExecutionResult) bool {
	for _, r := range results {
		if r != nil && r.Error != nil {
			return true
		}
	}
	return false
}
