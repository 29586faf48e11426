// Package app wires configuration, model clients and the optional Redis
// backed stores into the pieces the commands run.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/s33g/omni-probe/internal/config"
	"github.com/s33g/omni-probe/internal/conversation"
	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/mcp"
	"github.com/s33g/omni-probe/internal/orchestrator"
	"github.com/s33g/omni-probe/internal/probe"
	"github.com/s33g/omni-probe/internal/ratelimit"
	"github.com/s33g/omni-probe/internal/results"
	"github.com/s33g/omni-probe/internal/storage"
	"github.com/s33g/omni-probe/internal/tools"
)

var (
	// ErrStorageDisabled is returned by features that need redis.address
	ErrStorageDisabled = errors.New("redis storage is not configured")
	// ErrMCPDisabled is returned when no MCP server is configured or given
	ErrMCPDisabled = errors.New("no mcp server configured")
)

// App holds the long-lived components shared by commands
type App struct {
	config     *config.Config
	configPath string
	configMu   sync.RWMutex
	watcher    *config.Watcher
	registry   *llm.Registry
	storage    *storage.Client
	results    *results.Store
	sessions   *conversation.SessionStore
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger
}

// New creates the application. Redis is connected only when configured.
func New(ctx context.Context, cfg *config.Config, configPath string, logger zerolog.Logger) (*App, error) {
	registry, err := llm.NewRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM registry: %w", err)
	}

	a := &App{
		config:     cfg,
		configPath: configPath,
		registry:   registry,
		logger:     logger.With().Str("component", "app").Logger(),
	}

	if cfg.Redis.Enabled() {
		client, err := storage.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		limiter, err := ratelimit.NewLimiter(ctx, client)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}

		a.storage = client
		a.limiter = limiter
		a.results = results.NewStore(client, cfg.Probe.ResultTTL())
		a.sessions = conversation.NewSessionStore(client, cfg.Orchestrator.SessionTTL())
		a.logger.Debug().Str("address", cfg.Redis.Address).Msg("Connected to Redis")
	}

	return a, nil
}

// Config safely returns the current configuration
func (a *App) Config() *config.Config {
	a.configMu.RLock()
	defer a.configMu.RUnlock()
	return a.config
}

// Registry returns the model client registry
func (a *App) Registry() *llm.Registry {
	return a.registry
}

// Results returns the report store
func (a *App) Results() (*results.Store, error) {
	if a.results == nil {
		return nil, ErrStorageDisabled
	}
	return a.results, nil
}

// Sessions returns the orchestrator session store
func (a *App) Sessions() (*conversation.SessionStore, error) {
	if a.sessions == nil {
		return nil, ErrStorageDisabled
	}
	return a.sessions, nil
}

// PingStorage checks the Redis connection and returns its address and round trip time
func (a *App) PingStorage(ctx context.Context) (string, time.Duration, error) {
	if a.storage == nil {
		return "", 0, ErrStorageDisabled
	}
	rtt, err := a.storage.Ping(ctx)
	return a.storage.Address(), rtt, err
}

// ModelRef returns ref, or the configured default when ref is empty
func (a *App) ModelRef(ref string) string {
	if ref != "" {
		return ref
	}
	return a.Config().Defaults.Model
}

// Endpoint returns a caller for ref with the given sampling settings
func (a *App) Endpoint(ref string, temperature float64, maxTokens int) (*llm.Endpoint, error) {
	ref = a.ModelRef(ref)
	if _, _, err := a.registry.Resolve(ref); err != nil {
		return nil, err
	}
	return llm.NewEndpoint(a.registry, ref, temperature, maxTokens), nil
}

// ToolEndpoint returns a caller using the tool-calling sampling defaults
func (a *App) ToolEndpoint(ref string) (*llm.Endpoint, error) {
	d := a.Config().Defaults
	return a.Endpoint(ref, d.ToolTemperature, d.ToolMaxTokens)
}

// Limits returns the chain limits from the orchestrator configuration
func (a *App) Limits() conversation.Limits {
	o := a.Config().Orchestrator
	return conversation.Limits{
		MaxChainDepth:   o.MaxChainDepth,
		MaxHistory:      o.MaxHistoryMessages,
		KeepRecent:      o.KeepRecent,
		RecallSafeDepth: o.RecallSafeDepth,
	}
}

// SaveRun stores a probe run when storage is configured. The run is left
// unsaved, with an empty ID, otherwise.
func (a *App) SaveRun(ctx context.Context, run *results.Run) error {
	if a.results == nil {
		a.logger.Debug().Msg("Storage disabled, run not saved")
		return nil
	}
	return a.results.Save(ctx, run)
}

// NewRun creates a run record for reports produced against ref
func (a *App) NewRun(ref, kind string, reports ...*probe.Report) *results.Run {
	return &results.Run{
		Model:     a.ModelRef(ref),
		Kind:      kind,
		Reports:   reports,
		CreatedAt: time.Now(),
	}
}

// OrchestratorOptions select the model and session for an orchestrator
type OrchestratorOptions struct {
	ModelRef string
	// SessionID resumes or creates a stored session; empty runs without one
	SessionID string
	// NewSession creates a session with a fresh ID
	NewSession bool
	// MCP, when set, replaces the dataset tools with the server's tools
	MCP *mcp.Client
}

// NewOrchestrator builds an orchestrator over the dataset tools with the
// configured limits, pacing, budget and context window.
func (a *App) NewOrchestrator(ctx context.Context, opts OrchestratorOptions) (*orchestrator.Orchestrator, error) {
	cfg := a.Config()
	ref := a.ModelRef(opts.ModelRef)

	endpoint, err := a.ToolEndpoint(ref)
	if err != nil {
		return nil, err
	}
	_, model, err := a.registry.Resolve(ref)
	if err != nil {
		return nil, err
	}

	oc := orchestrator.Config{
		Caller:            endpoint,
		Tools:             tools.Chain(),
		Executor:          tools.NewDatasetExecutor(tools.DefaultDataset()),
		Limits:            a.Limits(),
		MaxIterations:     cfg.Orchestrator.MaxIterations,
		RequestsPerMinute: cfg.Orchestrator.RequestsPerMinute,
		Model:             model.ID,
	}

	if opts.MCP != nil {
		defs, err := opts.MCP.Definitions(ctx)
		if err != nil {
			return nil, err
		}
		oc.Tools = defs
		oc.Executor = opts.MCP.Executor(ctx)
		oc.System = mcp.SystemPrompt(defs)
		a.logger.Info().Int("tools", len(defs)).Msg("Using MCP server tools")
	}

	if model.ContextWindow > 0 {
		oc.Context = conversation.NewContextBuilder(model.ContextWindow, cfg.Defaults.ToolMaxTokens)
	}

	if a.limiter != nil && (cfg.Orchestrator.RequestsPerHour > 0 || cfg.Orchestrator.TokenBudget > 0) {
		budget := orchestrator.NewRedisBudget(a.limiter, ref,
			cfg.Orchestrator.RequestsPerHour, cfg.Orchestrator.TokenBudget, cfg.Orchestrator.BudgetPeriodHours)
		endpoint.OnUsage = budget.Record
		oc.Budget = budget
	}

	if opts.SessionID != "" || opts.NewSession {
		if a.sessions == nil {
			return nil, fmt.Errorf("sessions: %w", ErrStorageDisabled)
		}
		sess, state, err := a.loadSession(ctx, opts.SessionID, ref)
		if err != nil {
			return nil, err
		}
		oc.Sessions = a.sessions
		oc.Session = sess
		oc.State = state
	}

	return orchestrator.New(oc, a.logger), nil
}

// ConnectMCP starts or reaches an MCP server. A non-empty command or url
// overrides the mcp section of the configuration.
func (a *App) ConnectMCP(ctx context.Context, command []string, url string) (*mcp.Client, error) {
	mc := a.Config().MCP
	if len(command) > 0 || url != "" {
		mc.Command, mc.URL = command, url
	}
	if !mc.Enabled() {
		return nil, ErrMCPDisabled
	}

	return mcp.Open(ctx, mc.Command, mc.URL, mc.Timeout(), a.logger)
}

// loadSession resumes id, or starts a new session when it does not exist
func (a *App) loadSession(ctx context.Context, id, ref string) (*conversation.Session, *conversation.ChainState, error) {
	if id != "" {
		sess, state, err := a.sessions.Load(ctx, id, a.Limits())
		if err == nil {
			a.logger.Info().Str("session", id).Int("depth", state.Depth()).Msg("Resumed session")
			return sess, state, nil
		}
		if !errors.Is(err, conversation.ErrSessionNotFound) {
			return nil, nil, err
		}
	} else {
		id = uuid.NewString()
	}

	now := time.Now()
	sess := &conversation.Session{
		ID:        id,
		Model:     ref,
		CreatedAt: now,
		UpdatedAt: now,
	}
	a.logger.Info().Str("session", id).Msg("Started session")
	return sess, conversation.NewChainState(a.Limits()), nil
}

// Watch reloads the configuration on file changes until ctx is done
func (a *App) Watch(ctx context.Context) {
	if a.configPath == "" {
		return
	}
	watcher, err := config.NewWatcher(a.configPath, a.Reload, a.logger)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to create config watcher - hot reload disabled")
		return
	}
	a.watcher = watcher
	watcher.Start(ctx)
}

// Reload applies a new configuration. Redis settings take effect on restart.
func (a *App) Reload(cfg *config.Config) error {
	a.configMu.Lock()
	defer a.configMu.Unlock()

	if err := a.registry.Reload(cfg); err != nil {
		return fmt.Errorf("failed to reload LLM registry: %w", err)
	}

	if cfg.Redis != a.config.Redis {
		a.logger.Warn().Msg("Redis settings changed, restart to apply")
	}

	a.config = cfg
	a.logger.Info().Msg("Configuration reloaded successfully")
	return nil
}

// Close stops the watcher and closes the Redis connection
func (a *App) Close() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	return nil
}
