package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Providers    []Provider         `yaml:"providers"`
	Defaults     DefaultsConfig     `yaml:"defaults"`
	Probe        ProbeConfig        `yaml:"probe"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Redis        RedisConfig        `yaml:"redis"`
	MCP          MCPConfig          `yaml:"mcp"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// Provider represents an OpenAI-compatible inference server
type Provider struct {
	Name           string  `yaml:"name"`
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Models         []Model `yaml:"models"`
}

// Timeout returns the request timeout, falling back to two minutes
func (p *Provider) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Model represents a model served by a provider
type Model struct {
	ID            string `yaml:"id"`
	DisplayName   string `yaml:"display_name"`
	ContextWindow int    `yaml:"context_window"`
}

// DefaultsConfig holds request defaults shared by all commands
type DefaultsConfig struct {
	Model           string  `yaml:"model"` // provider/model
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	ToolTemperature float64 `yaml:"tool_temperature"`
	ToolMaxTokens   int     `yaml:"tool_max_tokens"`
	AssetsDir       string  `yaml:"assets_dir"`
}

// ProbeConfig holds the levels walked by each probe axis
type ProbeConfig struct {
	ParamLevels      []int `yaml:"param_levels"`
	ToolLevels       []int `yaml:"tool_levels"`
	SequentialLevels []int `yaml:"sequential_levels"`
	SequentialTools  int   `yaml:"sequential_tools"`
	// ChainTemperature is used for chain depth and recall probes
	ChainTemperature float64 `yaml:"chain_temperature"`
	ResultTTLHours   int     `yaml:"result_ttl_hours"`
}

// ResultTTL returns how long stored probe reports live
func (p *ProbeConfig) ResultTTL() time.Duration {
	return time.Duration(p.ResultTTLHours) * time.Hour
}

// OrchestratorConfig holds the limits the continuous orchestrator respects
type OrchestratorConfig struct {
	MaxChainDepth      int `yaml:"max_chain_depth"`
	MaxHistoryMessages int `yaml:"max_history_messages"`
	KeepRecent         int `yaml:"keep_recent"`
	RecallSafeDepth    int `yaml:"recall_safe_depth"`
	MaxIterations      int `yaml:"max_iterations"`
	RequestsPerMinute  int `yaml:"requests_per_minute"`
	// RequestsPerHour is enforced in Redis across processes; 0 disables it
	RequestsPerHour int `yaml:"requests_per_hour"`
	// TokenBudget is the per-period token allowance; 0 disables the check
	TokenBudget       int `yaml:"token_budget"`
	BudgetPeriodHours int `yaml:"budget_period_hours"`
	SessionTTLHours   int `yaml:"session_ttl_hours"`
}

// SessionTTL returns how long stored orchestrator sessions live
func (o *OrchestratorConfig) SessionTTL() time.Duration {
	return time.Duration(o.SessionTTLHours) * time.Hour
}

// RedisConfig holds Redis connection settings; an empty address disables storage
type RedisConfig struct {
	Address     string `yaml:"address"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	KeyPrefix   string `yaml:"key_prefix"`
}

// Enabled reports whether Redis-backed features are configured
func (r *RedisConfig) Enabled() bool {
	return r.Address != ""
}

// MCPConfig points the orchestrator at a Model Context Protocol tool server,
// either a command speaking stdio or a streamable HTTP endpoint
type MCPConfig struct {
	Command        []string `yaml:"command"`
	URL            string   `yaml:"url"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Enabled reports whether a server is configured
func (m *MCPConfig) Enabled() bool {
	return len(m.Command) > 0 || m.URL != ""
}

// Timeout bounds a single tools/call request
func (m *MCPConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}
