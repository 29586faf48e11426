package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}

	seen := make(map[string]bool)
	for i, provider := range c.Providers {
		if provider.Name == "" {
			return fmt.Errorf("provider[%d].name is required", i)
		}
		if strings.Contains(provider.Name, "/") {
			return fmt.Errorf("provider[%d].name must not contain '/'", i)
		}
		if seen[provider.Name] {
			return fmt.Errorf("provider[%d].name %q is duplicated", i, provider.Name)
		}
		seen[provider.Name] = true

		if provider.BaseURL == "" {
			return fmt.Errorf("provider[%d].base_url is required", i)
		}
		if len(provider.Models) == 0 {
			return fmt.Errorf("provider[%d] must have at least one model", i)
		}
		for j, model := range provider.Models {
			if model.ID == "" {
				return fmt.Errorf("provider[%d].models[%d].id is required", i, j)
			}
		}
	}

	if c.Defaults.Model == "" {
		return fmt.Errorf("defaults.model is required")
	}
	if _, _, err := c.ResolveModel(c.Defaults.Model); err != nil {
		return fmt.Errorf("defaults.model: %w", err)
	}
	if c.Defaults.MaxTokens <= 0 || c.Defaults.ToolMaxTokens <= 0 {
		return fmt.Errorf("defaults.max_tokens and defaults.tool_max_tokens must be positive")
	}

	for name, levels := range map[string][]int{
		"probe.param_levels":      c.Probe.ParamLevels,
		"probe.tool_levels":       c.Probe.ToolLevels,
		"probe.sequential_levels": c.Probe.SequentialLevels,
	} {
		if err := validateLevels(levels); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if n := len(c.Probe.SequentialLevels); n > 0 && c.Probe.SequentialTools < c.Probe.SequentialLevels[n-1] {
		return fmt.Errorf("probe.sequential_tools must cover the largest sequential level")
	}

	o := c.Orchestrator
	if o.MaxChainDepth <= 0 || o.MaxIterations <= 0 {
		return fmt.Errorf("orchestrator.max_chain_depth and orchestrator.max_iterations must be positive")
	}
	if o.KeepRecent <= 0 || o.MaxHistoryMessages <= o.KeepRecent {
		return fmt.Errorf("orchestrator.max_history_messages must exceed orchestrator.keep_recent")
	}
	if (o.TokenBudget > 0 || o.RequestsPerHour > 0) && !c.Redis.Enabled() {
		return fmt.Errorf("orchestrator.token_budget and orchestrator.requests_per_hour require redis.address")
	}
	if len(c.MCP.Command) > 0 && c.MCP.URL != "" {
		return fmt.Errorf("mcp.command and mcp.url are mutually exclusive")
	}

	return nil
}

// validateLevels requires a non-empty, strictly increasing list of positive levels
func validateLevels(levels []int) error {
	if len(levels) == 0 {
		return fmt.Errorf("at least one level is required")
	}
	prev := 0
	for _, l := range levels {
		if l <= prev {
			return fmt.Errorf("levels must be positive and strictly increasing")
		}
		prev = l
	}
	return nil
}

// GetProvider returns a provider by name
func (c *Config) GetProvider(name string) (*Provider, error) {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i], nil
		}
	}
	return nil, fmt.Errorf("provider %s not found", name)
}

// ResolveModel returns the provider and model for a model reference (e.g., "local/Qwen3-Omni-10k")
func (c *Config) ResolveModel(modelRef string) (*Provider, *Model, error) {
	providerName, modelID, ok := strings.Cut(modelRef, "/")
	if !ok || providerName == "" || modelID == "" {
		return nil, nil, fmt.Errorf("invalid model reference: %s (expected format: provider/model)", modelRef)
	}

	provider, err := c.GetProvider(providerName)
	if err != nil {
		return nil, nil, err
	}

	for i := range provider.Models {
		if provider.Models[i].ID == modelID {
			return provider, &provider.Models[i], nil
		}
	}

	return nil, nil, fmt.Errorf("model %s not found in provider %s", modelID, providerName)
}
