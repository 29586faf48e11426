package config

// DefaultConfig returns sensible defaults for a local llama.cpp style server
func DefaultConfig() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Temperature:     0.1,
			MaxTokens:       8192,
			ToolTemperature: 0.3,
			ToolMaxTokens:   512,
			AssetsDir:       "assets",
		},
		Probe: ProbeConfig{
			ParamLevels:      []int{1, 2, 5, 10, 15, 20, 25, 30},
			ToolLevels:       []int{1, 5, 10, 20, 30, 50, 75, 100},
			SequentialLevels: []int{1, 2, 3, 5, 7, 10, 15, 20},
			SequentialTools:  20,
			ChainTemperature: 0,
			ResultTTLHours:   720, // 30 days
		},
		Orchestrator: OrchestratorConfig{
			MaxChainDepth:      8,
			MaxHistoryMessages: 20,
			KeepRecent:         10,
			RecallSafeDepth:    5,
			MaxIterations:      5,
			RequestsPerMinute:  60,
			BudgetPeriodHours:  24,
			SessionTTLHours:    24,
		},
		Redis: RedisConfig{
			DB:        0,
			KeyPrefix: "omniprobe:",
		},
		MCP: MCPConfig{
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
