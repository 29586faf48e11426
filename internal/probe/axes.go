package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/tools"
)

// Axis names
const (
	AxisParameters = "parameters"
	AxisToolCount  = "tool_count"
	AxisSequential = "sequential_calls"
	AxisChainDepth = "chain_depth"
)

// Default levels per axis
var (
	DefaultParamLevels      = []int{1, 2, 5, 10, 15, 20, 25, 30}
	DefaultToolLevels       = []int{1, 5, 10, 20, 30, 50, 75, 100}
	DefaultSequentialLevels = []int{1, 2, 3, 5, 7, 10, 15, 20}
)

// Prober runs the probe axes against one model
type Prober struct {
	caller Caller
	exec   tools.Executor
	logger zerolog.Logger
}

// NewProber creates a prober whose tool calls are answered by the generic mock
func NewProber(caller Caller, logger zerolog.Logger) *Prober {
	return &Prober{
		caller: caller,
		exec:   tools.GenericMock,
		logger: logger.With().Str("component", "probe").Logger(),
	}
}

// run wraps Run with per-level logging
func (p *Prober) run(ctx context.Context, axis string, levels []int, check Check) *Report {
	logged := func(ctx context.Context, level int) (bool, string, error) {
		passed, detail, err := check(ctx, level)
		event := p.logger.Info()
		if err != nil || !passed {
			event = p.logger.Warn().Err(err)
		}
		event.Str("axis", axis).
			Int("level", level).
			Bool("passed", passed && err == nil).
			Str("detail", detail).
			Msg("Probe level finished")
		return passed, detail, err
	}

	report := Run(ctx, axis, levels, logged)
	p.logger.Info().
		Str("axis", axis).
		Int("max_level", report.MaxLevel).
		Int("stopped_at", report.StoppedAt).
		Msg("Probe finished")
	return report
}

// Parameters offers one tool with n parameters and expects test_tool to be called
func (p *Prober) Parameters(ctx context.Context, levels []int) *Report {
	return p.run(ctx, AxisParameters, levels, func(ctx context.Context, n int) (bool, string, error) {
		values := make([]string, n)
		for i := range values {
			values[i] = fmt.Sprintf("value%d", i+1)
		}
		query := "Call the test tool with these values: " + strings.Join(values, ", ")

		res, err := Cycle(ctx, p.caller, nil, query, []llm.ToolDefinition{tools.WithParams(n)}, p.exec)
		if err != nil {
			return false, "", err
		}
		if len(res.Calls) == 0 {
			return false, "no tool call", nil
		}

		included := 0
		for i := 1; i <= n; i++ {
			if strings.Contains(res.Calls[0], fmt.Sprintf("param_%d", i)) {
				included++
			}
		}
		return strings.Contains(res.Calls[0], "test_tool"), fmt.Sprintf("%d/%d params included", included, n), nil
	})
}

// ToolCount offers n tools and expects tool_1 to be selected
func (p *Prober) ToolCount(ctx context.Context, levels []int) *Report {
	return p.run(ctx, AxisToolCount, levels, func(ctx context.Context, n int) (bool, string, error) {
		res, err := Cycle(ctx, p.caller, nil, "Use tool_1 with input 'test'", tools.Simple(n), p.exec)
		if err != nil {
			return false, "", err
		}
		if len(res.Calls) == 0 {
			return false, "no tool call", nil
		}
		return strings.Contains(res.Calls[0], "tool_1"), "called " + res.Calls[0], nil
	})
}

// Sequential asks for n calls in one turn out of a fixed pool of poolSize tools
func (p *Prober) Sequential(ctx context.Context, levels []int, poolSize int) *Report {
	defs := tools.Simple(poolSize)

	return p.run(ctx, AxisSequential, levels, func(ctx context.Context, n int) (bool, string, error) {
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("tool_%d", i+1)
		}
		query := "Call these tools in order: " + strings.Join(names, ", ")

		res, err := Cycle(ctx, p.caller, nil, query, defs, p.exec)
		if err != nil {
			return false, "", err
		}

		correct := 0
		for i := 0; i < min(n, len(res.Calls)); i++ {
			if strings.Contains(res.Calls[i], names[i]) {
				correct++
			}
		}
		return len(res.Calls) >= n, fmt.Sprintf("got %d/%d calls, %d correct", len(res.Calls), n, correct), nil
	})
}
