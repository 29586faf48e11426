package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"

	"github.com/s33g/omni-probe/internal/app"
	"github.com/s33g/omni-probe/internal/probe"
	"github.com/s33g/omni-probe/internal/results"
	"github.com/s33g/omni-probe/internal/tools"
)

var allAxes = []string{probe.AxisParameters, probe.AxisToolCount, probe.AxisSequential}

// printReport prints a report table followed by its summary line
func printReport(r *probe.Report) {
	fmt.Printf("\n%s\n\n", r.Axis)
	printTable(r.Table())
	fmt.Printf("\n%s\n", r.Summary())
}

// saveRun stores run and prints its ID when storage is configured
func saveRun(ctx context.Context, a *app.App, run *results.Run) error {
	if err := a.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if run.ID != "" {
		fmt.Printf("\nSaved run %s\n", run.ID)
	}
	return nil
}

var probeCmd = &cli.Command{
	Name:        "probe",
	Usage:       "Find tool-calling limits",
	Description: "Walk the parameter count, tool count and sequential call axes, stopping each at its first failure.",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "axis",
			Usage: "Axis to probe (parameters, tool_count, sequential_calls), can be given multiple times. Defaults to all.",
		},
	},
	MaxArgs: cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		axes := cmd.GetStringSlice("axis")
		if len(axes) == 0 {
			axes = allAxes
		}
		for _, axis := range axes {
			if !slices.Contains(allAxes, axis) {
				return fmt.Errorf("unknown axis %q", axis)
			}
		}

		ref := cmd.GetString("model")
		endpoint, err := a.ToolEndpoint(ref)
		if err != nil {
			return err
		}

		cfg := a.Config().Probe
		prober := probe.NewProber(endpoint, log.Logger)
		run := a.NewRun(ref, "probe")

		for _, axis := range axes {
			var report *probe.Report
			switch axis {
			case probe.AxisParameters:
				report = prober.Parameters(ctx, cfg.ParamLevels)
			case probe.AxisToolCount:
				report = prober.ToolCount(ctx, cfg.ToolLevels)
			case probe.AxisSequential:
				report = prober.Sequential(ctx, cfg.SequentialLevels, cfg.SequentialTools)
			}
			printReport(report)
			run.Reports = append(run.Reports, report)

			if ctx.Err() != nil {
				break
			}
		}

		return saveRun(ctx, a, run)
	},
}

var chainCmd = &cli.Command{
	Name:        "chain",
	Usage:       "Find the tool-chain depth limit",
	Description: "Walk the eight step customer to manager chain in one conversation, then ask recall questions about earlier steps.",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:         "steps",
			Usage:        "Number of chain steps to walk.",
			DefaultValue: len(tools.ChainSteps),
		},
		&cli.BoolFlag{
			Name:         "recall",
			Usage:        "Ask history retention questions after the chain.",
			DefaultValue: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		steps := cmd.GetInt("steps")
		if steps < 1 || steps > len(tools.ChainSteps) {
			return fmt.Errorf("steps must be between 1 and %d", len(tools.ChainSteps))
		}

		ref := cmd.GetString("model")
		d := a.Config().Defaults
		endpoint, err := a.Endpoint(ref, a.Config().Probe.ChainTemperature, d.ToolMaxTokens)
		if err != nil {
			return err
		}

		prober := probe.NewProber(endpoint, log.Logger)
		exec := tools.NewDatasetExecutor(tools.DefaultDataset())

		chain := prober.ChainDepth(ctx, tools.ChainSteps[:steps], exec)
		printReport(chain.Report)

		run := a.NewRun(ref, "chain", chain.Report)
		run.History = chain.History

		if cmd.GetBool("recall") && ctx.Err() == nil {
			recall := prober.HistoryRetention(ctx, chain.History, probe.DefaultRecallQuestions)
			fmt.Printf("\nhistory retention\n\n")
			printTable(recall.Table())
			fmt.Printf("\n%s\n", recall.Summary())
			run.Recall = recall
		}

		return saveRun(ctx, a, run)
	},
}

var scenariosCmd = &cli.Command{
	Name:        "scenarios",
	Usage:       "Run full tool cycles",
	Description: "Play multi-turn weather, stock and search conversations where every tool call is answered and the model must use the results.",
	MaxArgs:     cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		endpoint, err := a.ToolEndpoint(cmd.GetString("model"))
		if err != nil {
			return err
		}

		prober := probe.NewProber(endpoint, log.Logger)
		res := prober.RunScenarios(ctx, probe.DemoScenarios, tools.DemoMock)

		passed := 0
		table := [][]string{{"Scenario", "Result", "Error"}}
		for _, r := range res {
			mark := "✗"
			if r.Passed {
				mark = "✓"
				passed++
			}
			table = append(table, []string{r.Name, mark, r.Err})
		}
		printTable(table)
		fmt.Printf("\nPassed: %d/%d\n", passed, len(res))
		return nil
	},
}
