package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paularlott/cli"
)

var runsCmd = &cli.Command{
	Name:        "runs",
	Usage:       "Inspect stored probe runs",
	Description: "List, show and delete probe runs saved in Redis.",
	Commands: []*cli.Command{
		runsListCmd,
		runsShowCmd,
		runsDeleteCmd,
	},
}

var runsListCmd = &cli.Command{
	Name:        "list",
	Usage:       "List recent runs",
	Description: "List the most recent runs, optionally for one model only.",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:         "limit",
			Aliases:      []string{"n"},
			Usage:        "Number of runs to list.",
			DefaultValue: 20,
		},
		&cli.BoolFlag{
			Name:  "all-models",
			Usage: "List runs for every model instead of the selected one.",
		},
	},
	MaxArgs: cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := a.Results()
		if err != nil {
			return err
		}

		model := a.ModelRef(cmd.GetString("model"))
		if cmd.GetBool("all-models") {
			model = ""
		}

		runs, err := store.Recent(ctx, model, cmd.GetInt("limit"))
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}

		table := [][]string{{"ID", "Created", "Model", "Kind", "Limits"}}
		for _, r := range runs {
			limits := r.Limits()
			axes := make([]string, 0, len(limits))
			for axis := range limits {
				axes = append(axes, axis)
			}
			sort.Strings(axes)

			parts := make([]string, 0, len(axes))
			for _, axis := range axes {
				parts = append(parts, axis+"="+strconv.Itoa(limits[axis]))
			}
			table = append(table, []string{r.ID, r.CreatedAt.Format(time.DateTime), r.Model, r.Kind, strings.Join(parts, " ")})
		}
		printTable(table)
		return nil
	},
}

var runsShowCmd = &cli.Command{
	Name:        "show",
	Usage:       "Show a run",
	Description: "Print the per-level log of a stored run.",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the stored JSON document.",
		},
	},
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "id",
			Usage:    "The run ID",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := a.Results()
		if err != nil {
			return err
		}

		run, err := store.Get(ctx, cmd.GetStringArg("id"))
		if err != nil {
			return err
		}

		if cmd.GetBool("json") {
			data, err := json.MarshalIndent(run, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Run: %s\nModel: %s\nKind: %s\nCreated: %s\n", run.ID, run.Model, run.Kind, run.CreatedAt.Format(time.DateTime))
		for _, r := range run.Reports {
			printReport(r)
		}
		if run.Recall != nil {
			fmt.Printf("\nhistory retention\n\n")
			printTable(run.Recall.Table())
			fmt.Printf("\n%s\n", run.Recall.Summary())
		}
		return nil
	},
}

var runsDeleteCmd = &cli.Command{
	Name:        "delete",
	Usage:       "Delete a run",
	Description: "Delete a stored run and its index entries.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "id",
			Usage:    "The run ID",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := a.Results()
		if err != nil {
			return err
		}

		id := cmd.GetStringArg("id")
		if err := store.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s.\n", id)
		return nil
	},
}
