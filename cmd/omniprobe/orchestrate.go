package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/paularlott/cli"

	"github.com/s33g/omni-probe/internal/app"
	"github.com/s33g/omni-probe/internal/mcp"
	"github.com/s33g/omni-probe/internal/orchestrator"
)

var orchestrateCmd = &cli.Command{
	Name:        "orchestrate",
	Usage:       "Run the continuous tool-chain orchestrator",
	Description: "Answer queries with the customer and supply chain tools, or an MCP server's tools with --mcp, while staying inside the configured chain depth, history and request limits. Queries come from the arguments, from stdin with --stdin, or the built-in demo.",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "stdin",
			Usage: "Read one query per line from stdin until EOF.",
		},
		&cli.BoolFlag{
			Name:  "support",
			Usage: "Run the customer support demo inquiries.",
		},
		&cli.BoolFlag{
			Name:  "inventory",
			Usage: "Run the low stock inventory check.",
		},
		&cli.StringFlag{
			Name:    "session",
			Aliases: []string{"s"},
			Usage:   "Resume or create a stored session with this ID (requires redis).",
		},
		&cli.BoolFlag{
			Name:  "new-session",
			Usage: "Store the conversation in a new session (requires redis).",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print one JSON object per query.",
		},
		&cli.StringFlag{
			Name:         "mcp-root",
			Usage:        "Directory the MCP demo queries work in.",
			DefaultValue: "/tmp",
		},
	}, mcpFlags...),
	MaxArgs: cli.UnlimitedArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		server, err := connectMCP(ctx, a, cmd)
		if err != nil {
			return err
		}
		if server != nil {
			defer server.Close()
		}

		orch, err := a.NewOrchestrator(ctx, app.OrchestratorOptions{
			ModelRef:   cmd.GetString("model"),
			SessionID:  cmd.GetString("session"),
			NewSession: cmd.GetBool("new-session"),
			MCP:        server,
		})
		if err != nil {
			return err
		}

		switch {
		case server != nil && (cmd.GetBool("support") || cmd.GetBool("inventory")):
			return fmt.Errorf("--support and --inventory need the dataset tools, not an MCP server")
		case cmd.GetBool("support"):
			return runSupport(ctx, orch)
		case cmd.GetBool("inventory"):
			report, err := orchestrator.NewInventoryMonitor(orch).CheckLowStock(ctx)
			if err != nil {
				return err
			}
			fmt.Println(report)
			return nil
		}

		queries := make(chan string)
		if cmd.GetBool("stdin") {
			a.Watch(ctx)
			go readLines(ctx, os.Stdin, queries)
		} else {
			list := cmd.GetArgs()
			switch {
			case len(list) > 0:
			case server != nil:
				list = mcp.DemoQueries(cmd.GetString("mcp-root"))
			default:
				list = orchestrator.DemoQueries
			}
			go sendAll(ctx, list, queries)
		}

		asJSON := cmd.GetBool("json")
		failed := 0
		for outcome := range orch.Run(ctx, queries) {
			if outcome.Err != "" {
				failed++
			}
			if err := printOutcome(outcome, asJSON); err != nil {
				return err
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d queries failed", failed)
		}
		return nil
	},
}

func runSupport(ctx context.Context, orch *orchestrator.Orchestrator) error {
	agent := orchestrator.NewSupportAgent(orch)
	for _, inq := range orchestrator.DemoInquiries {
		fmt.Printf("\nCustomer: %s\nQuestion: %s\n", inq.Email, inq.Question)
		answer, err := agent.HandleOrderInquiry(ctx, inq.Email, inq.Question)
		if err != nil {
			return err
		}
		fmt.Printf("Response: %s\n", answer)
	}
	return nil
}

func printOutcome(o orchestrator.Outcome, asJSON bool) error {
	if asJSON {
		data, err := json.Marshal(o)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("\nQuery: %s\n", o.Query)
	if o.Err != "" {
		fmt.Printf("Error: %s\n", o.Err)
	} else {
		fmt.Printf("Result: %s\n", o.Result)
	}
	fmt.Printf("Chain depth: %d\n", o.ChainDepth)
	return nil
}

// readLines sends every non-empty line to out and closes it at EOF
func readLines(ctx context.Context, f *os.File, out chan<- string) {
	defer close(out)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case out <- line:
		case <-ctx.Done():
			return
		}
	}
}

func sendAll(ctx context.Context, list []string, out chan<- string) {
	defer close(out)

	for _, q := range list {
		select {
		case out <- q:
		case <-ctx.Done():
			return
		}
	}
}
