package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paularlott/cli"

	"github.com/s33g/omni-probe/internal/app"
	"github.com/s33g/omni-probe/internal/mcp"
)

// mcpFlags select a tool server, overriding the mcp section of the config
var mcpFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "mcp",
		Usage:   `Command line of a stdio MCP server, e.g. "npx -y @modelcontextprotocol/server-filesystem /tmp".`,
		EnvVars: []string{envPrefix + "_MCP"},
	},
	&cli.StringFlag{
		Name:    "mcp-url",
		Usage:   "Streamable HTTP endpoint of an MCP server.",
		EnvVars: []string{envPrefix + "_MCP_URL"},
	},
}

// connectMCP returns nil without error when no server is configured or given
func connectMCP(ctx context.Context, a *app.App, cmd *cli.Command) (*mcp.Client, error) {
	client, err := a.ConnectMCP(ctx, strings.Fields(cmd.GetString("mcp")), cmd.GetString("mcp-url"))
	if errors.Is(err, app.ErrMCPDisabled) {
		return nil, nil
	}
	return client, err
}

var mcpCmd = &cli.Command{
	Name:        "mcp",
	Usage:       "Inspect a Model Context Protocol tool server",
	Description: "Discover the tools an MCP server offers. Use orchestrate --mcp to let the model call them.",
	Commands: []*cli.Command{
		{
			Name:    "tools",
			Usage:   "List the server's tools",
			Flags:   mcpFlags,
			MaxArgs: cli.NoArgs,
			Run: func(ctx context.Context, cmd *cli.Command) error {
				a, err := loadApp(ctx, cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				client, err := a.ConnectMCP(ctx, strings.Fields(cmd.GetString("mcp")), cmd.GetString("mcp-url"))
				if err != nil {
					return err
				}
				defer client.Close()

				defs, err := client.Definitions(ctx)
				if err != nil {
					return err
				}

				table := [][]string{{"TOOL", "PARAMETERS", "DESCRIPTION"}}
				for _, d := range defs {
					props, _ := d.Function.Parameters["properties"].(map[string]any)
					names := make([]string, 0, len(props))
					for name := range props {
						names = append(names, name)
					}
					sort.Strings(names)
					table = append(table, []string{d.Function.Name, strings.Join(names, ","), firstLine(d.Function.Description)})
				}
				printTable(table)
				fmt.Printf("\n%d tools\n", len(defs))
				return nil
			},
		},
	},
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > 70 {
		return string(r[:67]) + "..."
	}
	return line
}
