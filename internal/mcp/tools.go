package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/toolcall"
)

// DuplicateNote answers a call already made for the current query
const DuplicateNote = "Already called this tool"

// Definitions lists the server's tools as function definitions
func (c *Client) Definitions(ctx context.Context) ([]llm.ToolDefinition, error) {
	list, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	defs := make([]llm.ToolDefinition, 0, len(list))
	for _, t := range list {
		if t != nil {
			defs = append(defs, Definition(t))
		}
	}
	return defs, nil
}

// Definition converts a server tool. Its input schema is passed through as the parameters.
func Definition(t *sdkmcp.Tool) llm.ToolDefinition {
	desc := t.Description
	if desc == "" && t.Annotations != nil {
		desc = t.Annotations.Title
	}
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.FunctionDef{
			Name:        t.Name,
			Description: desc,
			Parameters:  schemaMap(t.InputSchema),
		},
	}
}

func schemaMap(schema any) map[string]any {
	var out map[string]any
	if schema != nil {
		if data, err := json.Marshal(schema); err == nil {
			_ = json.Unmarshal(data, &out)
		}
	}
	if len(out) == 0 {
		out = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return out
}

// Arguments maps the named arguments of a call to tools/call arguments.
// Quoted values stay strings; bare values are decoded as JSON literals when they parse.
func Arguments(c toolcall.Call) map[string]any {
	args := make(map[string]any)
	for _, k := range c.Order {
		if strings.HasPrefix(k, "$") {
			continue
		}
		v := c.Args[k]
		if c.Quoted[k] {
			args[k] = v
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			args[k] = decoded
		} else {
			args[k] = v
		}
	}
	return args
}

// Executor answers tool call markers through the server. An identical call
// repeated within one query is answered with DuplicateNote instead.
type Executor struct {
	client *Client
	ctx    context.Context

	mu   sync.Mutex
	seen map[string]bool
}

// Executor returns an executor whose calls run under ctx
func (c *Client) Executor(ctx context.Context) *Executor {
	return &Executor{client: c, ctx: ctx, seen: make(map[string]bool)}
}

// Reset forgets the calls made for the previous query
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.seen)
}

// Execute runs call and returns the tool's text, or a JSON error object
func (e *Executor) Execute(call string) string {
	c, err := toolcall.Parse(call)
	if err != nil {
		return object("error", err.Error())
	}
	args := Arguments(c)

	// encoding/json sorts map keys, so equal arguments give equal signatures
	sig, _ := json.Marshal(args)
	key := c.Name + string(sig)

	e.mu.Lock()
	dup := e.seen[key]
	e.seen[key] = true
	e.mu.Unlock()

	if dup {
		e.client.logger.Warn().Str("call", call).Msg("Skipping duplicate tool call")
		return object("note", DuplicateNote)
	}

	text, err := e.client.CallTool(e.ctx, c.Name, args)
	if err != nil {
		e.client.logger.Warn().Err(err).Str("tool", c.Name).Msg("Tool call failed")
		return object("error", err.Error())
	}
	e.client.logger.Debug().Str("tool", c.Name).Int("bytes", len(text)).Msg("Tool call completed")
	return text
}

func object(key, msg string) string {
	data, _ := json.Marshal(map[string]string{key: msg})
	return string(data)
}

// SystemPrompt tells the model to answer from its tools rather than guess
func SystemPrompt(defs []llm.ToolDefinition) string {
	names := make([]string, len(defs))
	lines := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Function.Name
		desc := d.Function.Description
		if desc == "" {
			desc = "No description"
		}
		lines[i] = fmt.Sprintf("- %s: %s", d.Function.Name, desc)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a precise assistant with these tools: %s.\n\n", strings.Join(names, ", "))
	b.WriteString("Rules:\n")
	b.WriteString("1. Assume every request needs a tool and call it.\n")
	b.WriteString("2. Never make up file contents or results.\n")
	b.WriteString("3. Answer conversationally from the tool results.\n\n")
	b.WriteString("Tools:\n")
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// DemoQueries drive a filesystem server rooted at root: a listing, a write
// then read back, and a four step chain.
func DemoQueries(root string) []string {
	return []string{
		fmt.Sprintf("Use list_directory to show files in %s", root),
		fmt.Sprintf("Use write_file to create %s with content 'Hello from MCP!', then use read_text_file to read it back",
			path.Join(root, "test_mcp.txt")),
		fmt.Sprintf("First list_directory %s, then write_file %s with 'Chain test data', then read_text_file it, then get_file_info on it",
			root, path.Join(root, "chain_test.txt")),
	}
}
