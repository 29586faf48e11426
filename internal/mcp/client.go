// Package mcp connects to Model Context Protocol servers and exposes their
// tools as function definitions and a tool call executor.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// ErrClientClosed is returned once the client has been closed
var ErrClientClosed = errors.New("mcp client closed")

// ToolError is a tools/call result the server flagged as an error
type ToolError struct {
	Name    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp tool %s: %s", e.Name, e.Message)
}

// Client is an initialized session with one server
type Client struct {
	session *sdkmcp.ClientSession
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// CommandTransport launches argv as a stdio server. The server's stderr is logged.
func CommandTransport(argv []string, logger zerolog.Logger) (sdkmcp.Transport, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("mcp: command cannot be empty")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = logger.With().Str("component", "mcp").Str("stream", "stderr").Logger()
	return &sdkmcp.CommandTransport{Command: cmd}, nil
}

// StreamableTransport reaches a server over the streamable HTTP transport
func StreamableTransport(endpoint string) (sdkmcp.Transport, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("mcp: endpoint cannot be empty")
	}
	return &sdkmcp.StreamableClientTransport{Endpoint: endpoint}, nil
}

// Connect runs the initialize handshake over transport. timeout bounds each
// tools/call; zero leaves calls bounded only by their context.
func Connect(ctx context.Context, transport sdkmcp.Transport, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	logger = logger.With().Str("component", "mcp").Logger()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "omniprobe", Version: "0.1.0"}, &sdkmcp.ClientOptions{
		LoggingMessageHandler: func(_ context.Context, req *sdkmcp.LoggingMessageRequest) {
			if req != nil && req.Params != nil {
				logger.Debug().Str("level", string(req.Params.Level)).Interface("data", req.Params.Data).Msg("Server log")
			}
		},
	})

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect failed: %w", err)
	}

	if res := session.InitializeResult(); res != nil && res.ServerInfo != nil {
		logger.Info().
			Str("server", res.ServerInfo.Name).
			Str("version", res.ServerInfo.Version).
			Msg("Connected to MCP server")
	}

	return &Client{session: session, timeout: timeout, logger: logger}, nil
}

// Open launches command when given, otherwise reaches url, and connects
func Open(ctx context.Context, command []string, url string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	var (
		transport sdkmcp.Transport
		err       error
	)
	if len(command) > 0 {
		transport, err = CommandTransport(command, logger)
	} else {
		transport, err = StreamableTransport(url)
	}
	if err != nil {
		return nil, err
	}
	return Connect(ctx, transport, timeout, logger)
}

// Close ends the session and stops a launched server
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.session.Close()
}

func (c *Client) open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// ListTools pages through tools/list
func (c *Client) ListTools(ctx context.Context) ([]*sdkmcp.Tool, error) {
	if err := c.open(); err != nil {
		return nil, err
	}

	var (
		params = &sdkmcp.ListToolsParams{}
		tools  []*sdkmcp.Tool
	)
	for {
		res, err := c.session.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("mcp: tools/list failed: %w", err)
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		params.Cursor = res.NextCursor
	}
}

// CallTool invokes name and returns its text content
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if err := c.open(); err != nil {
		return "", err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res, err := c.session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("mcp: tools/call %s failed: %w", name, err)
	}

	text := joinContent(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool returned an error without a message"
		}
		return "", &ToolError{Name: name, Message: text}
	}
	return text, nil
}

// joinContent renders text parts as-is and any other part as JSON, one per line
func joinContent(content []sdkmcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if t, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, t.Text)
			continue
		}
		if data, err := c.MarshalJSON(); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
