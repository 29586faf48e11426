package app

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/s33g/omni-probe/internal/config"
	"github.com/s33g/omni-probe/internal/mcp"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Providers = []config.Provider{
		{
			Name:    "local",
			BaseURL: "http://localhost:8080/v1",
			Models: []config.Model{
				{ID: "LFM2-1.2B", ContextWindow: 32768},
				{ID: "Qwen3-Omni"},
			},
		},
	}
	cfg.Defaults.Model = "local/LFM2-1.2B"
	return cfg
}

func newTestApp(t *testing.T) *App {
	t.Helper()

	a, err := New(context.Background(), testConfig(), "", zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_WithoutRedis(t *testing.T) {
	a := newTestApp(t)

	if _, err := a.Results(); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("Results() error = %v, want ErrStorageDisabled", err)
	}
	if _, err := a.Sessions(); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("Sessions() error = %v, want ErrStorageDisabled", err)
	}

	if _, _, err := a.PingStorage(context.Background()); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("PingStorage() error = %v, want ErrStorageDisabled", err)
	}

	run := a.NewRun("", "probe")
	if err := a.SaveRun(context.Background(), run); err != nil {
		t.Errorf("SaveRun() without storage should be a no-op, got %v", err)
	}
	if run.ID != "" {
		t.Errorf("run should stay unsaved, got ID %s", run.ID)
	}
	if run.Model != "local/LFM2-1.2B" {
		t.Errorf("run model = %s, want the default model", run.Model)
	}
}

func TestEndpoint(t *testing.T) {
	a := newTestApp(t)

	ep, err := a.ToolEndpoint("")
	if err != nil {
		t.Fatalf("ToolEndpoint() error = %v", err)
	}
	if ep.ModelRef != "local/LFM2-1.2B" {
		t.Errorf("ModelRef = %s", ep.ModelRef)
	}
	if ep.Temperature != 0.3 || ep.MaxTokens != 512 {
		t.Errorf("tool sampling = %v/%d, want 0.3/512", ep.Temperature, ep.MaxTokens)
	}

	if _, err := a.Endpoint("local/missing", 0, 0); err == nil {
		t.Error("expected an error for an unknown model")
	}
}

func TestNewOrchestrator(t *testing.T) {
	a := newTestApp(t)

	orch, err := a.NewOrchestrator(context.Background(), OrchestratorOptions{})
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	if orch.State().Depth() != 0 {
		t.Errorf("new orchestrator should start with an empty chain")
	}

	_, err = a.NewOrchestrator(context.Background(), OrchestratorOptions{SessionID: "abc"})
	if !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("session without Redis error = %v, want ErrStorageDisabled", err)
	}
}

func TestConnectMCP(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if _, err := a.ConnectMCP(ctx, nil, ""); !errors.Is(err, ErrMCPDisabled) {
		t.Errorf("ConnectMCP() without a server error = %v, want ErrMCPDisabled", err)
	}
	if _, err := a.ConnectMCP(ctx, []string{"/nonexistent/omniprobe-mcp-server"}, ""); err == nil {
		t.Error("ConnectMCP() with a missing command should fail")
	}
}

func TestNewOrchestrator_MCP(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "echo", Version: "0.1.0"}, nil)
	type echoArgs struct {
		Text string `json:"text"`
	}
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "echo", Description: "Echo text"},
		func(_ context.Context, _ *sdkmcp.CallToolRequest, in echoArgs) (*sdkmcp.CallToolResult, any, error) {
			return &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: in.Text}}}, nil, nil
		})

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatal(err)
	}
	client, err := mcp.Connect(ctx, clientTransport, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if _, err := a.NewOrchestrator(ctx, OrchestratorOptions{MCP: client}); err != nil {
		t.Fatalf("NewOrchestrator() with MCP error = %v", err)
	}

	client.Close()
	if _, err := a.NewOrchestrator(ctx, OrchestratorOptions{MCP: client}); !errors.Is(err, mcp.ErrClientClosed) {
		t.Errorf("NewOrchestrator() with a closed server error = %v, want ErrClientClosed", err)
	}
}

func TestReload(t *testing.T) {
	a := newTestApp(t)

	cfg := testConfig()
	cfg.Defaults.Model = "local/Qwen3-Omni"
	cfg.Orchestrator.MaxChainDepth = 3

	if err := a.Reload(cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if a.ModelRef("") != "local/Qwen3-Omni" {
		t.Errorf("default model not reloaded, got %s", a.ModelRef(""))
	}
	if a.Limits().MaxChainDepth != 3 {
		t.Errorf("MaxChainDepth = %d, want 3", a.Limits().MaxChainDepth)
	}

	bad := testConfig()
	bad.Providers[0].BaseURL = ""
	if err := a.Reload(bad); err == nil {
		t.Fatal("expected an error for a provider without base_url")
	}
	if a.ModelRef("") != "local/Qwen3-Omni" {
		t.Error("a failed reload must keep the current config")
	}
}
