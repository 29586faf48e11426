package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/s33g/omni-probe/internal/conversation"
	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/toolcall"
	"github.com/s33g/omni-probe/internal/tools"
)

// scripted replies in order and records every request
type scripted struct {
	mu       sync.Mutex
	replies  []string
	requests [][]llm.Message
	fail     map[int]error
}

func (s *scripted) Call(_ context.Context, messages []llm.Message, _ []llm.ToolDefinition) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, messages)
	if err, ok := s.fail[len(s.requests)]; ok {
		return "", err
	}
	if len(s.replies) == 0 {
		return "done", nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

var testLimits = conversation.Limits{
	MaxChainDepth:   8,
	MaxHistory:      20,
	KeepRecent:      10,
	RecallSafeDepth: 5,
}

func newTestOrchestrator(caller *scripted, cfg Config) *Orchestrator {
	cfg.Caller = caller
	if cfg.Executor == nil {
		cfg.Executor = tools.NewDatasetExecutor(tools.DefaultDataset())
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.Chain()
	}
	if cfg.Limits == (conversation.Limits{}) {
		cfg.Limits = testLimits
	}
	return New(cfg, zerolog.Nop())
}

func TestProcessQuery_ToolRoundsThenAnswer(t *testing.T) {
	caller := &scripted{replies: []string{
		toolcall.Format(`lookup_user(email="sarah.chen@techcorp.com")`),
		toolcall.Format(`get_user_orders(user_id="usr_8k2m9p4")`),
		"Your latest order ord_x9j2k1 was delivered.",
	}}
	orch := newTestOrchestrator(caller, Config{})

	answer, err := orch.ProcessQuery(context.Background(), "Where is my order?")
	if err != nil {
		t.Fatalf("ProcessQuery() error = %v", err)
	}
	if answer != "Your latest order ord_x9j2k1 was delivered." {
		t.Errorf("answer = %q", answer)
	}
	if len(caller.requests) != 3 {
		t.Fatalf("requests = %d, want 3", len(caller.requests))
	}

	state := orch.State()
	if state.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", state.Depth())
	}
	// user, assistant, tool, assistant, tool, assistant
	msgs := state.Messages()
	if len(msgs) != 6 {
		t.Fatalf("messages = %d, want 6", len(msgs))
	}
	if msgs[2].Role != llm.RoleTool || !strings.Contains(msgs[2].Text(), "usr_8k2m9p4") {
		t.Errorf("first tool result = %+v", msgs[2])
	}
	if len(state.Recent()) != 2 {
		t.Errorf("Recent() = %d cached results, want 2", len(state.Recent()))
	}

	// The last request carries every tool result so far
	last := caller.requests[2]
	if last[len(last)-1].Role != llm.RoleTool {
		t.Errorf("last request should end with a tool result, got %s", last[len(last)-1].Role)
	}
}

func TestProcessQuery_MaxIterations(t *testing.T) {
	loop := toolcall.Format(`check_inventory(product_id="prod_wireless_kb")`)
	caller := &scripted{replies: []string{loop, loop, loop, loop}}
	orch := newTestOrchestrator(caller, Config{MaxIterations: 2})

	answer, err := orch.ProcessQuery(context.Background(), "keep going")
	if err != nil {
		t.Fatalf("ProcessQuery() error = %v", err)
	}
	if answer != loop {
		t.Errorf("answer = %q, want the last reply", answer)
	}
	if len(caller.requests) != 2 {
		t.Errorf("requests = %d, want 2", len(caller.requests))
	}
}

func TestProcessQuery_ResetsChainAtLimit(t *testing.T) {
	call := toolcall.Format(`check_inventory(product_id="prod_wireless_kb")`)
	caller := &scripted{replies: []string{call, call, "first", "second"}}
	limits := testLimits
	limits.MaxChainDepth = 2
	orch := newTestOrchestrator(caller, Config{Limits: limits})

	if _, err := orch.ProcessQuery(context.Background(), "one"); err != nil {
		t.Fatal(err)
	}
	if !orch.State().ShouldReset() {
		t.Fatalf("Depth() = %d, expected the limit to be reached", orch.State().Depth())
	}

	if _, err := orch.ProcessQuery(context.Background(), "two"); err != nil {
		t.Fatal(err)
	}
	if orch.State().Depth() != 0 {
		t.Errorf("Depth() = %d after reset, want 0", orch.State().Depth())
	}

	req := caller.requests[len(caller.requests)-1]
	notice := req[len(req)-2]
	if notice.Role != llm.RoleSystem || notice.Text() != conversation.ResetNotice {
		t.Errorf("expected reset notice before the query, got %+v", notice)
	}
	if req[len(req)-1].Text() != "two" {
		t.Errorf("last message = %q, want the new query", req[len(req)-1].Text())
	}
}

func TestProcessQuery_Error(t *testing.T) {
	caller := &scripted{fail: map[int]error{1: errors.New("connection refused")}}
	orch := newTestOrchestrator(caller, Config{})

	if _, err := orch.ProcessQuery(context.Background(), "hello"); err == nil {
		t.Error("expected the call error to be returned")
	}
}

func TestProcessQuery_ContextWindow(t *testing.T) {
	long := strings.Repeat("word ", 400)
	caller := &scripted{replies: []string{"ok", long, "ok"}}
	orch := newTestOrchestrator(caller, Config{
		Context: conversation.NewContextBuilder(300, 50),
		Model:   "test-model",
	})

	for _, q := range []string{"hi", "tell me everything", "short question"} {
		if _, err := orch.ProcessQuery(context.Background(), q); err != nil {
			t.Fatal(err)
		}
	}

	last := caller.requests[2]
	if last[0].Text() != "hi" {
		t.Errorf("first message must be kept, got %q", last[0].Text())
	}
	for _, m := range last {
		if m.Text() == long {
			t.Error("oversized message should have been trimmed")
		}
	}
	if last[len(last)-1].Text() != "short question" {
		t.Errorf("newest message must be kept, got %q", last[len(last)-1].Text())
	}
	if len(last) >= orch.State().Len() {
		t.Errorf("request has %d messages, expected trimming below %d", len(last), orch.State().Len())
	}
}

func TestProcessQuery_QueryLargerThanContext(t *testing.T) {
	caller := &scripted{}
	orch := newTestOrchestrator(caller, Config{
		Context: conversation.NewContextBuilder(300, 50),
		Model:   "test-model",
	})

	if _, err := orch.ProcessQuery(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	_, err := orch.ProcessQuery(context.Background(), strings.Repeat("word ", 400))
	if !errors.Is(err, conversation.ErrContextOverflow) {
		t.Fatalf("ProcessQuery() error = %v, want ErrContextOverflow", err)
	}
	if len(caller.requests) != 1 {
		t.Errorf("requests = %d, the oversized query must not be sent", len(caller.requests))
	}
}

// countingExecutor counts Reset calls
type countingExecutor struct {
	resets int
	calls  []string
}

func (e *countingExecutor) Execute(call string) string {
	e.calls = append(e.calls, call)
	return `{"ok":true}`
}

func (e *countingExecutor) Reset() { e.resets++ }

func TestProcessQuery_SystemPromptAndReset(t *testing.T) {
	caller := &scripted{replies: []string{
		toolcall.Format(`list_directory(path="/tmp")`), "two files",
		"still two files",
	}}
	exec := &countingExecutor{}
	orch := newTestOrchestrator(caller, Config{
		Executor: exec,
		System:   "Use the filesystem tools.",
	})

	for _, q := range []string{"list /tmp", "and now?"} {
		if _, err := orch.ProcessQuery(context.Background(), q); err != nil {
			t.Fatal(err)
		}
	}

	msgs := orch.State().Messages()
	if msgs[0].Role != llm.RoleSystem || msgs[0].Text() != "Use the filesystem tools." {
		t.Errorf("first message = %+v, want the system prompt", msgs[0])
	}
	systems := 0
	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("system messages = %d, want 1", systems)
	}
	if exec.resets != 2 {
		t.Errorf("Reset() calls = %d, want one per query", exec.resets)
	}
	if len(exec.calls) != 1 {
		t.Errorf("executed calls = %v", exec.calls)
	}
}

func TestRun_ContinuesAfterFailure(t *testing.T) {
	caller := &scripted{
		replies: []string{"a", "c"},
		fail:    map[int]error{2: errors.New("bad gateway")},
	}
	orch := newTestOrchestrator(caller, Config{})

	outcomes := orch.RunAll(context.Background(), []string{"q1", "q2", "q3"})
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	if outcomes[0].Result != "a" || outcomes[0].Err != "" {
		t.Errorf("outcome 0 = %+v", outcomes[0])
	}
	if outcomes[1].Err == "" || outcomes[1].Result != "" {
		t.Errorf("outcome 1 should carry the error, got %+v", outcomes[1])
	}
	if outcomes[2].Result != "c" {
		t.Errorf("outcome 2 = %+v", outcomes[2])
	}
	for _, o := range outcomes {
		if o.Timestamp.IsZero() {
			t.Errorf("outcome %q has no timestamp", o.Query)
		}
	}
}

// fakeBudget fails Settle after a number of queries
type fakeBudget struct {
	allowed int
	settled int
}

func (b *fakeBudget) Allow(context.Context) error { return nil }

func (b *fakeBudget) Settle(context.Context) error {
	b.settled++
	if b.settled > b.allowed {
		return ErrBudgetExhausted
	}
	return nil
}

func TestRun_StopsWhenBudgetExhausted(t *testing.T) {
	caller := &scripted{}
	budget := &fakeBudget{allowed: 1}
	orch := newTestOrchestrator(caller, Config{Budget: budget})

	outcomes := orch.RunAll(context.Background(), []string{"q1", "q2", "q3"})
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if !strings.Contains(outcomes[1].Err, "budget") {
		t.Errorf("outcome 1 error = %q", outcomes[1].Err)
	}
	if len(caller.requests) != 2 {
		t.Errorf("requests = %d, the third query must not run", len(caller.requests))
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := newTestOrchestrator(&scripted{}, Config{})
	queries := make(chan string)
	defer close(queries)

	for range orch.Run(ctx, queries) {
		t.Error("no outcome expected from a cancelled run")
	}
}

func TestRun_Paced(t *testing.T) {
	caller := &scripted{}
	orch := newTestOrchestrator(caller, Config{RequestsPerMinute: 6000})

	outcomes := orch.RunAll(context.Background(), []string{"q1", "q2"})
	if len(outcomes) != 2 || outcomes[1].Err != "" {
		t.Errorf("outcomes = %+v", outcomes)
	}
}

func TestUseCases(t *testing.T) {
	caller := &scripted{}
	orch := newTestOrchestrator(caller, Config{})

	agent := NewSupportAgent(orch)
	if _, err := agent.HandleOrderInquiry(context.Background(), "sarah.chen@techcorp.com", "What items did I order?"); err != nil {
		t.Fatal(err)
	}
	want := "Customer sarah.chen@techcorp.com asks: What items did I order?. Please look up their account and help answer."
	if got := caller.requests[0][0].Text(); got != want {
		t.Errorf("query = %q, want %q", got, want)
	}

	monitor := NewInventoryMonitor(orch)
	if _, err := monitor.CheckLowStock(context.Background()); err != nil {
		t.Fatal(err)
	}
	last := caller.requests[1]
	if last[len(last)-1].Text() != InventoryQuery {
		t.Errorf("inventory query = %q", last[len(last)-1].Text())
	}
}
