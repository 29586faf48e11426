package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/toolcall"
	"github.com/s33g/omni-probe/internal/tools"
)

func TestRun_StopsAtFirstFailure(t *testing.T) {
	var seen []int
	check := func(ctx context.Context, level int) (bool, string, error) {
		seen = append(seen, level)
		return level < 20, "", nil
	}

	report := Run(context.Background(), "synthetic", []int{1, 5, 10, 20, 30}, check)

	if report.MaxLevel != 10 {
		t.Errorf("MaxLevel = %d, want 10", report.MaxLevel)
	}
	if report.StoppedAt != 20 {
		t.Errorf("StoppedAt = %d, want 20", report.StoppedAt)
	}
	if len(report.Outcomes) != 4 {
		t.Errorf("Outcomes = %d, want 4", len(report.Outcomes))
	}
	if len(seen) != 4 || seen[3] != 20 {
		t.Errorf("levels checked = %v, level 30 must not run", seen)
	}
	if report.Passed() {
		t.Error("Passed() = true for a failed run")
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name          string
		levels        []int
		check         Check
		wantMax       int
		wantStoppedAt int
		wantOutcomes  int
	}{
		{
			name:   "all pass",
			levels: []int{1, 2, 3},
			check: func(context.Context, int) (bool, string, error) {
				return true, "", nil
			},
			wantMax:      3,
			wantOutcomes: 3,
		},
		{
			name:   "first level fails",
			levels: []int{1, 2, 3},
			check: func(context.Context, int) (bool, string, error) {
				return false, "no tool call", nil
			},
			wantStoppedAt: 1,
			wantOutcomes:  1,
		},
		{
			name:   "error counts as failure",
			levels: []int{1, 5, 10},
			check: func(_ context.Context, level int) (bool, string, error) {
				if level == 5 {
					return true, "", errors.New("connection refused")
				}
				return true, "", nil
			},
			wantMax:       1,
			wantStoppedAt: 5,
			wantOutcomes:  2,
		},
		{
			name:         "no levels",
			levels:       nil,
			check:        func(context.Context, int) (bool, string, error) { return true, "", nil },
			wantOutcomes: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Run(context.Background(), "axis", tt.levels, tt.check)
			if report.MaxLevel != tt.wantMax {
				t.Errorf("MaxLevel = %d, want %d", report.MaxLevel, tt.wantMax)
			}
			if report.StoppedAt != tt.wantStoppedAt {
				t.Errorf("StoppedAt = %d, want %d", report.StoppedAt, tt.wantStoppedAt)
			}
			if len(report.Outcomes) != tt.wantOutcomes {
				t.Errorf("Outcomes = %d, want %d", len(report.Outcomes), tt.wantOutcomes)
			}
		})
	}
}

func TestRun_RecordsError(t *testing.T) {
	report := Run(context.Background(), "axis", []int{1}, func(context.Context, int) (bool, string, error) {
		return false, "", errors.New("API error (500): boom")
	})
	if got := report.Outcomes[0].Err; got != "API error (500): boom" {
		t.Errorf("Err = %q", got)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	report := Run(ctx, "axis", []int{1, 2}, func(context.Context, int) (bool, string, error) {
		called = true
		return true, "", nil
	})
	if called {
		t.Error("check should not run on a cancelled context")
	}
	if report.StoppedAt != 1 || report.Outcomes[0].Err == "" {
		t.Errorf("report = %+v, want stop at level 1 with an error", report)
	}
}

// scripted replies in order and records every request
type scripted struct {
	replies  []string
	requests [][]llm.Message
	err      error
}

func (s *scripted) Call(_ context.Context, messages []llm.Message, _ []llm.ToolDefinition) (string, error) {
	s.requests = append(s.requests, append([]llm.Message(nil), messages...))
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "done", nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func TestCycle(t *testing.T) {
	caller := &scripted{replies: []string{
		toolcall.Format(`get_weather(city="Tokyo")`),
		"It is sunny in Tokyo.",
	}}

	res, err := Cycle(context.Background(), caller, nil, "What's the weather in Tokyo?", []llm.ToolDefinition{tools.Weather}, tools.DemoMock)
	if err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}
	if len(res.Calls) != 1 || res.Final != "It is sunny in Tokyo." {
		t.Errorf("result = %+v", res)
	}

	second := caller.requests[1]
	if len(second) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(second))
	}
	if second[2].Role != llm.RoleTool || !strings.Contains(second[2].Text(), `"city":"Tokyo"`) {
		t.Errorf("tool message = %+v", second[2])
	}
	if len(res.Messages) != 4 {
		t.Errorf("Messages = %d, want 4", len(res.Messages))
	}
}

func TestCycle_NoToolCall(t *testing.T) {
	caller := &scripted{replies: []string{"Just an answer."}}

	res, err := Cycle(context.Background(), caller, nil, "hi", nil, tools.GenericMock)
	if err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}
	if res.Final != "Just an answer." || len(caller.requests) != 1 {
		t.Errorf("a reply without calls should be returned directly, got %+v", res)
	}
}

func TestCycle_DoesNotModifyHistory(t *testing.T) {
	history := make([]llm.Message, 1, 8)
	history[0] = llm.Message{Role: llm.RoleUser, Content: "first"}

	caller := &scripted{replies: []string{"ok"}}
	if _, err := Cycle(context.Background(), caller, history, "second", nil, tools.GenericMock); err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[:2][1].Content != nil {
		t.Error("Cycle must not write into the caller's history")
	}
}

// modelUpTo calls test_tool, tool_1 or tool_1..n correctly while the level is below limit
func modelUpTo(limit int) Caller {
	return CallerFunc(func(_ context.Context, messages []llm.Message, defs []llm.ToolDefinition) (string, error) {
		last := messages[len(messages)-1]
		if last.Role == llm.RoleTool {
			return "done", nil
		}
		query := last.Text()

		switch {
		case strings.HasPrefix(query, "Call the test tool"):
			n := len(defs[0].Function.Parameters["required"].([]string))
			if n >= limit {
				return "I cannot do that.", nil
			}
			return toolcall.Format(`test_tool(param_1="value1")`), nil
		case strings.HasPrefix(query, "Use tool_1"):
			if len(defs) >= limit {
				return toolcall.Format(`tool_2(input="test")`), nil
			}
			return toolcall.Format(`tool_1(input="test")`), nil
		case strings.HasPrefix(query, "Call these tools in order: "):
			names := strings.Split(strings.TrimPrefix(query, "Call these tools in order: "), ", ")
			n := min(len(names), limit-1)
			calls := make([]string, n)
			for i := range calls {
				calls[i] = fmt.Sprintf(`%s(input="x")`, names[i])
			}
			return toolcall.Format(calls...), nil
		}
		return "unexpected", nil
	})
}

func TestProber_Axes(t *testing.T) {
	p := NewProber(modelUpTo(20), zerolog.Nop())
	ctx := context.Background()

	if r := p.Parameters(ctx, DefaultParamLevels); r.MaxLevel != 15 || r.StoppedAt != 20 {
		t.Errorf("Parameters() max=%d stopped=%d, want 15/20", r.MaxLevel, r.StoppedAt)
	}
	if r := p.ToolCount(ctx, DefaultToolLevels); r.MaxLevel != 10 || r.StoppedAt != 20 {
		t.Errorf("ToolCount() max=%d stopped=%d, want 10/20", r.MaxLevel, r.StoppedAt)
	}
	if r := p.Sequential(ctx, DefaultSequentialLevels, 20); r.MaxLevel != 15 || r.StoppedAt != 20 {
		t.Errorf("Sequential() max=%d stopped=%d, want 15/20", r.MaxLevel, r.StoppedAt)
	}
}

// chainModel follows the chain correctly for depth steps, then answers without calling
func chainModel(depth int) *scripted {
	calls := []string{
		`lookup_user(email="sarah.chen@techcorp.com")`,
		`get_user_orders(user_id="usr_8k2m9p4")`,
		`get_order_details(order_id="ord_x9j2k1")`,
		`check_inventory(product_id="prod_wireless_kb")`,
		`get_supplier_info(supplier_id="sup_logitech")`,
		`get_contact_details(contact_id="cnt_jl892m")`,
		`get_territory_info(territory_id="ter_west_coast")`,
		`get_manager_info(manager_id="mgr_smith_j")`,
	}
	var replies []string
	for i := 0; i < depth; i++ {
		replies = append(replies, toolcall.Format(calls[i]), fmt.Sprintf("Step %d looks good.", i+1))
	}
	replies = append(replies, "I am not sure what to do next.")
	return &scripted{replies: replies}
}

func TestProber_ChainDepth(t *testing.T) {
	exec := tools.NewDatasetExecutor(tools.DefaultDataset())

	tests := []struct {
		name      string
		depth     int
		wantDepth int
	}{
		{"breaks at step 4", 3, 3},
		{"full chain", 8, 8},
		{"no calls", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProber(chainModel(tt.depth), zerolog.Nop())
			report := p.ChainDepth(context.Background(), tools.ChainSteps, exec)

			if report.MaxLevel != tt.wantDepth {
				t.Errorf("depth = %d, want %d", report.MaxLevel, tt.wantDepth)
			}
			if len(report.History) != tt.wantDepth {
				t.Errorf("History = %d records, want %d", len(report.History), tt.wantDepth)
			}
		})
	}
}

func TestProber_ChainDepth_WrongTool(t *testing.T) {
	caller := &scripted{replies: []string{
		toolcall.Format(`lookup_user(email="sarah.chen@techcorp.com")`), "ok",
		toolcall.Format(`get_manager_info(manager_id="mgr_smith_j")`),
	}}
	p := NewProber(caller, zerolog.Nop())

	report := p.ChainDepth(context.Background(), tools.ChainSteps, tools.NewDatasetExecutor(tools.DefaultDataset()))
	if report.MaxLevel != 1 || report.StoppedAt != 2 {
		t.Errorf("max=%d stopped=%d, want 1/2", report.MaxLevel, report.StoppedAt)
	}
	if !strings.Contains(report.Outcomes[1].Detail, "wrong tool") {
		t.Errorf("Detail = %q", report.Outcomes[1].Detail)
	}
	if !strings.Contains(report.History[0].Result, "usr_8k2m9p4") {
		t.Errorf("step 1 result = %s", report.History[0].Result)
	}
}

func TestHistoryConversation(t *testing.T) {
	msgs := HistoryConversation([]ChainRecord{{Step: 1, Call: `lookup_user(email="a")`, Result: `{"user_id":"u"}`}})
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4", len(msgs))
	}
	if want := `<|tool_call_start|>[lookup_user(email="a")]<|tool_call_end|>`; msgs[1].Text() != want {
		t.Errorf("assistant call = %q, want %q", msgs[1].Text(), want)
	}
	if msgs[3].Text() != "Step 1 completed" {
		t.Errorf("closing message = %q", msgs[3].Text())
	}
}

func TestProber_HistoryRetention(t *testing.T) {
	history := []ChainRecord{
		{Step: 1, Tool: "lookup_user", Call: `lookup_user(email="sarah.chen@techcorp.com")`, Result: `{"user_id":"usr_8k2m9p4"}`},
		{Step: 2, Tool: "get_user_orders", Call: `get_user_orders(user_id="usr_8k2m9p4")`, Result: `[{"order_id":"ord_x9j2k1"}]`},
	}
	caller := &scripted{replies: []string{
		"The email was SARAH.CHEN@techcorp.com",
		"I don't remember",
		"The first order was ord_x9j2k1",
	}}
	p := NewProber(caller, zerolog.Nop())

	report := p.HistoryRetention(context.Background(), history, DefaultRecallQuestions)

	if report.Asked != 3 {
		t.Errorf("Asked = %d, want 3 (steps 3 and 4 skipped)", report.Asked)
	}
	if report.Recalled != 2 {
		t.Errorf("Recalled = %d, want 2", report.Recalled)
	}
	if report.Total != 5 {
		t.Errorf("Total = %d, want 5", report.Total)
	}
	if first := caller.requests[0]; len(first) != 9 {
		t.Errorf("first recall request has %d messages, want 9", len(first))
	}
}

func TestProber_HistoryRetention_Empty(t *testing.T) {
	caller := &scripted{}
	report := NewProber(caller, zerolog.Nop()).HistoryRetention(context.Background(), nil, DefaultRecallQuestions)
	if report.Asked != 0 || len(caller.requests) != 0 {
		t.Error("no questions should be asked without history")
	}
}

func TestProber_RunScenarios(t *testing.T) {
	caller := &scripted{replies: []string{
		toolcall.Format(`get_weather(city="Tokyo")`),
		"Tokyo is sunny and 22 degrees.",
	}}
	p := NewProber(caller, zerolog.Nop())

	results := p.RunScenarios(context.Background(), DemoScenarios[:1], tools.DemoMock)
	if len(results) != 1 || !results[0].Passed {
		t.Errorf("results = %+v, want one passing scenario", results)
	}

	failing := NewProber(&scripted{err: errors.New("down")}, zerolog.Nop())
	results = failing.RunScenarios(context.Background(), DemoScenarios[:2], tools.DemoMock)
	for _, r := range results {
		if r.Passed || r.Err == "" {
			t.Errorf("scenario %s should fail with an error", r.Name)
		}
	}
}

func TestReport_Summary(t *testing.T) {
	r := &Report{Axis: "tool_count", MaxLevel: 10, StoppedAt: 20}
	if got := r.Summary(); got != "tool_count: limit 10 (failed at 20)" {
		t.Errorf("Summary() = %q", got)
	}
	if rows := r.Table(); len(rows) != 1 {
		t.Errorf("Table() = %d rows, want header only", len(rows))
	}
}
