package conversation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/toolcall"
)

func testLimits() Limits {
	return Limits{MaxChainDepth: 8, MaxHistory: 20, KeepRecent: 10, RecallSafeDepth: 5}
}

func TestChainState_DepthCounting(t *testing.T) {
	s := NewChainState(testLimits())

	s.Add(llm.RoleUser, "find the user")
	s.Add(llm.RoleAssistant, toolcall.Format(`lookup_user(email="a@b.c")`))
	s.Add(llm.RoleTool, `{"user_id":"u1"}`)
	s.Add(llm.RoleAssistant, "Found the user.")

	if s.Depth() != 1 {
		t.Errorf("Depth() = %d, want 1", s.Depth())
	}
	if s.ShouldReset() {
		t.Error("ShouldReset() should be false below the limit")
	}
}

func TestChainState_Reset(t *testing.T) {
	s := NewChainState(Limits{MaxChainDepth: 2, MaxHistory: 100, KeepRecent: 10})

	for i := 0; i < 2; i++ {
		s.Add(llm.RoleAssistant, toolcall.Format(fmt.Sprintf(`tool_%d()`, i)))
	}
	if !s.ShouldReset() {
		t.Fatal("ShouldReset() should be true at the limit")
	}

	s.ResetChain()
	if s.Depth() != 0 || s.Len() != 2 {
		t.Errorf("after reset depth=%d len=%d, want 0/2", s.Depth(), s.Len())
	}
}

func TestChainState_Compression(t *testing.T) {
	s := NewChainState(testLimits())

	s.Add(llm.RoleSystem, "You are an orchestrator.")
	for i := 1; i <= 10; i++ {
		s.Add(llm.RoleAssistant, toolcall.Format(fmt.Sprintf(`tool_%d(input="x")`, i)))
		s.Add(llm.RoleTool, "{}")
	}
	// 21 messages triggers compression to first + summary + last 10

	msgs := s.Messages()
	if len(msgs) != 12 {
		t.Fatalf("Len = %d, want 12", len(msgs))
	}
	if msgs[0].Text() != "You are an orchestrator." {
		t.Errorf("first message not kept: %q", msgs[0].Text())
	}
	summary := msgs[1].Text()
	if msgs[1].Role != llm.RoleSystem || !strings.HasPrefix(summary, "Previous context summary: Executed 5 tool calls: ") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(summary, `tool_1(input="x"), tool_2(input="x")`) {
		t.Errorf("summary should list the calls, got %q", summary)
	}
	if s.Depth() != 10 {
		t.Errorf("Depth() = %d, compression must not change depth", s.Depth())
	}
}

func TestSummarize(t *testing.T) {
	var msgs []llm.Message
	for i := 1; i <= 7; i++ {
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: toolcall.Format(fmt.Sprintf("t%d()", i))})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: toolcall.Format("ignored()")})

	want := "Executed 7 tool calls: t1(), t2(), t3(), t4(), t5()"
	if got := Summarize(msgs); got != want {
		t.Errorf("Summarize() = %q, want %q", got, want)
	}
	if got := Summarize(nil); got != "Executed 0 tool calls: " {
		t.Errorf("Summarize(nil) = %q", got)
	}
}

func TestChainState_CacheResult(t *testing.T) {
	s := NewChainState(testLimits())

	for i := 1; i <= 7; i++ {
		s.CacheResult(fmt.Sprintf("call_%d()", i), fmt.Sprintf(`{"n":%d}`, i))
	}

	recent := s.Recent()
	if len(recent) != 5 {
		t.Fatalf("Recent() = %d, want 5", len(recent))
	}
	if recent[0].Call != "call_3()" || recent[4].Call != "call_7()" {
		t.Errorf("Recent() = %v..%v, want call_3..call_7", recent[0].Call, recent[4].Call)
	}
	if r, ok := s.Cached("call_1()"); !ok || r != `{"n":1}` {
		t.Errorf("Cached(call_1) = %q, %v", r, ok)
	}
}
