// Package conversation tracks tool-chain conversations: chain depth, history
// compression, cached tool results, token-aware trimming and Redis sessions.
package conversation

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/toolcall"
)

// ResetNotice is added when a chain hits its depth limit
const ResetNotice = "Chain reset. Previous tool results are still available."

// Limits bound a chain conversation
type Limits struct {
	MaxChainDepth   int
	MaxHistory      int
	KeepRecent      int
	RecallSafeDepth int
}

// CachedResult is a recent tool result kept for recall
type CachedResult struct {
	Depth     int       `json:"depth"`
	Call      string    `json:"call"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// ChainState is a conversation that counts tool-call turns and compresses
// itself once it grows past MaxHistory messages.
type ChainState struct {
	limits   Limits
	messages []llm.Message
	depth    int
	cache    map[string]string
	recent   []CachedResult
}

// NewChainState creates an empty chain
func NewChainState(limits Limits) *ChainState {
	return &ChainState{
		limits: limits,
		cache:  make(map[string]string),
	}
}

// Add appends a message. Assistant turns carrying tool calls deepen the chain.
func (s *ChainState) Add(role, content string) {
	s.messages = append(s.messages, llm.Message{Role: role, Content: content})

	if role == llm.RoleAssistant && strings.Contains(content, toolcall.StartMarker) {
		s.depth++
	}

	if s.limits.MaxHistory > 0 && len(s.messages) > s.limits.MaxHistory {
		s.compress()
	}
}

// compress keeps the first message, a summary of the middle and the newest KeepRecent messages
func (s *ChainState) compress() {
	keep := s.limits.KeepRecent
	if len(s.messages) <= keep+1 {
		return
	}

	middle := s.messages[1 : len(s.messages)-keep]
	compressed := make([]llm.Message, 0, keep+2)
	compressed = append(compressed,
		s.messages[0],
		llm.Message{Role: llm.RoleSystem, Content: "Previous context summary: " + Summarize(middle)},
	)
	compressed = append(compressed, s.messages[len(s.messages)-keep:]...)
	s.messages = compressed
}

// Summarize lists the tool calls made in messages, naming at most five
func Summarize(messages []llm.Message) string {
	var calls []string
	for _, msg := range messages {
		if msg.Role != llm.RoleAssistant {
			continue
		}
		calls = append(calls, toolcall.Extract(msg.Text())...)
	}
	return fmt.Sprintf("Executed %d tool calls: %s", len(calls), strings.Join(calls[:min(5, len(calls))], ", "))
}

// CacheResult remembers a tool result; only the newest RecallSafeDepth are kept in order
func (s *ChainState) CacheResult(call, result string) {
	s.cache[call] = result
	s.recent = append(s.recent, CachedResult{
		Depth:     s.depth,
		Call:      call,
		Result:    result,
		Timestamp: time.Now(),
	})
	if n := s.limits.RecallSafeDepth; n > 0 && len(s.recent) > n {
		s.recent = slices.Clone(s.recent[len(s.recent)-n:])
	}
}

// Cached returns the last result seen for an identical call
func (s *ChainState) Cached(call string) (string, bool) {
	r, ok := s.cache[call]
	return r, ok
}

// Recent returns the newest cached results, oldest first
func (s *ChainState) Recent() []CachedResult {
	return slices.Clone(s.recent)
}

// ShouldReset reports whether the chain reached its depth limit
func (s *ChainState) ShouldReset() bool {
	return s.limits.MaxChainDepth > 0 && s.depth >= s.limits.MaxChainDepth
}

// ResetChain zeroes the depth counter; history and cached results are kept
func (s *ChainState) ResetChain() {
	s.depth = 0
}

// Depth returns the current chain depth
func (s *ChainState) Depth() int {
	return s.depth
}

// Messages returns a copy of the conversation
func (s *ChainState) Messages() []llm.Message {
	return slices.Clone(s.messages)
}

// Len returns the number of messages held
func (s *ChainState) Len() int {
	return len(s.messages)
}
