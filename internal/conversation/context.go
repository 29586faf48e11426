package conversation

import (
	"errors"

	"github.com/s33g/omni-probe/internal/llm"
)

// ErrContextOverflow is returned when the newest message cannot fit next to the first
var ErrContextOverflow = errors.New("message does not fit in the context window")

// ContextBuilder trims a conversation to a model's context window
type ContextBuilder struct {
	counter       *TokenCounter
	maxTokens     int
	reserveTokens int // Reserve for response
}

// NewContextBuilder creates a new context builder
func NewContextBuilder(maxTokens, reserveTokens int) *ContextBuilder {
	return &ContextBuilder{
		counter:       NewTokenCounter(),
		maxTokens:     maxTokens,
		reserveTokens: reserveTokens,
	}
}

// Build keeps the first message and as many of the newest messages as fit.
// A tool result is never kept without the assistant turn that requested it.
// Returns the kept messages in order and their token count, or ErrContextOverflow
// when the newest message would have to be dropped.
func (cb *ContextBuilder) Build(messages []llm.Message, model string) ([]llm.Message, int, error) {
	if len(messages) == 0 {
		return nil, 0, nil
	}

	available := cb.maxTokens - cb.reserveTokens

	first := messages[0]
	total := cb.counter.CountMessage(first, model)
	if total > available {
		return nil, total, ErrContextOverflow
	}
	if len(messages) == 1 {
		return []llm.Message{first}, total, nil
	}

	// Walk newest to oldest
	start := len(messages)
	for i := len(messages) - 1; i >= 1; i-- {
		n := cb.counter.CountMessage(messages[i], model)
		if total+n > available {
			break
		}
		total += n
		start = i
	}

	for start < len(messages) && messages[start].Role == llm.RoleTool {
		total -= cb.counter.CountMessage(messages[start], model)
		start++
	}
	if start == len(messages) {
		return nil, total, ErrContextOverflow
	}

	result := make([]llm.Message, 0, 1+len(messages)-start)
	result = append(result, first)
	result = append(result, messages[start:]...)
	return result, total, nil
}

// CountTokens counts tokens for content
func (cb *ContextBuilder) CountTokens(content, model string) int {
	return cb.counter.Count(content, model)
}

// WillFit checks if a new message will fit in the current context
func (cb *ContextBuilder) WillFit(currentTokens, newMessageTokens int) bool {
	return currentTokens+newMessageTokens+cb.reserveTokens <= cb.maxTokens
}
