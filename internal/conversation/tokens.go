package conversation

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/s33g/omni-probe/internal/llm"
)

// Per-message formatting overhead in chat templates
const messageOverhead = 4

// TokenCounter estimates prompt sizes for local models
type TokenCounter struct {
	// Cache encoders for reuse
	encoders map[string]*tiktoken.Tiktoken
}

// NewTokenCounter creates a new token counter
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{
		encoders: make(map[string]*tiktoken.Tiktoken),
	}
}

// Count returns the number of tokens in text for model
func (tc *TokenCounter) Count(text, model string) int {
	encoding := encodingName(model)

	encoder, ok := tc.encoders[encoding]
	if !ok {
		var err error
		encoder, err = tiktoken.GetEncoding(encoding)
		if err != nil {
			// Offline or unknown encoding
			return estimateTokens(text)
		}
		tc.encoders[encoding] = encoder
	}

	return len(encoder.Encode(text, nil, nil))
}

// CountMessage counts one message including formatting overhead.
// Media parts are not counted.
func (tc *TokenCounter) CountMessage(msg llm.Message, model string) int {
	return tc.Count(msg.Text(), model) + messageOverhead
}

// CountMessages counts a whole request
func (tc *TokenCounter) CountMessages(messages []llm.Message, model string) int {
	total := 0
	for _, msg := range messages {
		total += tc.CountMessage(msg, model)
	}
	// Reply priming (assistant: )
	return total + 3
}

// encodingName maps a model to a tiktoken encoding. Local GGUF models have their
// own tokenizers, so cl100k_base is only an approximation for them.
func encodingName(model string) string {
	if strings.Contains(strings.ToLower(model), "gpt-4o") {
		return "o200k_base"
	}
	return "cl100k_base"
}

// estimateTokens provides a rough token estimate (chars/4)
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
