package probe

import (
	"context"
	"slices"

	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/toolcall"
	"github.com/s33g/omni-probe/internal/tools"
)

// CycleResult is one query -> tool calls -> results -> answer round
type CycleResult struct {
	// Reply is the first model reply, which carries any tool calls
	Reply string
	Calls []string
	// Final is the answer after tool results, or Reply when no tool was called
	Final string
	// Messages is the conversation including this round
	Messages []llm.Message
}

// Cycle appends query to history and runs one full tool round. Every extracted
// call is answered by exec with a tool message before the final reply is requested.
func Cycle(ctx context.Context, caller Caller, history []llm.Message, query string, defs []llm.ToolDefinition, exec tools.Executor) (*CycleResult, error) {
	messages := append(slices.Clone(history), llm.Message{Role: llm.RoleUser, Content: query})

	reply, err := caller.Call(ctx, messages, defs)
	if err != nil {
		return nil, err
	}

	messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: reply})

	calls := toolcall.Extract(reply)
	if len(calls) == 0 {
		return &CycleResult{Reply: reply, Final: reply, Messages: messages}, nil
	}

	for _, call := range calls {
		messages = append(messages, llm.Message{Role: llm.RoleTool, Content: exec.Execute(call)})
	}

	final, err := caller.Call(ctx, messages, defs)
	if err != nil {
		return nil, err
	}
	messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: final})

	return &CycleResult{Reply: reply, Calls: calls, Final: final, Messages: messages}, nil
}
