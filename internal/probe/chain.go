package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/toolcall"
	"github.com/s33g/omni-probe/internal/tools"
)

// ChainRecord is one successful chain step
type ChainRecord struct {
	Step   int    `json:"step"`
	Tool   string `json:"tool"`
	Call   string `json:"call"`
	Result string `json:"result"`
}

// ChainReport is the chain-depth report plus the records needed for recall probing
type ChainReport struct {
	*Report
	History []ChainRecord `json:"history"`
}

// ChainDepth walks steps in one growing conversation. Each step must call the
// expected tool first; its result is executed by exec and the model is asked
// to interpret it before the next step. Depth is the number of steps passed.
func (p *Prober) ChainDepth(ctx context.Context, steps []tools.ChainStep, exec tools.Executor) *ChainReport {
	defs := tools.Chain()
	levels := make([]int, len(steps))
	for i := range levels {
		levels[i] = i + 1
	}

	var conversation []llm.Message
	out := &ChainReport{}

	out.Report = p.run(ctx, AxisChainDepth, levels, func(ctx context.Context, step int) (bool, string, error) {
		expected := steps[step-1]
		conversation = append(conversation, llm.Message{Role: llm.RoleUser, Content: expected.Query})

		reply, err := p.caller.Call(ctx, conversation, defs)
		if err != nil {
			return false, "", err
		}

		calls := toolcall.Extract(reply)
		if len(calls) == 0 {
			return false, "no tool call made", nil
		}
		if !strings.Contains(calls[0], expected.Tool) {
			return false, fmt.Sprintf("wrong tool: %s, want %s", calls[0], expected.Tool), nil
		}

		result := exec.Execute(calls[0])
		conversation = append(conversation,
			llm.Message{Role: llm.RoleAssistant, Content: reply},
			llm.Message{Role: llm.RoleTool, Content: result},
		)
		out.History = append(out.History, ChainRecord{Step: step, Tool: expected.Tool, Call: calls[0], Result: result})

		interpretation, err := p.caller.Call(ctx, conversation, defs)
		if err != nil {
			return false, "", fmt.Errorf("interpretation failed: %w", err)
		}
		conversation = append(conversation, llm.Message{Role: llm.RoleAssistant, Content: interpretation})

		return true, calls[0], nil
	})

	return out
}

// RecallQuestion asks for a value produced at Step
type RecallQuestion struct {
	Step     int
	Question string
	Expected string
}

// DefaultRecallQuestions target the first four chain steps
var DefaultRecallQuestions = []RecallQuestion{
	{1, "What was the email address from step 1?", "sarah.chen@techcorp.com"},
	{1, "What was the user_id from step 1?", "usr_8k2m9p4"},
	{2, "What was the first order_id from step 2?", "ord_x9j2k1"},
	{3, "What was the first product_id from step 3?", "prod_wireless_kb"},
	{4, "What was the supplier_id from step 4?", "sup_logitech"},
}

// RecallResult is the answer to one recall question
type RecallResult struct {
	Step     int    `json:"step"`
	Question string `json:"question"`
	Expected string `json:"expected"`
	Response string `json:"response,omitempty"`
	Recalled bool   `json:"recalled"`
	Err      string `json:"error,omitempty"`
}

// RecallReport summarizes a history retention run
type RecallReport struct {
	Asked    int            `json:"asked"`
	Recalled int            `json:"recalled"`
	Total    int            `json:"total"`
	Results  []RecallResult `json:"results"`
}

// Rate returns recalled answers as a share of all questions
func (r *RecallReport) Rate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Recalled) / float64(r.Total)
}

// HistoryConversation rebuilds a compact conversation from chain records
func HistoryConversation(history []ChainRecord) []llm.Message {
	messages := make([]llm.Message, 0, len(history)*4)
	for _, item := range history {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("Execute step %d", item.Step)},
			llm.Message{Role: llm.RoleAssistant, Content: toolcall.Format(item.Call)},
			llm.Message{Role: llm.RoleTool, Content: item.Result},
			llm.Message{Role: llm.RoleAssistant, Content: fmt.Sprintf("Step %d completed", item.Step)},
		)
	}
	return messages
}

// HistoryRetention asks each question against the rebuilt history and checks the
// answer mentions the expected value, ignoring case. Questions about steps that
// were never reached are skipped. A failed call is recorded and the run continues.
func (p *Prober) HistoryRetention(ctx context.Context, history []ChainRecord, questions []RecallQuestion) *RecallReport {
	report := &RecallReport{Total: len(questions)}
	if len(history) == 0 {
		return report
	}

	defs := tools.Chain()
	conversation := HistoryConversation(history)

	for _, q := range questions {
		if q.Step > len(history) {
			continue
		}
		report.Asked++

		conversation = append(conversation, llm.Message{Role: llm.RoleUser, Content: q.Question})
		result := RecallResult{Step: q.Step, Question: q.Question, Expected: q.Expected}

		reply, err := p.caller.Call(ctx, conversation, defs)
		if err != nil {
			conversation = conversation[:len(conversation)-1]
			result.Err = err.Error()
			report.Results = append(report.Results, result)
			p.logger.Warn().Err(err).Int("step", q.Step).Msg("Recall question failed")
			continue
		}

		result.Response = reply
		result.Recalled = strings.Contains(strings.ToLower(reply), strings.ToLower(q.Expected))
		if result.Recalled {
			report.Recalled++
		}
		report.Results = append(report.Results, result)
		conversation = append(conversation, llm.Message{Role: llm.RoleAssistant, Content: reply})

		p.logger.Info().
			Int("step", q.Step).
			Bool("recalled", result.Recalled).
			Msg("Recall question answered")
	}

	return report
}
