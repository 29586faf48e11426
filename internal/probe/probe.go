// Package probe measures how far a tool-calling model can be pushed along an
// axis (parameters, tools, sequential calls, chain depth) before it fails.
package probe

import (
	"context"
	"time"

	"github.com/s33g/omni-probe/internal/llm"
)

// Caller sends a conversation to a model and returns the reply text
type Caller interface {
	Call(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (string, error)
}

// CallerFunc adapts a function to Caller
type CallerFunc func(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (string, error)

// Call calls f
func (f CallerFunc) Call(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (string, error) {
	return f(ctx, messages, tools)
}

// Check runs one level and classifies the reply
type Check func(ctx context.Context, level int) (passed bool, detail string, err error)

// Outcome is the result of one level
type Outcome struct {
	Level    int           `json:"level"`
	Passed   bool          `json:"passed"`
	Detail   string        `json:"detail,omitempty"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the ordered log of a probe run
type Report struct {
	ID    string `json:"id,omitempty"`
	Axis  string `json:"axis"`
	Model string `json:"model,omitempty"`
	// MaxLevel is the highest level passed before the first failure, 0 if none
	MaxLevel int       `json:"max_level"`
	Outcomes []Outcome `json:"outcomes"`
	// StoppedAt is the first failing level, 0 when every level passed
	StoppedAt  int       `json:"stopped_at"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Passed reports whether every level passed
func (r *Report) Passed() bool {
	return r.StoppedAt == 0
}

// Run walks levels in order and stops at the first failure.
// An error counts as a failure; a cancelled context stops the run at the current level.
func Run(ctx context.Context, axis string, levels []int, check Check) *Report {
	report := &Report{
		Axis:      axis,
		Outcomes:  make([]Outcome, 0, len(levels)),
		StartedAt: time.Now(),
	}
	defer func() { report.FinishedAt = time.Now() }()

	for _, level := range levels {
		start := time.Now()

		var (
			passed bool
			detail string
			err    error
		)
		if err = ctx.Err(); err == nil {
			passed, detail, err = check(ctx, level)
		}

		outcome := Outcome{
			Level:    level,
			Passed:   passed && err == nil,
			Detail:   detail,
			Duration: time.Since(start),
		}
		if err != nil {
			outcome.Err = err.Error()
		}
		report.Outcomes = append(report.Outcomes, outcome)

		if !outcome.Passed {
			report.StoppedAt = level
			break
		}
		report.MaxLevel = level
	}

	return report
}
