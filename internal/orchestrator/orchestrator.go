// Package orchestrator runs a continuous tool-chain loop that stays inside the
// limits found by the probes: chain depth, history length and request budget.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/s33g/omni-probe/internal/conversation"
	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/probe"
	"github.com/s33g/omni-probe/internal/toolcall"
	"github.com/s33g/omni-probe/internal/tools"
)

// Config wires an Orchestrator
type Config struct {
	Caller   probe.Caller
	Tools    []llm.ToolDefinition
	Executor tools.Executor
	// System opens a new chain; compression keeps it as the first message
	System        string
	Limits        conversation.Limits
	MaxIterations int
	// RequestsPerMinute paces model calls locally; 0 disables pacing
	RequestsPerMinute int
	// Budget is optional
	Budget Budget
	// Context, when set, trims each request to the model's window
	Context *conversation.ContextBuilder
	Model   string
	// Sessions and Session, when both set, persist the chain after every query
	Sessions *conversation.SessionStore
	Session  *conversation.Session
	State    *conversation.ChainState
}

// resetter is an executor that keeps per-query state
type resetter interface {
	Reset()
}

// Orchestrator answers queries with as many tool rounds as needed
type Orchestrator struct {
	caller        probe.Caller
	tools         []llm.ToolDefinition
	exec          tools.Executor
	system        string
	state         *conversation.ChainState
	maxIterations int
	pacer         *rate.Limiter
	budget        Budget
	context       *conversation.ContextBuilder
	model         string
	sessions      *conversation.SessionStore
	session       *conversation.Session
	logger        zerolog.Logger
}

// New creates an orchestrator. A nil State starts an empty chain.
func New(cfg Config, logger zerolog.Logger) *Orchestrator {
	state := cfg.State
	if state == nil {
		state = conversation.NewChainState(cfg.Limits)
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 5
	}

	o := &Orchestrator{
		caller:        cfg.Caller,
		tools:         cfg.Tools,
		exec:          cfg.Executor,
		system:        cfg.System,
		state:         state,
		maxIterations: maxIterations,
		budget:        cfg.Budget,
		context:       cfg.Context,
		model:         cfg.Model,
		sessions:      cfg.Sessions,
		session:       cfg.Session,
		logger:        logger.With().Str("component", "orchestrator").Logger(),
	}
	if cfg.RequestsPerMinute > 0 {
		o.pacer = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return o
}

// State returns the chain the orchestrator works on
func (o *Orchestrator) State() *conversation.ChainState {
	return o.state
}

// call sends the current chain to the model after pacing and budget checks
func (o *Orchestrator) call(ctx context.Context) (string, error) {
	if o.pacer != nil {
		if err := o.pacer.Wait(ctx); err != nil {
			return "", err
		}
	}
	if o.budget != nil {
		if err := o.budget.Allow(ctx); err != nil {
			return "", err
		}
	}

	messages := o.state.Messages()
	if o.context != nil {
		var (
			tokens int
			err    error
		)
		messages, tokens, err = o.context.Build(messages, o.model)
		if err != nil {
			return "", fmt.Errorf("failed to build request: %w", err)
		}
		o.logger.Debug().Int("messages", len(messages)).Int("tokens", tokens).Msg("Built request context")
	}

	return o.caller.Call(ctx, messages, o.tools)
}

// ProcessQuery answers one query. A chain at its depth limit is reset first.
// Each iteration either returns the model's answer or executes its tool calls;
// when iterations run out the last reply is returned.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string) (string, error) {
	if o.state.ShouldReset() {
		o.logger.Warn().Int("depth", o.state.Depth()).Msg("Chain depth limit reached, resetting chain")
		o.state.ResetChain()
		o.state.Add(llm.RoleSystem, conversation.ResetNotice)
	}

	if o.system != "" && o.state.Len() == 0 {
		o.state.Add(llm.RoleSystem, o.system)
	}
	if r, ok := o.exec.(resetter); ok {
		r.Reset()
	}
	o.state.Add(llm.RoleUser, query)

	var reply string
	for i := 0; i < o.maxIterations; i++ {
		var err error
		reply, err = o.call(ctx)
		if err != nil {
			return "", err
		}

		calls := toolcall.Extract(reply)
		o.state.Add(llm.RoleAssistant, reply)
		if len(calls) == 0 {
			o.logger.Debug().Int("iteration", i+1).Msg("Final answer generated")
			return reply, nil
		}

		for _, c := range calls {
			result := o.exec.Execute(c)
			o.state.Add(llm.RoleTool, result)
			o.state.CacheResult(c, result)

			o.logger.Debug().
				Int("iteration", i+1).
				Str("call", c).
				Int("depth", o.state.Depth()).
				Msg("Executed tool call")
		}
	}

	o.logger.Warn().Int("iterations", o.maxIterations).Msg("Max iterations reached")
	return reply, nil
}

// Outcome is the result of one streamed query
type Outcome struct {
	Query      string    `json:"query"`
	Result     string    `json:"result,omitempty"`
	Err        string    `json:"error,omitempty"`
	ChainDepth int       `json:"chain_depth"`
	Timestamp  time.Time `json:"timestamp"`
}

// Run processes queries until the channel closes, ctx is done or a budget stops it.
// A failed query is reported and the stream continues. The returned channel is
// closed when processing ends.
func (o *Orchestrator) Run(ctx context.Context, queries <-chan string) <-chan Outcome {
	out := make(chan Outcome)

	go func() {
		defer close(out)

		for {
			var (
				query string
				ok    bool
			)
			select {
			case <-ctx.Done():
				return
			case query, ok = <-queries:
				if !ok {
					return
				}
			}

			outcome, err := o.process(ctx, query)

			select {
			case out <- outcome:
			case <-ctx.Done():
				return
			}

			if fatal(ctx, err) {
				o.logger.Warn().Err(err).Msg("Stopping query stream")
				return
			}
		}
	}()

	return out
}

// process answers query and applies the bookkeeping shared by every query
func (o *Orchestrator) process(ctx context.Context, query string) (Outcome, error) {
	outcome := Outcome{Query: query}

	result, err := o.ProcessQuery(ctx, query)
	if err == nil && o.budget != nil {
		err = o.budget.Settle(ctx)
	}
	if err != nil {
		o.logger.Error().Err(err).Str("query", query).Msg("Failed to process query")
		outcome.Err = err.Error()
	} else {
		outcome.Result = result
	}

	o.persist(ctx, query)

	outcome.ChainDepth = o.state.Depth()
	outcome.Timestamp = time.Now()
	return outcome, err
}

// persist stores the chain in the session, if one is attached
func (o *Orchestrator) persist(ctx context.Context, query string) {
	if o.sessions == nil || o.session == nil {
		return
	}
	o.session.Queries++
	if err := o.sessions.Save(ctx, o.session, o.state); err != nil {
		o.logger.Warn().Err(err).Str("session", o.session.ID).Msg("Failed to save session")
		return
	}
	o.logger.Debug().Str("session", o.session.ID).Str("query", query).Msg("Saved session")
}

// fatal reports errors that end a stream rather than a single query
func fatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return ctx.Err() != nil || errors.Is(err, ErrBudgetExhausted) || errors.Is(err, ErrRateLimited)
}

// RunAll processes a fixed list of queries and collects every outcome
func (o *Orchestrator) RunAll(ctx context.Context, queries []string) []Outcome {
	in := make(chan string, len(queries))
	for _, q := range queries {
		in <- q
	}
	close(in)

	var outcomes []Outcome
	for outcome := range o.Run(ctx, in) {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
