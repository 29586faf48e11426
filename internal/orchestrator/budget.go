package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/ratelimit"
)

var (
	// ErrRateLimited is returned when the shared hourly request limit is hit
	ErrRateLimited = errors.New("request rate limit reached")
	// ErrBudgetExhausted is returned when the token budget for the period is spent
	ErrBudgetExhausted = errors.New("token budget exhausted")
)

// Budget gates model calls on limits shared with other processes
type Budget interface {
	// Allow is called before every model call
	Allow(ctx context.Context) error
	// Settle charges the usage recorded since the last settle
	Settle(ctx context.Context) error
}

// RedisBudget enforces an hourly request limit and a token budget per model in Redis.
// Usage is fed through Record, typically from llm.Endpoint.OnUsage.
type RedisBudget struct {
	limiter     *ratelimit.Limiter
	model       string
	perHour     int
	tokens      int
	periodHours int
	pending     atomic.Int64
}

// NewRedisBudget creates a budget for model. Zero limits disable the matching check.
func NewRedisBudget(limiter *ratelimit.Limiter, model string, perHour, tokens, periodHours int) *RedisBudget {
	return &RedisBudget{
		limiter:     limiter,
		model:       model,
		perHour:     perHour,
		tokens:      tokens,
		periodHours: periodHours,
	}
}

// Record adds the usage of one reply to the pending total
func (b *RedisBudget) Record(u llm.Usage) {
	b.pending.Add(int64(u.TotalTokens))
}

// Allow counts one request against the hourly limit
func (b *RedisBudget) Allow(ctx context.Context) error {
	if b.perHour <= 0 {
		return nil
	}
	res, err := b.limiter.CheckRateLimit(ctx, b.model, 0, b.perHour)
	if err != nil {
		return err
	}
	if !res.Allowed {
		return fmt.Errorf("%w: retry in %ds", ErrRateLimited, res.SecondsToReset)
	}
	return nil
}

// Settle charges pending tokens. Usage that no longer fits is rejected and the budget reported exhausted.
func (b *RedisBudget) Settle(ctx context.Context) error {
	tokens := int(b.pending.Swap(0))
	if b.tokens <= 0 || tokens == 0 {
		return nil
	}
	res, err := b.limiter.CheckTokenBudget(ctx, b.model, b.tokens, b.periodHours, tokens)
	if err != nil {
		return err
	}
	if !res.Allowed {
		return fmt.Errorf("%w: %d/%d used, resets in %ds", ErrBudgetExhausted, res.TokensUsed, b.tokens, res.SecondsToReset)
	}
	return nil
}
