package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/s33g/omni-probe/internal/storage"
)

// rateLimitScript counts requests per model in a minute and an hour window.
// Returns {1, 0} when allowed, {-1|-2, ttl} when the minute or hour limit is hit.
const rateLimitScript = `
local minute = tonumber(redis.call('GET', KEYS[1]) or "0")
local hour = tonumber(redis.call('GET', KEYS[2]) or "0")
local minute_limit = tonumber(ARGV[1])
local hour_limit = tonumber(ARGV[2])

if minute_limit > 0 and minute >= minute_limit then
    local ttl = redis.call('TTL', KEYS[1])
    return {-1, ttl > 0 and ttl or 60}
end

if hour_limit > 0 and hour >= hour_limit then
    local ttl = redis.call('TTL', KEYS[2])
    return {-2, ttl > 0 and ttl or 3600}
end

if minute == 0 then
    redis.call('SET', KEYS[1], 1, 'EX', tonumber(ARGV[3]))
else
    redis.call('INCR', KEYS[1])
end

if hour == 0 then
    redis.call('SET', KEYS[2], 1, 'EX', tonumber(ARGV[4]))
else
    redis.call('INCR', KEYS[2])
end

return {1, 0}
`

// tokenBudgetScript adds tokens to the current period unless that would exceed the budget.
// Returns {status, used, remaining, ttl}.
const tokenBudgetScript = `
local limit = tonumber(ARGV[1])

if limit == 0 then
    return {1, 0, 0, 0}
end

local used = tonumber(redis.call('GET', KEYS[1]) or "0")
local to_add = tonumber(ARGV[3])

if used + to_add > limit then
    local ttl = redis.call('TTL', KEYS[1])
    return {-1, used, limit - used, ttl > 0 and ttl or tonumber(ARGV[2])}
end

if used == 0 then
    redis.call('SET', KEYS[1], to_add, 'EX', tonumber(ARGV[2]))
else
    redis.call('INCRBY', KEYS[1], to_add)
end

used = used + to_add
local remaining = limit - used

return {1, used, remaining, 0}
`

// Limiter enforces request rates and token budgets shared by every process using the same Redis
type Limiter struct {
	client         *storage.Client
	rateLimitSHA   string
	tokenBudgetSHA string
}

// NewLimiter loads the limiter scripts into Redis
func NewLimiter(ctx context.Context, client *storage.Client) (*Limiter, error) {
	rateSHA, err := client.Redis().ScriptLoad(ctx, rateLimitScript).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load rate limit script: %w", err)
	}

	tokenSHA, err := client.Redis().ScriptLoad(ctx, tokenBudgetScript).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load token budget script: %w", err)
	}

	return &Limiter{
		client:         client,
		rateLimitSHA:   rateSHA,
		tokenBudgetSHA: tokenSHA,
	}, nil
}

// RateLimitResult holds the result of a rate limit check
type RateLimitResult struct {
	Allowed        bool
	SecondsToReset int
	LimitType      string // "minute" or "hour"
}

// CheckRateLimit counts one request against model. A zero limit is unlimited.
func (l *Limiter) CheckRateLimit(ctx context.Context, model string, perMinute, perHour int) (*RateLimitResult, error) {
	minuteKey := l.client.Keys().RateLimitMinute(model)
	hourKey := l.client.Keys().RateLimitHour(model)

	result, err := l.client.Redis().EvalSha(ctx, l.rateLimitSHA, []string{minuteKey, hourKey},
		perMinute,
		perHour,
		60,   // minute TTL
		3600, // hour TTL
	).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	status, _ := values[0].(int64)
	seconds, _ := values[1].(int64)

	switch status {
	case 1:
		return &RateLimitResult{Allowed: true}, nil
	case -1:
		return &RateLimitResult{SecondsToReset: int(seconds), LimitType: "minute"}, nil
	case -2:
		return &RateLimitResult{SecondsToReset: int(seconds), LimitType: "hour"}, nil
	default:
		return nil, fmt.Errorf("unknown rate limit status: %d", status)
	}
}

// BudgetResult holds the result of a token budget check
type BudgetResult struct {
	Allowed         bool
	TokensUsed      int
	TokensRemaining int
	SecondsToReset  int
}

// periodStart aligns now to the start of its budget period
func periodStart(now time.Time, periodHours int) (start, seconds int64) {
	seconds = int64(periodHours) * 3600
	if seconds <= 0 {
		seconds = 86400
	}
	return (now.Unix() / seconds) * seconds, seconds
}

// CheckTokenBudget records tokens against model's budget for the current period.
// Usage that would exceed the budget is rejected and not recorded. A zero budget always allows.
func (l *Limiter) CheckTokenBudget(ctx context.Context, model string, budget, periodHours, tokens int) (*BudgetResult, error) {
	start, seconds := periodStart(time.Now(), periodHours)
	key := l.client.Keys().TokenBudget(model, start)

	result, err := l.client.Redis().EvalSha(ctx, l.tokenBudgetSHA, []string{key},
		budget,
		seconds,
		tokens,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("token budget check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 4 {
		return nil, fmt.Errorf("unexpected token budget result format")
	}

	status, _ := values[0].(int64)
	used, _ := values[1].(int64)
	remaining, _ := values[2].(int64)
	ttl, _ := values[3].(int64)

	return &BudgetResult{
		Allowed:         status == 1,
		TokensUsed:      int(used),
		TokensRemaining: int(remaining),
		SecondsToReset:  int(ttl),
	}, nil
}

// Usage returns the tokens recorded for model in the current period
func (l *Limiter) Usage(ctx context.Context, model string, periodHours int) (int, error) {
	start, _ := periodStart(time.Now(), periodHours)
	key := l.client.Keys().TokenBudget(model, start)

	val, err := l.client.Redis().Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get usage: %w", err)
	}

	return val, nil
}
