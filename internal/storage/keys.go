package storage

import (
	"fmt"
)

// Keys generates Redis keys with consistent naming
type Keys struct {
	prefix string
}

// NewKeys creates a new Keys generator
func NewKeys(prefix string) *Keys {
	return &Keys{prefix: prefix}
}

// Report returns the key for a stored probe report
func (k *Keys) Report(id string) string {
	return fmt.Sprintf("%sreport:%s", k.prefix, id)
}

// ReportIndex returns the sorted set of report IDs for a model, scored by finish time
func (k *Keys) ReportIndex(model string) string {
	return fmt.Sprintf("%sreports:%s", k.prefix, model)
}

// ReportIndexAll returns the sorted set of every report ID
func (k *Keys) ReportIndexAll() string {
	return k.prefix + "reports:_all"
}

// Session returns the key for orchestrator session metadata
func (k *Keys) Session(id string) string {
	return fmt.Sprintf("%ssession:%s", k.prefix, id)
}

// SessionMessages returns the key for a session's message history
func (k *Keys) SessionMessages(id string) string {
	return fmt.Sprintf("%ssession:%s:messages", k.prefix, id)
}

// SessionResults returns the key for a session's recent tool results
func (k *Keys) SessionResults(id string) string {
	return fmt.Sprintf("%ssession:%s:results", k.prefix, id)
}

// RateLimitMinute returns the key for per-minute request limiting
func (k *Keys) RateLimitMinute(model string) string {
	return fmt.Sprintf("%sratelimit:%s:minute", k.prefix, model)
}

// RateLimitHour returns the key for per-hour request limiting
func (k *Keys) RateLimitHour(model string) string {
	return fmt.Sprintf("%sratelimit:%s:hour", k.prefix, model)
}

// TokenBudget returns the key for token usage in the period starting at periodStart
func (k *Keys) TokenBudget(model string, periodStart int64) string {
	return fmt.Sprintf("%stokens:%s:%d", k.prefix, model, periodStart)
}
