// Package results persists probe runs in Redis so limits can be compared over time.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/s33g/omni-probe/internal/probe"
	"github.com/s33g/omni-probe/internal/storage"
)

// ErrNotFound is returned when a run does not exist or has expired
var ErrNotFound = errors.New("run not found")

// Run groups the reports produced by one command invocation
type Run struct {
	ID        string              `json:"id"`
	Model     string              `json:"model"`
	Kind      string              `json:"kind"` // probe, chain
	Reports   []*probe.Report     `json:"reports"`
	Recall    *probe.RecallReport `json:"recall,omitempty"`
	History   []probe.ChainRecord `json:"history,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// Limits returns axis -> max level for every report in the run
func (r *Run) Limits() map[string]int {
	out := make(map[string]int, len(r.Reports))
	for _, rep := range r.Reports {
		out[rep.Axis] = rep.MaxLevel
	}
	return out
}

// Store saves runs with a TTL and indexes them per model
type Store struct {
	client *storage.Client
	ttl    time.Duration
}

// NewStore creates a run store; a zero ttl keeps runs forever
func NewStore(client *storage.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Save assigns an ID when missing and stores run
func (s *Store) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	for _, rep := range run.Reports {
		rep.ID = run.ID
		rep.Model = run.Model
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	keys := s.client.Keys()
	member := redis.Z{Score: float64(run.CreatedAt.UnixMilli()), Member: run.ID}

	pipe := s.client.Redis().TxPipeline()
	pipe.Set(ctx, keys.Report(run.ID), data, s.ttl)
	pipe.ZAdd(ctx, keys.ReportIndex(run.Model), member)
	pipe.ZAdd(ctx, keys.ReportIndexAll(), member)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// Get loads a run by ID
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	data, err := s.client.Redis().Get(ctx, s.client.Keys().Report(id)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse run %s: %w", id, err)
	}
	return &run, nil
}

// Recent returns up to n runs for model, newest first. An empty model lists every run.
// Index entries whose run has expired are removed.
func (s *Store) Recent(ctx context.Context, model string, n int) ([]*Run, error) {
	if n <= 0 {
		return nil, nil
	}

	index := s.client.Keys().ReportIndexAll()
	if model != "" {
		index = s.client.Keys().ReportIndex(model)
	}

	runs := make([]*Run, 0, n)
	var stale []any

	// Walk the index in pages so expired entries do not shorten the result
	for offset := int64(0); len(runs) < n; offset += int64(n) {
		ids, err := s.client.Redis().ZRevRange(ctx, index, offset, offset+int64(n)-1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			run, err := s.Get(ctx, id)
			if errors.Is(err, ErrNotFound) {
				stale = append(stale, id)
				continue
			}
			if err != nil {
				return nil, err
			}
			runs = append(runs, run)
			if len(runs) == n {
				break
			}
		}
	}

	if len(stale) > 0 {
		s.client.Redis().ZRem(ctx, index, stale...)
	}

	return runs, nil
}

// Delete removes a run and its index entries
func (s *Store) Delete(ctx context.Context, id string) error {
	run, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	keys := s.client.Keys()
	pipe := s.client.Redis().TxPipeline()
	pipe.Del(ctx, keys.Report(id))
	pipe.ZRem(ctx, keys.ReportIndex(run.Model), id)
	pipe.ZRem(ctx, keys.ReportIndexAll(), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}
