package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/s33g/omni-probe/internal/llm"
	"github.com/s33g/omni-probe/internal/storage"
)

// ErrSessionNotFound is returned when a session does not exist or has expired
var ErrSessionNotFound = errors.New("session not found")

// Session is the metadata of a stored orchestrator conversation
type Session struct {
	ID         string
	Model      string
	ChainDepth int
	Queries    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ToMap converts the session to a map for Redis HSET
func (s *Session) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"model":       s.Model,
		"chain_depth": s.ChainDepth,
		"queries":     s.Queries,
		"created_at":  s.CreatedAt.Unix(),
		"updated_at":  s.UpdatedAt.Unix(),
	}
}

// FromMap populates the session from a Redis HGETALL result
func (s *Session) FromMap(id string, m map[string]string) {
	s.ID = id
	s.Model = m["model"]
	s.ChainDepth, _ = strconv.Atoi(m["chain_depth"])
	s.Queries, _ = strconv.Atoi(m["queries"])

	if v, err := strconv.ParseInt(m["created_at"], 10, 64); err == nil {
		s.CreatedAt = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(m["updated_at"], 10, 64); err == nil {
		s.UpdatedAt = time.Unix(v, 0)
	}
}

// SessionStore persists chain conversations so an orchestrator run can resume
type SessionStore struct {
	client *storage.Client
	ttl    time.Duration
}

// NewSessionStore creates a session store
func NewSessionStore(client *storage.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// Save replaces the stored state of session id
func (m *SessionStore) Save(ctx context.Context, sess *Session, state *ChainState) error {
	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	sess.ChainDepth = state.Depth()

	keys := m.client.Keys()
	metaKey := keys.Session(sess.ID)
	msgKey := keys.SessionMessages(sess.ID)
	resKey := keys.SessionResults(sess.ID)

	pipe := m.client.Redis().TxPipeline()
	pipe.HSet(ctx, metaKey, sess.ToMap())
	pipe.Del(ctx, msgKey, resKey)

	for _, msg := range state.messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		pipe.RPush(ctx, msgKey, data)
	}
	for _, r := range state.recent {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal tool result: %w", err)
		}
		pipe.RPush(ctx, resKey, data)
	}

	if m.ttl > 0 {
		pipe.Expire(ctx, metaKey, m.ttl)
		pipe.Expire(ctx, msgKey, m.ttl)
		pipe.Expire(ctx, resKey, m.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load restores session id into a chain with the given limits
func (m *SessionStore) Load(ctx context.Context, id string, limits Limits) (*Session, *ChainState, error) {
	keys := m.client.Keys()

	meta, err := m.client.Redis().HGetAll(ctx, keys.Session(id)).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	var sess Session
	sess.FromMap(id, meta)

	rawMessages, err := m.client.Redis().LRange(ctx, keys.SessionMessages(id), 0, -1).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get session messages: %w", err)
	}
	rawResults, err := m.client.Redis().LRange(ctx, keys.SessionResults(id), 0, -1).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get session results: %w", err)
	}

	state := NewChainState(limits)
	state.depth = sess.ChainDepth
	for _, raw := range rawMessages {
		var msg llm.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			// Skip malformed messages
			continue
		}
		state.messages = append(state.messages, llm.Message{Role: msg.Role, Content: msg.Text()})
	}
	for _, raw := range rawResults {
		var r CachedResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			continue
		}
		state.recent = append(state.recent, r)
		state.cache[r.Call] = r.Result
	}

	return &sess, state, nil
}

// Delete removes a session and its history
func (m *SessionStore) Delete(ctx context.Context, id string) error {
	keys := m.client.Keys()

	if err := m.client.Redis().Del(ctx, keys.Session(id), keys.SessionMessages(id), keys.SessionResults(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
