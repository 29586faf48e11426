// Package storage holds the Redis connection and key layout shared by stored
// runs, orchestrator sessions and the request limiter.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/s33g/omni-probe/internal/config"
)

// ErrDisabled is returned when no redis.address is configured
var ErrDisabled = errors.New("redis address is not configured")

const dialTimeout = 5 * time.Second

// Client is a connected Redis client and its key generator
type Client struct {
	rdb     *redis.Client
	keys    *Keys
	address string
}

// NewClient connects to the configured Redis. The connection is checked before returning.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	opts := &redis.Options{
		Addr:        cfg.Address,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	}
	if cfg.PasswordEnv != "" {
		opts.Password = os.Getenv(cfg.PasswordEnv)
	}

	c := &Client{
		rdb:     redis.NewClient(opts),
		keys:    NewKeys(cfg.KeyPrefix),
		address: cfg.Address,
	}
	if _, err := c.Ping(ctx); err != nil {
		c.rdb.Close()
		return nil, err
	}
	return c, nil
}

// Ping checks the connection and returns the round trip time
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("failed to reach Redis at %s: %w", c.address, err)
	}
	return time.Since(start), nil
}

// Address returns the server address
func (c *Client) Address() string {
	return c.address
}

// Close closes the connection pool
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis returns the underlying client
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Keys returns the key generator
func (c *Client) Keys() *Keys {
	return c.keys
}
