// Package redis builds the shared Redis client used for upstream lookup caching.
package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"compliance/internal/platform/config"
)

// KeyPrefix namespaces every key this service writes, so the instance can be
// shared with other applications.
const KeyPrefix = "compliance"

// Key joins parts under KeyPrefix: Key("registry", "project", "7") is
// "compliance:registry:project:7".
func Key(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}

type Client struct {
	*redis.Client
}

// New connects and pings. A nil client and nil error mean Redis is not
// configured and callers run without a cache.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health is the /healthz check for the cache.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
