//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"compliance/internal/platform/config"
	"compliance/internal/platform/redis"
)

// RedisContainer is a Redis instance reached through the same client the
// server builds from REDIS_URL.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get redis connection string: %v", err)
	}

	cfg := config.Defaults().Redis
	cfg.URL = url
	client, err := redis.New(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to redis: %v", err)
	}

	// Shared by every suite through Manager; Ryuk removes the container.
	return &RedisContainer{Container: container, URL: url, Client: client}
}

// FlushAll drops every cached lookup between tests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
