package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	rediskeys "compliance/internal/platform/redis"
)

// Cached is a read-through Redis cache in front of a Registry. Concurrent
// misses for the same key share one upstream call. Cache failures degrade to
// direct lookups; upstream errors are never cached.
type Cached struct {
	next   Registry
	rdb    redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

func NewCached(next Registry, rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *Cached) ListProjects(ctx context.Context) ([]Project, error) {
	projects, err := cachedLookup(ctx, c, rediskeys.Key("registry", "projects"), func() (*[]Project, error) {
		list, err := c.next.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		return &list, nil
	})
	if err != nil {
		return nil, err
	}
	return *projects, nil
}

func (c *Cached) GetProject(ctx context.Context, id int64) (*Project, error) {
	return cachedLookup(ctx, c, rediskeys.Key("registry", "project", strconv.FormatInt(id, 10)), func() (*Project, error) {
		return c.next.GetProject(ctx, id)
	})
}

func (c *Cached) GetFirstNation(ctx context.Context, id int64) (*FirstNation, error) {
	return cachedLookup(ctx, c, rediskeys.Key("registry", "first_nation", strconv.FormatInt(id, 10)), func() (*FirstNation, error) {
		return c.next.GetFirstNation(ctx, id)
	})
}

func cachedLookup[T any](ctx context.Context, c *Cached, key string, load func() (*T, error)) (*T, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			return &v, nil
		}
	case err != redis.Nil:
		c.logger.WarnContext(ctx, "registry cache read failed", "key", key, "error", err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		loaded, err := load()
		if err != nil {
			return nil, err
		}
		if payload, jsonErr := json.Marshal(loaded); jsonErr == nil {
			if setErr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
				c.logger.WarnContext(ctx, "registry cache write failed", "key", key, "error", setErr)
			}
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}
