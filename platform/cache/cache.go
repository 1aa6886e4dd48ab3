// Package cache provides a redis-backed response cache.
// This is part of the platform layer and contains no business logic.
package cache

import (
	"context"
	"errors"
	"time"

	"leadstats_backend/platform/config"
	"leadstats_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin wrapper over a redis client storing serialized payloads
// under TTL-bounded keys. A nil *Cache is valid and behaves as a no-op, so
// callers do not need to branch on whether caching is configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// New creates a cache from the application config. Returns nil (disabled)
// when no redis URL is configured.
func New(cfg config.CacheConfig, log *logger.Logger) (*Cache, error) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	return &Cache{
		client: redis.NewClient(opt),
		ttl:    cfg.GetStatsCacheTTL(),
		log:    log,
	}, nil
}

// NewWithClient creates a cache around an existing redis client. Used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, log: log}
}

// Get returns the cached payload for key, or (nil, false) on a miss.
// Redis errors are logged and reported as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.log != nil {
			c.log.Warn("cache get failed", "error", err, "key", key)
		}
		return nil, false
	}
	return data, true
}

// Set stores payload under key with the configured TTL. Failures are logged
// and swallowed: the cache is an optimization, never a source of truth.
func (c *Cache) Set(ctx context.Context, key string, payload []byte) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil && c.log != nil {
		c.log.Warn("cache set failed", "error", err, "key", key)
	}
}

// InvalidatePrefix removes all keys with the given prefix. Called after a
// mirror sync run so stale aggregates are not served for the full TTL.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	if c == nil || c.client == nil {
		return
	}

	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil && c.log != nil {
			c.log.Warn("cache invalidate failed", "error", err, "key", iter.Val())
		}
	}
	if err := iter.Err(); err != nil && c.log != nil {
		c.log.Warn("cache scan failed", "error", err, "prefix", prefix)
	}
}

// Close releases the underlying redis connection.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
