package cache

import (
	"context"
	"testing"
	"time"

	"leadstats_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return NewWithClient(client, ttl, logger.New("development")), srv
}

func TestCacheSetGet(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "stats:abc"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, "stats:abc", []byte(`{"totalLeads":10}`))

	data, ok := c.Get(ctx, "stats:abc")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if string(data) != `{"totalLeads":10}` {
		t.Fatalf("unexpected payload: %s", data)
	}
}

func TestCacheExpiry(t *testing.T) {
	c, srv := newTestCache(t, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "stats:abc", []byte("x"))
	srv.FastForward(2 * time.Minute)

	if _, ok := c.Get(ctx, "stats:abc"); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
}

func TestCacheInvalidatePrefix(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "stats:a", []byte("1"))
	c.Set(ctx, "stats:b", []byte("2"))
	c.Set(ctx, "other:c", []byte("3"))

	c.InvalidatePrefix(ctx, "stats:")

	if _, ok := c.Get(ctx, "stats:a"); ok {
		t.Fatal("expected stats:a to be invalidated")
	}
	if _, ok := c.Get(ctx, "stats:b"); ok {
		t.Fatal("expected stats:b to be invalidated")
	}
	if _, ok := c.Get(ctx, "other:c"); !ok {
		t.Fatal("expected other:c to survive")
	}
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"))
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("nil cache must always miss")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
