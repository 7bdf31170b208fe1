package cache

import (
	"context"
	"log/slog"
	"time"
)

// TieredCache layers the in-memory LRU (L1) over an optional Redis cache
// (L2). Reads check L1 first and backfill it on an L2 hit; writes and
// invalidations go to both tiers. L2 failures degrade to L1-only behavior
// rather than surfacing errors.
type TieredCache struct {
	l1 *Service
	l2 CacheService
}

// NewTieredCache builds a tiered cache. l2 may be nil, in which case the
// result behaves exactly like the in-memory service.
func NewTieredCache(cfg Config, l2 CacheService) *TieredCache {
	return &TieredCache{
		l1: NewService(cfg),
		l2: l2,
	}
}

func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if data, ok := c.l1.Get(ctx, key); ok {
		return data, true
	}
	if c.l2 == nil {
		return nil, false
	}
	data, ok := c.l2.Get(ctx, key)
	if !ok {
		return nil, false
	}
	if err := c.l1.Set(ctx, key, data, 0); err != nil {
		slog.Warn("failed to backfill l1 cache", "key", key, "error", err)
	}
	return data, true
}

func (c *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if c.l2 != nil {
		if err := c.l2.Set(ctx, key, value, ttl); err != nil {
			slog.Warn("failed to write l2 cache", "key", key, "error", err)
		}
	}
	return nil
}

func (c *TieredCache) Invalidate(ctx context.Context, pattern string) error {
	if err := c.l1.Invalidate(ctx, pattern); err != nil {
		return err
	}
	if c.l2 != nil {
		if err := c.l2.Invalidate(ctx, pattern); err != nil {
			slog.Warn("failed to invalidate l2 cache", "pattern", pattern, "error", err)
		}
	}
	return nil
}

func (c *TieredCache) Close() {
	c.l1.Close()
	if c.l2 != nil {
		c.l2.Close()
	}
}

var _ CacheService = (*TieredCache)(nil)
