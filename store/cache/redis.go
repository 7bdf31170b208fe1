package cache

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the Redis connection configuration.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DefaultTTL   time.Duration
	PoolSize     int
	MinIdleConns int
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "convmeta:",
		DefaultTTL:   30 * time.Minute,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// RedisCache is the Redis-backed CacheService. It is only needed for
// multi-instance deployments where conversation lookups must be shared
// across processes; single-instance setups run on the in-memory Service.
type RedisCache struct {
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to ping redis at %s", cfg.Addr)
	}

	return &RedisCache{
		client:     client,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// Get retrieves a value from Redis. Misses and transport errors both
// report "not found"; the caller falls through to the database.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores a value in Redis.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set redis key")
	}
	return nil
}

// Invalidate removes entries matching the pattern. A trailing * wildcard
// expands to a SCAN + DEL pass.
func (c *RedisCache) Invalidate(ctx context.Context, pattern string) error {
	full := c.keyPrefix + pattern
	if !strings.Contains(pattern, "*") {
		if err := c.client.Del(ctx, full).Err(); err != nil {
			return errors.Wrap(err, "failed to delete redis key")
		}
		return nil
	}

	iter := c.client.Scan(ctx, 0, full, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return errors.Wrap(err, "failed to delete redis key")
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "failed to scan redis keys")
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() {
	_ = c.client.Close()
}

var _ CacheService = (*RedisCache)(nil)
