package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 250 * time.Millisecond

// Cache is a fail-open wrapper around Redis. Every operation is bounded by a
// short timeout; on backend error, timeout, or unavailability, reads degrade
// to a miss and writes to a no-op. Failures are logged at debug level only
// and never propagate to callers: the read path must stay available even
// with Redis fully down.
type Cache struct {
	client    *redis.Client
	logger    *slog.Logger
	opTimeout time.Duration
}

// Option configures the cache.
type Option func(*Cache)

// WithOpTimeout overrides the per-operation timeout.
func WithOpTimeout(d time.Duration) Option {
	return func(c *Cache) { c.opTimeout = d }
}

// New creates a cache over the given Redis client.
func New(client *redis.Client, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		client:    client,
		logger:    logger,
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key, or ok=false on miss or any backend failure.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.DebugContext(ctx, "cache get failed, treating as miss",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	return value, true
}

// Set stores value under key with the given TTL. Returns false on failure;
// callers must treat false as "proceed without caching".
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.DebugContext(ctx, "cache set failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Del removes the given keys. Best-effort.
func (c *Cache) Del(ctx context.Context, keys ...string) bool {
	if len(keys) == 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.DebugContext(ctx, "cache del failed",
			slog.String("key", keys[0]),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// DelPattern removes all keys matching the glob pattern, using SCAN to avoid
// blocking the server. Best-effort.
func (c *Cache) DelPattern(ctx context.Context, pattern string) bool {
	ctx, cancel := context.WithTimeout(ctx, 4*c.opTimeout)
	defer cancel()

	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.logger.DebugContext(ctx, "cache scan failed",
				slog.String("pattern", pattern),
				slog.String("error", err.Error()),
			)
			return false
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return true
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.DebugContext(ctx, "cache del pattern failed",
			slog.String("pattern", pattern),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Available reports whether the backend currently answers pings. Diagnostics
// only: callers must function correctly when this reports false.
func (c *Cache) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.client.Ping(ctx).Err() == nil
}
