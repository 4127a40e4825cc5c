package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// DefaultRedisConfig returns sensible defaults for Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     "localhost",
		Port:     6379,
		Password: "",
		DB:       0,
	}
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewRedisClient creates a Redis client without requiring the server to be
// reachable. An initial ping failure is logged as a warning, not returned:
// the caching layer degrades to direct database reads until Redis comes back,
// so an unreachable Redis must never prevent startup.
func NewRedisClient(ctx context.Context, cfg RedisConfig, logger *slog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil && logger != nil {
		logger.Warn("redis unreachable at startup, caching disabled until it recovers",
			slog.String("addr", cfg.Addr()),
			slog.String("error", err.Error()),
		)
	}

	return client
}
