package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by a Redis server via go-redis. It is the
// backend for multi-instance deployments, where an in-process cache
// would serve stale entries after another instance mutates a task.
type Redis struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewRedis creates a Redis-backed cache from a connection URL
// (redis://host:port/db). A non-positive defaultTTL selects DefaultTTL.
// If logger is nil, a default logger will be used.
func NewRedis(url string, defaultTTL time.Duration, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Redis{
		client:     redis.NewClient(opts),
		defaultTTL: defaultTTL,
		logger:     logger.With(slog.String("component", "redis_cache")),
	}, nil
}

// NewRedisWithClient wraps an existing client, which is useful in tests
// and when the caller manages connection pooling itself.
func NewRedisWithClient(client *redis.Client, defaultTTL time.Duration, logger *slog.Logger) *Redis {
	if client == nil {
		panic("client cannot be nil")
	}

	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Redis{
		client:     client,
		defaultTTL: defaultTTL,
		logger:     logger.With(slog.String("component", "redis_cache")),
	}
}

// Ensure Redis implements Cache interface
var _ Cache = (*Redis)(nil)

// Ping verifies the server is reachable. Called once at startup so a bad
// cache URL fails fast instead of degrading every request.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		r.logger.Warn("redis get failed",
			slog.String("error", err.Error()),
			slog.String("key", key))
		return nil, err
	}
	return value, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Warn("redis set failed",
			slog.String("error", err.Error()),
			slog.String("key", key))
		return err
	}
	return nil
}

// Delete implements Cache.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Warn("redis delete failed",
			slog.String("error", err.Error()),
			slog.String("key", key))
		return err
	}
	return nil
}

// Close implements Cache.
func (r *Redis) Close() error {
	return r.client.Close()
}
