// Package cache provides the read cache used by the task service. It is
// an explicit injected capability: callers receive a Cache implementation
// and never reach for package-level state. Backends cover an in-process
// LRU-ish map, Redis, and a no-op for deployments that disable caching.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
// Callers treat a miss as "load from the source of truth", never as a
// failure.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores serialized entities keyed by string. Implementations must
// be safe for concurrent use.
type Cache interface {
	// Get returns the cached value for key.
	// Returns ErrCacheMiss if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for at most ttl. A non-positive ttl
	// falls back to the implementation's default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Noop is the disabled-cache backend: every Get misses and writes are
// dropped. Injecting it keeps callers free of nil checks.
type Noop struct{}

// Ensure Noop implements Cache interface
var _ Cache = Noop{}

// Get implements Cache.
func (Noop) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set implements Cache.
func (Noop) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

// Delete implements Cache.
func (Noop) Delete(ctx context.Context, key string) error {
	return nil
}

// Close implements Cache.
func (Noop) Close() error {
	return nil
}
