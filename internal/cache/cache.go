// Package cache defines the storage abstraction shared by the
// product cache (C7) and the rate limiter (C8), with interchangeable
// in-process and Redis-backed implementations.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is the minimal read-through key/value store both the product
// cache and the rate limiter are built on. Implementations may return
// their internal errors; callers treat the cache as best-effort, so a
// failing cache degrades to a miss (aggregator) or an admitted request
// (rate limiter) rather than failing the lookup.
type Cache interface {
	// Get returns the raw bytes stored at key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value at key with the given time-to-live.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key, if present.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key is currently present.
	Exists(ctx context.Context, key string) (bool, error)
	// Incr increments the integer stored at key by 1, creating it at
	// 1 with the given ttl if absent, and returns the post-increment
	// value. Used by the fixed-window rate limiter. The Redis store
	// increments atomically; the in-process store does not.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// ScanDelete deletes every key matching a glob-style pattern (the
	// same syntax as Redis KEYS/SCAN patterns, e.g. "product:*"), for
	// administrative bulk invalidation. Returns the number of keys
	// removed.
	ScanDelete(ctx context.Context, pattern string) (int, error)
	// Close releases any underlying connections.
	Close() error
}
