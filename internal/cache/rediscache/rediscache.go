// Package rediscache is a Redis-backed cache.Cache, used for the
// product cache and fixed-window rate limiter when REDIS_HOST is
// configured, so both survive process restarts and are shared across
// instances.
package rediscache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iaros/vendor-aggregator/internal/cache"
)

// Options configures the underlying connection pool.
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Store wraps a redis.Client behind the cache.Cache interface.
type Store struct {
	client *redis.Client
}

// New dials Redis and pings it once so startup fails fast on a
// misconfigured endpoint, matching the teacher's NewRateLimiter
// connection check.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	return &Store{client: client}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Incr increments key, setting its TTL only on first creation
// (count == 1) so a key's window doesn't keep sliding forward on
// every request within it.
func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		s.client.Expire(ctx, key, ttl)
	}
	return n, nil
}

// ScanDelete walks the keyspace with SCAN (never the blocking KEYS
// command) and deletes every match in batches.
func (s *Store) ScanDelete(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	var deleted int
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, err
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
