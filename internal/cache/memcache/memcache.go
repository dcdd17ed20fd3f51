// Package memcache is an in-process cache.Cache backed by
// patrickmn/go-cache, used in tests and by cmd/server when the Redis
// host is empty or does not answer at startup (local development,
// single-instance deployments).
package memcache

import (
	"context"
	"path"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/iaros/vendor-aggregator/internal/cache"
)

// Store wraps a gocache.Cache behind the cache.Cache interface.
type Store struct {
	c *gocache.Cache
}

// New returns a Store with the given default expiration and cleanup
// interval; callers always pass an explicit TTL to Set, so the
// default only governs entries set with gocache.DefaultExpiration.
func New(defaultExpiration, cleanupInterval time.Duration) *Store {
	return &Store{c: gocache.New(defaultExpiration, cleanupInterval)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, cache.ErrMiss
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, cache.ErrMiss
	}
	return b, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.c.Set(key, value, ttl)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.c.Get(key)
	return ok, nil
}

// Incr implements the fixed-window counter non-atomically: read,
// increment (or initialize), write back. go-cache offers no
// compare-and-swap primitive, so concurrent increments within the
// same window can race and undercount — accepted as the cost of
// the fixed-window design. The counter is stored as decimal []byte,
// same representation Get returns, so Usage() can read it directly.
func (s *Store) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	v, ok := s.c.Get(key)
	if !ok {
		s.c.Set(key, []byte("1"), ttl)
		return 1, nil
	}
	b, ok := v.([]byte)
	if !ok {
		s.c.Set(key, []byte("1"), ttl)
		return 1, nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		n = 0
	}
	n++
	s.c.Set(key, []byte(strconv.FormatInt(n, 10)), ttl)
	return n, nil
}

// ScanDelete deletes every key matching a glob-style pattern via
// path.Match, since go-cache has no native SCAN.
func (s *Store) ScanDelete(_ context.Context, pattern string) (int, error) {
	deleted := 0
	for key := range s.c.Items() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return deleted, err
		}
		if matched {
			s.c.Delete(key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) Close() error {
	s.c.Flush()
	return nil
}
