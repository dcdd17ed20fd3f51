// Package ratelimit implements the fixed-window request limiter
// (C8): each API key gets a counter keyed by the current calendar
// minute, reset implicitly by the counter's own TTL. This is
// deliberately simpler than the teacher's Redis sorted-set sliding
// window (ratelimit.RateLimiter.checkRateLimit) — a fixed window can
// admit up to 2x the nominal limit across a window boundary, accepted
// as the cost of a single Incr instead of a four-command pipeline.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/iaros/vendor-aggregator/internal/cache"
	"github.com/iaros/vendor-aggregator/internal/clock"
)

// Limiter enforces a per-API-key request budget over one-minute
// fixed windows.
type Limiter struct {
	store        cache.Cache
	clock        clock.Clock
	limitPerWindow int
	windowTTL    time.Duration
}

// New returns a Limiter admitting up to limitPerWindow requests per
// calendar minute per API key, with counters expiring after windowTTL
// (normally slightly over one minute, so a slow reader still sees the
// count before it vanishes).
func New(store cache.Cache, clk clock.Clock, limitPerWindow int, windowTTL time.Duration) *Limiter {
	return &Limiter{store: store, clock: clk, limitPerWindow: limitPerWindow, windowTTL: windowTTL}
}

// Result reports the outcome of one Allow check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Count     int64
}

// Allow increments apiKey's counter for the current minute and
// reports whether the request is within budget. A cache error
// degrades to allowing the request, matching the best-effort policy
// applied to the product cache.
func (l *Limiter) Allow(ctx context.Context, apiKey string) Result {
	key := windowKey(apiKey, l.clock.Now())

	count, err := l.store.Incr(ctx, key, l.windowTTL)
	if err != nil {
		return Result{Allowed: true, Limit: l.limitPerWindow, Remaining: l.limitPerWindow}
	}

	remaining := l.limitPerWindow - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(l.limitPerWindow),
		Limit:     l.limitPerWindow,
		Remaining: remaining,
		Count:     count,
	}
}

// Usage reports the current count for apiKey's active window without
// incrementing it, for the admin introspection endpoint.
func (l *Limiter) Usage(ctx context.Context, apiKey string) (int64, error) {
	key := windowKey(apiKey, l.clock.Now())
	b, err := l.store.Get(ctx, key)
	if err == cache.ErrMiss {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int64
	if _, scanErr := fmt.Sscanf(string(b), "%d", &n); scanErr != nil {
		return 0, nil
	}
	return n, nil
}

// windowKey produces rate_limit:<api_key>:<YYYY-MM-DD-HH-MM>, matching
// the original implementation's minute-bucketed key format.
func windowKey(apiKey string, now time.Time) string {
	return fmt.Sprintf("rate_limit:%s:%s", apiKey, now.UTC().Format("2006-01-02-15-04"))
}
