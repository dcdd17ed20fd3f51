package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/vendor-aggregator/internal/cache/memcache"
	"github.com/iaros/vendor-aggregator/internal/clock"
)

func TestLimiter_AllowsUpToLimitThenRejects(t *testing.T) {
	store := memcache.New(time.Minute, time.Minute)
	clk := clock.NewFrozen(time.Now())
	limiter := New(store, clk, 3, time.Minute)

	for i := 0; i < 3; i++ {
		result := limiter.Allow(context.Background(), "key-1")
		assert.True(t, result.Allowed, "request %d within budget", i+1)
	}

	result := limiter.Allow(context.Background(), "key-1")
	assert.False(t, result.Allowed, "4th request in a 3/minute window must be rejected")
	assert.Equal(t, 0, result.Remaining)
}

func TestLimiter_WindowsAreIndependentPerKey(t *testing.T) {
	store := memcache.New(time.Minute, time.Minute)
	clk := clock.NewFrozen(time.Now())
	limiter := New(store, clk, 1, time.Minute)

	assert.True(t, limiter.Allow(context.Background(), "key-a").Allowed)
	assert.True(t, limiter.Allow(context.Background(), "key-b").Allowed, "separate api key gets its own bucket")
}

func TestLimiter_NewMinuteResetsBudget(t *testing.T) {
	store := memcache.New(time.Minute, time.Minute)
	clk := clock.NewFrozen(time.Now())
	limiter := New(store, clk, 1, time.Minute)

	require.True(t, limiter.Allow(context.Background(), "key-1").Allowed)
	assert.False(t, limiter.Allow(context.Background(), "key-1").Allowed)

	clk.Advance(61 * time.Second)
	assert.True(t, limiter.Allow(context.Background(), "key-1").Allowed, "a new minute bucket must admit again")
}

func TestLimiter_Usage(t *testing.T) {
	store := memcache.New(time.Minute, time.Minute)
	clk := clock.NewFrozen(time.Now())
	limiter := New(store, clk, 5, time.Minute)

	n, err := limiter.Usage(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	limiter.Allow(context.Background(), "key-1")
	limiter.Allow(context.Background(), "key-1")

	n, err = limiter.Usage(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
