package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/vendor-aggregator/internal/circuit"
	"github.com/iaros/vendor-aggregator/internal/clock"
	"github.com/iaros/vendor-aggregator/internal/normalize"
	"github.com/iaros/vendor-aggregator/internal/vendor"
)

func opts(b *circuit.Breaker, clk clock.Clock, retries int) Options {
	return Options{
		Timeout:     100 * time.Millisecond,
		Retries:     retries,
		Breaker:     b,
		Clock:       clk,
		BackoffUnit: time.Millisecond,
	}
}

func TestCall_SucceedsOnFirstAttempt(t *testing.T) {
	b := circuit.New(3, 30*time.Second)
	clk := clock.NewFrozen(time.Now())

	calls := 0
	attempt := func(ctx context.Context, sku string) (normalize.NormalizedRecord, error) {
		calls++
		return normalize.NormalizedRecord{SKU: sku, Vendor: "VendorA"}, nil
	}

	rec, err := Call(context.Background(), "SKU001", opts(b, clk, 2), attempt)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, calls)
	assert.Equal(t, circuit.Closed, b.State())
}

func TestCall_RetriesThenSucceeds(t *testing.T) {
	b := circuit.New(5, 30*time.Second)
	clk := clock.NewFrozen(time.Now())

	calls := 0
	attempt := func(ctx context.Context, sku string) (normalize.NormalizedRecord, error) {
		calls++
		if calls < 3 {
			return normalize.NormalizedRecord{}, errors.New("transient upstream error")
		}
		return normalize.NormalizedRecord{SKU: sku, Vendor: "VendorA"}, nil
	}

	rec, err := Call(context.Background(), "SKU001", opts(b, clk, 2), attempt)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 3, calls)
}

func TestCall_NotFoundShortCircuitsWithoutRetry(t *testing.T) {
	b := circuit.New(3, 30*time.Second)
	clk := clock.NewFrozen(time.Now())

	calls := 0
	attempt := func(ctx context.Context, sku string) (normalize.NormalizedRecord, error) {
		calls++
		return normalize.NormalizedRecord{}, vendor.ErrNotFound
	}

	rec, err := Call(context.Background(), "SKU001", opts(b, clk, 2), attempt)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 1, calls)
	assert.Equal(t, circuit.Closed, b.State(), "NotFound must not count toward breaker")
}

func TestCall_RejectionShortCircuitsWithoutRetry(t *testing.T) {
	b := circuit.New(3, 30*time.Second)
	clk := clock.NewFrozen(time.Now())

	calls := 0
	attempt := func(ctx context.Context, sku string) (normalize.NormalizedRecord, error) {
		calls++
		return normalize.NormalizedRecord{}, &normalize.RejectionError{Vendor: "VendorA", SKU: sku, Reason: normalize.ReasonStale}
	}

	rec, err := Call(context.Background(), "SKU001", opts(b, clk, 2), attempt)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 1, calls)
	assert.Equal(t, circuit.Closed, b.State())
}

func TestCall_EveryAttemptCountsTowardBreaker(t *testing.T) {
	b := circuit.New(3, 30*time.Second)
	clk := clock.NewFrozen(time.Now())

	attempt := func(ctx context.Context, sku string) (normalize.NormalizedRecord, error) {
		return normalize.NormalizedRecord{}, errors.New("upstream down")
	}

	_, err := Call(context.Background(), "SKU001", opts(b, clk, 2), attempt)
	require.NoError(t, err) // exhausted retries collapses to "no offer", not an error
	assert.Equal(t, circuit.Open, b.State(), "three attempts (1 + 2 retries) must trip a threshold-3 breaker")
}

func TestCall_BreakerOpenSkipsAttemptEntirely(t *testing.T) {
	b := circuit.New(1, 30*time.Second)
	clk := clock.NewFrozen(time.Now())

	done, _ := b.Allow(clk.Now())
	done(false)
	require.Equal(t, circuit.Open, b.State())

	calls := 0
	attempt := func(ctx context.Context, sku string) (normalize.NormalizedRecord, error) {
		calls++
		return normalize.NormalizedRecord{}, nil
	}

	rec, err := Call(context.Background(), "SKU001", opts(b, clk, 2), attempt)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 0, calls, "breaker-open must skip the fetcher entirely")
}
