// Package aggregator implements the top-level GetProduct operation
// (C5): a cache read, a concurrent fan-out to every configured
// vendor through its resilient caller, selection of the best offer,
// and a conditional cache write. Cancellation of the enclosing
// request is surfaced as ErrCanceled, distinct from ErrOutOfStock,
// and never reaches the cache write.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iaros/vendor-aggregator/internal/cache"
	"github.com/iaros/vendor-aggregator/internal/circuit"
	"github.com/iaros/vendor-aggregator/internal/clock"
	"github.com/iaros/vendor-aggregator/internal/metrics"
	"github.com/iaros/vendor-aggregator/internal/normalize"
	"github.com/iaros/vendor-aggregator/internal/resilience"
	"github.com/iaros/vendor-aggregator/internal/selector"
	"github.com/iaros/vendor-aggregator/internal/vendor"
)

// ErrOutOfStock indicates every vendor responded but none had stock,
// or no vendor responded at all.
type ErrOutOfStock struct{ SKU string }

func (e *ErrOutOfStock) Error() string { return "aggregator: no in-stock offer for " + e.SKU }

// ErrCanceled indicates the enclosing request's context was canceled
// or exceeded its deadline while vendor lookups were still in
// flight. Distinct from ErrOutOfStock: nobody actually declined, the
// caller just stopped waiting, so the result must not be cached.
type ErrCanceled struct{ SKU string }

func (e *ErrCanceled) Error() string { return "aggregator: request canceled resolving " + e.SKU }

// VendorSource pairs a Fetcher with the breaker and resilience
// settings it is called through.
type VendorSource struct {
	Fetcher vendor.Fetcher
	Breaker *circuit.Breaker
}

// Config bundles the knobs GetProduct needs beyond the vendor list.
type Config struct {
	FreshnessWindow  time.Duration
	VendorTimeout    time.Duration
	VendorRetries    int
	CacheTTL         time.Duration
	SpreadThreshold  float64
}

// Aggregator owns the vendor sources, cache, and clock GetProduct is
// built from.
type Aggregator struct {
	sources []VendorSource
	cache   cache.Cache
	clock   clock.Clock
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New returns an Aggregator over the given vendor sources.
func New(sources []VendorSource, store cache.Cache, clk clock.Clock, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Aggregator {
	return &Aggregator{sources: sources, cache: store, clock: clk, cfg: cfg, logger: logger, metrics: m}
}

// cachedRecord is the JSON shape stored under product:<sku>.
type cachedRecord struct {
	Vendor          string    `json:"vendor"`
	Price           string    `json:"price"`
	Stock           int       `json:"stock"`
	SourceTimestamp time.Time `json:"source_timestamp"`
}

func cacheKey(sku string) string { return "product:" + sku }

// GetProduct resolves sku to the single best in-stock offer across
// all vendors, consulting the cache first and writing back a fresh
// result before returning.
func (a *Aggregator) GetProduct(ctx context.Context, sku string) (normalize.NormalizedRecord, error) {
	if rec, ok := a.readCache(ctx, sku); ok {
		return rec, nil
	}

	candidates, canceled := a.fanOut(ctx, sku)
	if canceled {
		return normalize.NormalizedRecord{}, &ErrCanceled{SKU: sku}
	}

	result := selector.SelectBest(candidates, a.cfg.SpreadThreshold)
	if !result.Found {
		return normalize.NormalizedRecord{}, &ErrOutOfStock{SKU: sku}
	}

	a.writeCache(ctx, sku, result.Record)
	return result.Record, nil
}

func (a *Aggregator) readCache(ctx context.Context, sku string) (normalize.NormalizedRecord, bool) {
	raw, err := a.cache.Get(ctx, cacheKey(sku))
	if err != nil {
		a.metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
		return normalize.NormalizedRecord{}, false
	}

	var cr cachedRecord
	if err := json.Unmarshal(raw, &cr); err != nil {
		a.logger.Warn("cache entry unparsable, treating as miss", zap.String("sku", sku), zap.Error(err))
		a.metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
		return normalize.NormalizedRecord{}, false
	}

	price, err := decimalFromString(cr.Price)
	if err != nil {
		a.metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
		return normalize.NormalizedRecord{}, false
	}

	a.metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
	return normalize.NormalizedRecord{
		SKU:             sku,
		Vendor:          cr.Vendor,
		Price:           price,
		Stock:           cr.Stock,
		SourceTimestamp: cr.SourceTimestamp,
	}, true
}

func (a *Aggregator) writeCache(ctx context.Context, sku string, rec normalize.NormalizedRecord) {
	if rec.Stock <= 0 {
		return
	}
	cr := cachedRecord{
		Vendor:          rec.Vendor,
		Price:           rec.Price.String(),
		Stock:           rec.Stock,
		SourceTimestamp: rec.SourceTimestamp,
	}
	raw, err := json.Marshal(cr)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, cacheKey(sku), raw, a.cfg.CacheTTL); err != nil {
		a.logger.Warn("cache write failed, degrading to bypass", zap.String("sku", sku), zap.Error(err))
	}
}

// vendorOutcome carries either a resilient caller's normalized
// record or the error it returned. A non-nil err here is always the
// enclosing request's own cancellation/deadline — every other
// outcome (NotFound, rejection, breaker-open, retries exhausted)
// resilience.Call already collapses to (nil, nil).
type vendorOutcome struct {
	rec *normalize.NormalizedRecord
	err error
}

// fanOut queries every vendor source concurrently and collects the
// normalized records of those that responded successfully. The
// second return value reports whether the enclosing request's
// context was canceled or exceeded its deadline before fan-out
// finished; when true, the candidates slice must not be trusted or
// cached, since it reflects an incomplete race against the deadline.
func (a *Aggregator) fanOut(ctx context.Context, sku string) ([]normalize.NormalizedRecord, bool) {
	results := make(chan vendorOutcome, len(a.sources))

	var wg sync.WaitGroup
	for _, src := range a.sources {
		wg.Add(1)
		go func(src VendorSource) {
			defer wg.Done()
			vendorName := src.Fetcher.Name()
			start := a.clock.Now()
			rec, err := resilience.Call(ctx, sku, resilience.Options{
				Timeout: a.cfg.VendorTimeout,
				Retries: a.cfg.VendorRetries,
				Breaker: src.Breaker,
				Clock:   a.clock,
			}, a.attemptFor(src.Fetcher))
			a.metrics.VendorDuration.WithLabelValues(vendorName).Observe(a.clock.Now().Sub(start).Seconds())

			if err != nil {
				a.logger.Debug("vendor call aborted", zap.String("vendor", vendorName), zap.Error(err))
				results <- vendorOutcome{err: err}
				return
			}
			if rec == nil {
				a.metrics.VendorErrorsTotal.WithLabelValues(vendorName, "no_offer").Inc()
			}
			results <- vendorOutcome{rec: rec}
		}(src)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	candidates := make([]normalize.NormalizedRecord, 0, len(a.sources))
	canceled := false
	for o := range results {
		switch {
		case o.err != nil:
			if errors.Is(o.err, context.Canceled) || errors.Is(o.err, context.DeadlineExceeded) {
				canceled = true
			}
		case o.rec != nil:
			candidates = append(candidates, *o.rec)
		}
	}
	return candidates, canceled
}

func (a *Aggregator) attemptFor(f vendor.Fetcher) resilience.Attempt {
	return func(ctx context.Context, sku string) (normalize.NormalizedRecord, error) {
		raw, err := f.Fetch(ctx, sku)
		if err != nil {
			return normalize.NormalizedRecord{}, err
		}
		return normalize.Normalize(raw, a.clock.Now(), a.cfg.FreshnessWindow)
	}
}
