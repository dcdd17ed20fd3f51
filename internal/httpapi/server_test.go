package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iaros/vendor-aggregator/internal/aggregator"
	"github.com/iaros/vendor-aggregator/internal/cache/memcache"
	"github.com/iaros/vendor-aggregator/internal/circuit"
	"github.com/iaros/vendor-aggregator/internal/clock"
	"github.com/iaros/vendor-aggregator/internal/metrics"
	"github.com/iaros/vendor-aggregator/internal/ratelimit"
	"github.com/iaros/vendor-aggregator/internal/vendor"
)

func newTestServer(t *testing.T) (*Server, *vendor.StubFetcher) {
	t.Helper()
	store := memcache.New(time.Minute, time.Minute)
	clk := clock.NewFrozen(time.Now())
	registry := circuit.NewRegistry(3, 30*time.Second)

	fetcher := vendor.NewStubFetcher("VendorA")
	sources := []aggregator.VendorSource{{Fetcher: fetcher, Breaker: registry.Get("VendorA")}}

	m := metrics.New(prometheus.NewRegistry())

	agg := aggregator.New(sources, store, clk, aggregator.Config{
		FreshnessWindow: 10 * time.Minute,
		VendorTimeout:   time.Second,
		VendorRetries:   1,
		CacheTTL:        time.Minute,
		SpreadThreshold: 10.0,
	}, zap.NewNop(), m)

	limiter := ratelimit.New(store, clk, 2, time.Minute)

	return New(agg, limiter, registry, clk, m, zap.NewNop()), fetcher
}

func TestProductHandler_MissingAPIKeyRejected(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/products/SKU001", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductHandler_InvalidSKURejected(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/products/a", nil)
	req.Header.Set("x-api-key", "key-1")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductHandler_OutOfStockReturns200(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/products/SKU999", nil)
	req.Header.Set("x-api-key", "key-1")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OUT_OF_STOCK")
}

func TestProductHandler_AvailableReturnsOffer(t *testing.T) {
	server, fetcher := newTestServer(t)
	fetcher.Seed("SKU001", vendor.VendorARaw{
		ProductCode: "SKU001", UnitPrice: 9.99, InventoryCount: nil,
		AvailabilityStatus: "IN_STOCK", LastUpdated: time.Now().UTC(),
	})

	req := httptest.NewRequest(http.MethodGet, "/products/SKU001", nil)
	req.Header.Set("x-api-key", "key-1")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AVAILABLE")
	assert.Contains(t, rec.Body.String(), "VendorA")
}

func TestProductHandler_RateLimitExceededReturns429(t *testing.T) {
	server, fetcher := newTestServer(t)
	fetcher.Seed("SKU001", vendor.VendorARaw{
		ProductCode: "SKU001", UnitPrice: 9.99, InventoryCount: nil,
		AvailabilityStatus: "IN_STOCK", LastUpdated: time.Now().UTC(),
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/products/SKU001", nil)
		req.Header.Set("x-api-key", "rate-key")
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/products/SKU001", nil)
	req.Header.Set("x-api-key", "rate-key")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestProductHandler_CanceledContextReturns503(t *testing.T) {
	server, fetcher := newTestServer(t)
	fetcher.Seed("SKU001", vendor.VendorARaw{
		ProductCode: "SKU001", UnitPrice: 9.99, InventoryCount: nil,
		AvailabilityStatus: "IN_STOCK", LastUpdated: time.Now().UTC(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/products/SKU001", nil).WithContext(ctx)
	req.Header.Set("x-api-key", "key-1")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "a canceled request must not collapse to OUT_OF_STOCK or 500")
}

func TestHealthAndRoot(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vendor-aggregator")
}

func TestCircuitBreakerAdminEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/internal/circuit-breakers", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/internal/circuit-breakers/unknown/reset", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
