package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/vendor-aggregator/internal/vendor"
)

var freshness = 10 * time.Minute

func ptr(n int) *int { return &n }

func TestNormalizeVendorA_NilInventoryInStock(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorARaw{
		ProductCode:        "SKU001",
		UnitPrice:          19.99,
		InventoryCount:     nil,
		AvailabilityStatus: "IN_STOCK",
		LastUpdated:        now,
	}
	rec, err := NormalizeVendorA(raw, now, freshness)
	require.NoError(t, err)
	assert.Equal(t, presentUnspecifiedStock, rec.Stock)
}

func TestNormalizeVendorA_NilInventoryNotInStock(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorARaw{
		ProductCode:        "SKU001",
		UnitPrice:          19.99,
		AvailabilityStatus: "OUT_OF_STOCK",
		LastUpdated:        now,
	}
	rec, err := NormalizeVendorA(raw, now, freshness)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Stock)
}

func TestNormalizeVendorA_NegativeInventoryClampedToZero(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorARaw{ProductCode: "SKU001", UnitPrice: 5, InventoryCount: ptr(-3), LastUpdated: now}
	rec, err := NormalizeVendorA(raw, now, freshness)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Stock)
}

func TestNormalizeVendorA_StaleRejected(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorARaw{ProductCode: "SKU001", UnitPrice: 5, InventoryCount: ptr(4), LastUpdated: now.Add(-20 * time.Minute)}
	_, err := NormalizeVendorA(raw, now, freshness)
	require.Error(t, err)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonStale, rej.Reason)
}

func TestNormalizeVendorA_NonPositivePriceRejected(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorARaw{ProductCode: "SKU001", UnitPrice: 0, InventoryCount: ptr(4), LastUpdated: now}
	_, err := NormalizeVendorA(raw, now, freshness)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonInvalidPrice, rej.Reason)
}

func TestNormalizeVendorB_NullStockWithInStockFlag(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorBRaw{SKU: "SKU001", PriceUSD: "12.50", InStock: true, UpdatedAt: now.Format(time.RFC3339)}
	rec, err := NormalizeVendorB(raw, now, freshness)
	require.NoError(t, err)
	assert.Equal(t, presentUnspecifiedStock, rec.Stock)
}

func TestNormalizeVendorB_UnparsableTimestampRejected(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorBRaw{SKU: "SKU001", PriceUSD: "12.50", InStock: true, UpdatedAt: "not-a-time"}
	_, err := NormalizeVendorB(raw, now, freshness)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonParseError, rej.Reason)
}

func TestNormalizeVendorB_UnparsablePriceRejected(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorBRaw{SKU: "SKU001", PriceUSD: "abc", InStock: true, UpdatedAt: now.Format(time.RFC3339)}
	_, err := NormalizeVendorB(raw, now, freshness)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonParseError, rej.Reason)
}

func TestNormalizeVendorC_UnavailableForcesZeroStock(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorCRaw{ID: "SKU001", Cost: 8.0, Qty: "15", Available: "No", UpdatedAt: now.Format(time.RFC3339)}
	rec, err := NormalizeVendorC(raw, now, freshness)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Stock)
}

func TestNormalizeVendorC_ZeroQtyAvailableYesBecomesPresentUnspecified(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorCRaw{ID: "SKU001", Cost: 8.0, Qty: "0", Available: "yes", UpdatedAt: now.Format(time.RFC3339)}
	rec, err := NormalizeVendorC(raw, now, freshness)
	require.NoError(t, err)
	assert.Equal(t, presentUnspecifiedStock, rec.Stock)
}

func TestNormalizeVendorC_UnparsableQtyDefaultsToZero(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorCRaw{ID: "SKU001", Cost: 8.0, Qty: "lots", Available: "yes", UpdatedAt: now.Format(time.RFC3339)}
	rec, err := NormalizeVendorC(raw, now, freshness)
	require.NoError(t, err)
	assert.Equal(t, presentUnspecifiedStock, rec.Stock)
}

func TestNormalize_DispatchesByConcreteType(t *testing.T) {
	now := time.Now().UTC()
	raw := vendor.VendorARaw{ProductCode: "SKU001", UnitPrice: 5, InventoryCount: ptr(2), LastUpdated: now}
	rec, err := Normalize(raw, now, freshness)
	require.NoError(t, err)
	assert.Equal(t, "VendorA", rec.Vendor)
}
