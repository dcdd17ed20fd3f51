// Package normalize maps vendor-specific raw records into the
// canonical NormalizedRecord shape, applying stock, price, and
// freshness rules. It performs no I/O and holds no shared state.
package normalize

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// presentUnspecifiedStock is the canonical "present but unspecified"
// quantity. It is a policy constant, not an estimate.
const presentUnspecifiedStock = 5

// NormalizedRecord is the canonical, immutable representation of a
// vendor's offer for a SKU. Construct only via the NormalizeVendor*
// functions, which enforce its invariants.
type NormalizedRecord struct {
	SKU             string
	Vendor          string
	Price           decimal.Decimal
	Stock           int
	SourceTimestamp time.Time
}

// Reason enumerates why a raw record was rejected by the normalizer.
type Reason string

const (
	ReasonStale        Reason = "stale"
	ReasonInvalidPrice Reason = "invalid_price"
	ReasonParseError   Reason = "parse_error"
)

// RejectionError is returned when a raw record fails validation. It
// is never retried by the resilient caller.
type RejectionError struct {
	Vendor string
	SKU    string
	Reason Reason
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("normalize: rejected %s/%s: %s (%s)", e.Vendor, e.SKU, e.Reason, e.Detail)
}

func reject(vendor, sku string, reason Reason, detail string) error {
	return &RejectionError{Vendor: vendor, SKU: sku, Reason: reason, Detail: detail}
}

func validatePrice(vendor, sku string, price decimal.Decimal) error {
	if !price.IsPositive() {
		return reject(vendor, sku, ReasonInvalidPrice, fmt.Sprintf("price %s is not > 0", price))
	}
	return nil
}

func checkFreshness(vendor, sku string, ts, now time.Time, window time.Duration) error {
	age := now.Sub(ts)
	if age > window {
		return reject(vendor, sku, ReasonStale, fmt.Sprintf("age %s exceeds freshness window %s", age, window))
	}
	return nil
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
