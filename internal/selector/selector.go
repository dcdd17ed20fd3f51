// Package selector picks the single best offer from a set of
// normalized vendor records, applying the spread-driven tie-break
// policy: once the candidates with stock disagree on price by more
// than the configured spread, stock availability outranks price.
package selector

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iaros/vendor-aggregator/internal/normalize"
)

// epsilon bounds decimal comparisons that should treat
// near-equal values as equal, avoiding false ties/non-ties from
// representational noise.
var epsilon = decimal.New(1, -6) // 1e-6

// Result is the outcome of selecting among a set of candidates.
type Result struct {
	Record normalize.NormalizedRecord
	Found  bool
}

// SelectBest filters out-of-stock candidates, then chooses a winner:
//
//   - zero in-stock candidates: Found is false.
//   - exactly one in-stock candidate: it wins outright.
//   - more than one: compute the price spread between the highest and
//     lowest priced in-stock candidates, as a percentage of the lowest
//     price. If the spread exceeds spreadThresholdPct (e.g. 10.0 for
//     10%), the highest-stock candidate wins (ties broken by lowest
//     price, then vendor name); otherwise the lowest-priced candidate
//     wins (ties broken by highest stock, then vendor name).
func SelectBest(candidates []normalize.NormalizedRecord, spreadThresholdPct float64) Result {
	inStock := make([]normalize.NormalizedRecord, 0, len(candidates))
	for _, c := range candidates {
		if c.Stock > 0 {
			inStock = append(inStock, c)
		}
	}

	if len(inStock) == 0 {
		return Result{Found: false}
	}
	if len(inStock) == 1 {
		return Result{Record: inStock[0], Found: true}
	}

	lowest, highest := inStock[0], inStock[0]
	for _, c := range inStock[1:] {
		if c.Price.LessThan(lowest.Price) {
			lowest = c
		}
		if c.Price.GreaterThan(highest.Price) {
			highest = c
		}
	}

	spread := decimal.Zero
	if lowest.Price.IsPositive() {
		spread = highest.Price.Sub(lowest.Price).Div(lowest.Price).Mul(decimal.NewFromInt(100))
	}
	threshold := decimal.NewFromFloat(spreadThresholdPct)

	if spread.GreaterThan(threshold.Add(epsilon)) {
		return Result{Record: byHighestStock(inStock), Found: true}
	}
	return Result{Record: byLowestPrice(inStock), Found: true}
}

// byLowestPrice ranks by price ascending, then stock descending, then
// vendor name ascending.
func byLowestPrice(records []normalize.NormalizedRecord) normalize.NormalizedRecord {
	sorted := append([]normalize.NormalizedRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !priceNearEqual(a.Price, b.Price) {
			return a.Price.LessThan(b.Price)
		}
		if a.Stock != b.Stock {
			return a.Stock > b.Stock
		}
		return a.Vendor < b.Vendor
	})
	return sorted[0]
}

// byHighestStock ranks by stock descending, then price ascending,
// then vendor name ascending.
func byHighestStock(records []normalize.NormalizedRecord) normalize.NormalizedRecord {
	sorted := append([]normalize.NormalizedRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Stock != b.Stock {
			return a.Stock > b.Stock
		}
		if !priceNearEqual(a.Price, b.Price) {
			return a.Price.LessThan(b.Price)
		}
		return a.Vendor < b.Vendor
	})
	return sorted[0]
}

func priceNearEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(epsilon)
}
