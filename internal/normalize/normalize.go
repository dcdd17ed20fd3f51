package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iaros/vendor-aggregator/internal/vendor"
)

// decimalPriceGrammar is the locale-independent decimal grammar used
// to parse string-encoded prices: one or more digits,
// optionally followed by a fractional part.
var decimalPriceGrammar = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// Normalize dispatches a raw record to its vendor-specific rule set
// by concrete type. It never uses structural/duck dispatch.
func Normalize(raw vendor.RawRecord, now time.Time, freshness time.Duration) (NormalizedRecord, error) {
	switch r := raw.(type) {
	case vendor.VendorARaw:
		return NormalizeVendorA(r, now, freshness)
	case vendor.VendorBRaw:
		return NormalizeVendorB(r, now, freshness)
	case vendor.VendorCRaw:
		return NormalizeVendorC(r, now, freshness)
	default:
		return NormalizedRecord{}, reject("unknown", "unknown", ReasonParseError, "unrecognized raw record type")
	}
}

// NormalizeVendorA applies VendorA's stock rule: integer inventory
// count paired with an enumerated availability status.
//
//	inventory == nil && status == "IN_STOCK" -> stock = 5
//	inventory == nil (otherwise)             -> stock = 0
//	inventory != nil                          -> stock = max(0, inventory)
func NormalizeVendorA(raw vendor.VendorARaw, now time.Time, freshness time.Duration) (NormalizedRecord, error) {
	const vendorName = "VendorA"

	if err := checkFreshness(vendorName, raw.ProductCode, raw.LastUpdated, now, freshness); err != nil {
		return NormalizedRecord{}, err
	}

	var stock int
	if raw.InventoryCount == nil {
		if raw.AvailabilityStatus == "IN_STOCK" {
			stock = presentUnspecifiedStock
		} else {
			stock = 0
		}
	} else {
		stock = clampNonNegative(*raw.InventoryCount)
	}

	price := decimal.NewFromFloat(raw.UnitPrice)
	if err := validatePrice(vendorName, raw.ProductCode, price); err != nil {
		return NormalizedRecord{}, err
	}

	return NormalizedRecord{
		SKU:             raw.ProductCode,
		Vendor:          vendorName,
		Price:           price,
		Stock:           stock,
		SourceTimestamp: raw.LastUpdated,
	}, nil
}

// NormalizeVendorB applies VendorB's stock rule: nullable stock level
// paired with a boolean in_stock flag, and a decimal-string price.
//
//	stock == nil && in_stock -> stock = 5
//	stock == nil (otherwise) -> stock = 0
//	stock != nil              -> stock = max(0, stock)
func NormalizeVendorB(raw vendor.VendorBRaw, now time.Time, freshness time.Duration) (NormalizedRecord, error) {
	const vendorName = "VendorB"

	ts, err := time.Parse(time.RFC3339, raw.UpdatedAt)
	if err != nil {
		return NormalizedRecord{}, reject(vendorName, raw.SKU, ReasonParseError, "unparsable updated_at: "+raw.UpdatedAt)
	}
	ts = ts.UTC()

	if err := checkFreshness(vendorName, raw.SKU, ts, now, freshness); err != nil {
		return NormalizedRecord{}, err
	}

	var stock int
	if raw.StockLevel == nil {
		if raw.InStock {
			stock = presentUnspecifiedStock
		} else {
			stock = 0
		}
	} else {
		stock = clampNonNegative(*raw.StockLevel)
	}

	price, perr := parseDecimalString(raw.PriceUSD)
	if perr != nil {
		return NormalizedRecord{}, reject(vendorName, raw.SKU, ReasonParseError, "unparsable price_usd: "+raw.PriceUSD)
	}
	if err := validatePrice(vendorName, raw.SKU, price); err != nil {
		return NormalizedRecord{}, err
	}

	return NormalizedRecord{
		SKU:             raw.SKU,
		Vendor:          vendorName,
		Price:           price,
		Stock:           stock,
		SourceTimestamp: ts,
	}, nil
}

// NormalizeVendorC applies VendorC's stock rule: a string quantity
// and a yes/no availability flag.
//
//	availability == "no"                 -> stock = 0 (forced)
//	qty parses to 0 && availability == "yes" -> stock = 5
//	otherwise                             -> stock = parsed qty
func NormalizeVendorC(raw vendor.VendorCRaw, now time.Time, freshness time.Duration) (NormalizedRecord, error) {
	const vendorName = "VendorC"

	ts, err := time.Parse(time.RFC3339, raw.UpdatedAt)
	if err != nil {
		return NormalizedRecord{}, reject(vendorName, raw.ID, ReasonParseError, "unparsable updated_at: "+raw.UpdatedAt)
	}
	ts = ts.UTC()

	if err := checkFreshness(vendorName, raw.ID, ts, now, freshness); err != nil {
		return NormalizedRecord{}, err
	}

	availability := strings.ToLower(strings.TrimSpace(raw.Available))

	qty := 0
	if n, perr := strconv.Atoi(strings.TrimSpace(raw.Qty)); perr == nil {
		qty = n
	}

	var stock int
	switch {
	case availability == "no":
		stock = 0
	case qty == 0 && availability == "yes":
		stock = presentUnspecifiedStock
	default:
		stock = clampNonNegative(qty)
	}

	price := decimal.NewFromFloat(raw.Cost)
	if err := validatePrice(vendorName, raw.ID, price); err != nil {
		return NormalizedRecord{}, err
	}

	return NormalizedRecord{
		SKU:             raw.ID,
		Vendor:          vendorName,
		Price:           price,
		Stock:           stock,
		SourceTimestamp: ts,
	}, nil
}

func parseDecimalString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !decimalPriceGrammar.MatchString(s) {
		return decimal.Decimal{}, strconv.ErrSyntax
	}
	return decimal.NewFromString(s)
}
