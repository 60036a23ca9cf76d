package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"product-importer/internal/catalog"
)

// Header maps the CSV columns this importer understands to their indexes.
// sku, name, and price are required; status and description are optional.
// Any other column is ignored.
type Header struct {
	sku         int
	name        int
	price       int
	status      int
	description int
}

// ParseHeader resolves column positions from the header row. Column names
// are matched case-insensitively after trimming.
func ParseHeader(cols []string) (Header, error) {
	h := Header{sku: -1, name: -1, price: -1, status: -1, description: -1}
	for i, col := range cols {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "sku":
			h.sku = i
		case "name":
			h.name = i
		case "price":
			h.price = i
		case "status":
			h.status = i
		case "description":
			h.description = i
		}
	}

	var missing []string
	if h.sku == -1 {
		missing = append(missing, "sku")
	}
	if h.name == -1 {
		missing = append(missing, "name")
	}
	if h.price == -1 {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return h, fmt.Errorf("header missing required columns: %s", strings.Join(missing, ", "))
	}
	return h, nil
}

// ValidateRow turns one raw CSV row into a ProductRecord, or a rejected
// RowOutcome carrying every violated rule. It is pure: nothing is logged and
// a bad row never stops the stream.
func ValidateRow(h Header, fields []string, rowNum int) (catalog.ProductRecord, *RowOutcome) {
	var reasons []string

	sku := strings.TrimSpace(field(fields, h.sku))
	if sku == "" {
		reasons = append(reasons, "sku is required")
	}

	name := strings.TrimSpace(field(fields, h.name))
	if name == "" {
		reasons = append(reasons, "name is required")
	}

	var price float64
	rawPrice := strings.TrimSpace(field(fields, h.price))
	if rawPrice == "" {
		reasons = append(reasons, "price is required")
	} else {
		p, err := strconv.ParseFloat(rawPrice, 64)
		switch {
		case err != nil:
			reasons = append(reasons, fmt.Sprintf("price %q is not a number", rawPrice))
		case math.IsNaN(p) || math.IsInf(p, 0):
			// ParseFloat accepts "NaN" and "Inf"; neither is a price
			reasons = append(reasons, fmt.Sprintf("price %q is not a finite number", rawPrice))
		case p < 0:
			reasons = append(reasons, "price must be non-negative")
		default:
			price = p
		}
	}

	status := catalog.StatusActive
	rawStatus := strings.ToLower(strings.TrimSpace(field(fields, h.status)))
	if rawStatus != "" {
		if !catalog.ValidStatus(rawStatus) {
			reasons = append(reasons, fmt.Sprintf("status %q must be active or inactive", rawStatus))
		} else {
			status = catalog.Status(rawStatus)
		}
	}

	if len(reasons) > 0 {
		return catalog.ProductRecord{}, &RowOutcome{Row: rowNum, Kind: OutcomeRejected, Reasons: reasons}
	}

	return catalog.ProductRecord{
		SKU:         sku,
		Name:        name,
		Description: strings.TrimSpace(field(fields, h.description)),
		Price:       price,
		Status:      status,
		Row:         rowNum,
	}, nil
}

// field safely reads fields[i], returning "" for missing columns so ragged
// rows degrade to validation errors instead of panics.
func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}
