// Package catalog holds the product model and the SQL-backed catalog store.
package catalog

import "strings"

// Status is the lifecycle state of a product.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ValidStatus reports whether s is a recognized status value.
func ValidStatus(s string) bool {
	return s == string(StatusActive) || s == string(StatusInactive)
}

// ProductRecord is one catalog entry. SKU is the unique key; matching is
// case-insensitive, but the stored SKU keeps the casing of the applied row.
type ProductRecord struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Status      Status  `json:"status"`

	// Row is the source row number within an import file, zero otherwise.
	Row int `json:"-"`
}

// Key returns the dedup/lookup key for the record's SKU.
func (r ProductRecord) Key() string {
	return strings.ToLower(strings.TrimSpace(r.SKU))
}

// Same reports whether the stored fields of two records are identical.
// A SKU casing change counts as a difference and yields an update.
func (r ProductRecord) Same(other ProductRecord) bool {
	return r.SKU == other.SKU &&
		r.Name == other.Name &&
		r.Description == other.Description &&
		r.Price == other.Price &&
		r.Status == other.Status
}

// Classification describes what applying a record did to the catalog.
type Classification string

const (
	Created   Classification = "created"
	Updated   Classification = "updated"
	Unchanged Classification = "unchanged"
)

// Applied pairs a record with the classification of its write.
type Applied struct {
	Record         ProductRecord
	Classification Classification
}
