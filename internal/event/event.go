// Package event defines the change-event contract between the upsert engine
// and the webhook dispatcher.
package event

import (
	"sync/atomic"
	"time"

	"product-importer/internal/catalog"
)

// Type identifies what happened to a product.
type Type string

const (
	TypeCreated Type = "product.created"
	TypeUpdated Type = "product.updated"
)

// Types lists every recognized event type.
func Types() []string {
	return []string{string(TypeCreated), string(TypeUpdated)}
}

// ValidType reports whether t names a recognized event type.
func ValidType(t string) bool {
	return t == string(TypeCreated) || t == string(TypeUpdated)
}

// ChangeEvent is emitted after a batch commits, one per created or updated
// product. Sequence is monotonic within a job and gives downstream consumers
// a total order for that job's events.
type ChangeEvent struct {
	ID         string                `json:"id"`
	Type       Type                  `json:"type"`
	SKU        string                `json:"sku"`
	Product    catalog.ProductRecord `json:"product"`
	JobID      string                `json:"job_id"`
	Sequence   uint64                `json:"sequence"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// Sequencer provides monotonically increasing sequence numbers for one job.
type Sequencer struct{ n atomic.Uint64 }

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 { return s.n.Add(1) }
