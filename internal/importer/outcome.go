package importer

// OutcomeKind classifies what happened to one source row.
type OutcomeKind string

const (
	OutcomeAccepted         OutcomeKind = "accepted"
	OutcomeSkippedDuplicate OutcomeKind = "skipped-duplicate"
	OutcomeRejected         OutcomeKind = "rejected"
)

// RowOutcome is the immutable per-row result. Row numbers count data rows
// starting at 1 (the header is not a row).
type RowOutcome struct {
	Row     int         `json:"row"`
	Kind    OutcomeKind `json:"kind"`
	Reasons []string    `json:"reasons,omitempty"`
}
