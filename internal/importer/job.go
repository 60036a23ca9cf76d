package importer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"product-importer/internal/catalog"
)

// State is the import job lifecycle state.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether s admits no further transition.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Counts aggregates per-row results for one job. Every outcome kind is
// enumerated even for failed jobs, so a caller can see how far processing
// got.
type Counts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Rejected  int `json:"rejected"`
}

// Job owns one import's state machine and running totals. All mutation goes
// through its methods; once a job is terminal, no method changes it.
type Job struct {
	mu          sync.Mutex
	id          string
	state       State
	totalRows   int
	counts      Counts
	outcomes    []RowOutcome
	outcomeCap  int
	truncated   bool
	errMsg      string
	createdAt   time.Time
	completedAt time.Time
	cancel      bool
}

func newJob(id string, outcomeCap int) *Job {
	if outcomeCap < 1 {
		outcomeCap = 1000
	}
	return &Job{
		id:         id,
		state:      StatePending,
		outcomeCap: outcomeCap,
		createdAt:  time.Now().UTC(),
	}
}

func (j *Job) ID() string { return j.id }

func (j *Job) markProcessing() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StatePending {
		j.state = StateProcessing
	}
}

func (j *Job) complete() {
	j.terminate(StateCompleted, "")
}

func (j *Job) fail(msg string) {
	j.terminate(StateFailed, msg)
}

func (j *Job) markCancelled() {
	j.terminate(StateCancelled, "")
}

func (j *Job) terminate(to State, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = to
	j.errMsg = msg
	j.completedAt = time.Now().UTC()
}

// RequestCancel asks the job to stop at the next batch boundary. It reports
// whether the request was accepted; terminal jobs reject it.
func (j *Job) RequestCancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return false
	}
	j.cancel = true
	return true
}

func (j *Job) cancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancel
}

func (j *Job) addRow() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.totalRows++
	return j.totalRows
}

// recordOutcome appends a skipped or rejected row outcome and bumps the
// matching counter. Beyond the cap only counters grow; the list is marked
// truncated.
func (j *Job) recordOutcome(o RowOutcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	switch o.Kind {
	case OutcomeSkippedDuplicate:
		j.counts.Skipped++
	case OutcomeRejected:
		j.counts.Rejected++
	}
	j.appendOutcome(o)
}

// recordApplied registers an upsert result for one accepted row.
func (j *Job) recordApplied(a catalog.Applied) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	switch a.Classification {
	case catalog.Created:
		j.counts.Created++
	case catalog.Updated:
		j.counts.Updated++
	case catalog.Unchanged:
		j.counts.Unchanged++
	}
	j.appendOutcome(RowOutcome{Row: a.Record.Row, Kind: OutcomeAccepted})
}

func (j *Job) appendOutcome(o RowOutcome) {
	if len(j.outcomes) >= j.outcomeCap {
		j.truncated = true
		return
	}
	j.outcomes = append(j.outcomes, o)
}

// Snapshot is the externally visible view of a job.
type Snapshot struct {
	ID                string       `json:"id"`
	State             State        `json:"state"`
	TotalRows         int          `json:"total_rows"`
	Counts            Counts       `json:"counts"`
	Outcomes          []RowOutcome `json:"outcomes"`
	OutcomesTruncated bool         `json:"outcomes_truncated"`
	Error             string       `json:"error,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
}

// Snapshot returns a copy of the job's current state. Outcomes are ordered
// by source row number.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	outcomes := make([]RowOutcome, len(j.outcomes))
	copy(outcomes, j.outcomes)
	sort.SliceStable(outcomes, func(a, b int) bool { return outcomes[a].Row < outcomes[b].Row })

	snap := Snapshot{
		ID:                j.id,
		State:             j.state,
		TotalRows:         j.totalRows,
		Counts:            j.counts,
		Outcomes:          outcomes,
		OutcomesTruncated: j.truncated,
		Error:             j.errMsg,
		CreatedAt:         j.createdAt,
	}
	if !j.completedAt.IsZero() {
		t := j.completedAt
		snap.CompletedAt = &t
	}
	return snap
}

func (j *Job) String() string {
	s := j.Snapshot()
	return fmt.Sprintf("job %s [%s] rows=%d created=%d updated=%d unchanged=%d skipped=%d rejected=%d",
		s.ID, s.State, s.TotalRows, s.Counts.Created, s.Counts.Updated, s.Counts.Unchanged, s.Counts.Skipped, s.Counts.Rejected)
}
