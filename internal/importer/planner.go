package importer

import "product-importer/internal/catalog"

// DedupPolicy picks which occurrence survives when one file repeats a SKU.
type DedupPolicy string

const (
	// DedupLastWins keeps the final occurrence; earlier rows are skipped.
	DedupLastWins DedupPolicy = "last"
	// DedupFirstWins keeps the initial occurrence; later rows are skipped.
	DedupFirstWins DedupPolicy = "first"
)

// ParseDedupPolicy maps a config string to a policy, defaulting to last-wins.
func ParseDedupPolicy(s string) DedupPolicy {
	if s == string(DedupFirstWins) {
		return DedupFirstWins
	}
	return DedupLastWins
}

type plannerEntry struct {
	rec     catalog.ProductRecord
	dropped bool
}

// Planner consumes one job's validated records, resolves intra-file duplicate
// SKUs, and slices the survivors into fixed-size batches. The SKU index lives
// for the duration of one job; a Planner is single-use and never shared
// between jobs.
type Planner struct {
	policy  DedupPolicy
	entries []plannerEntry
	index   map[string]int
	kept    int
}

func NewPlanner(policy DedupPolicy) *Planner {
	return &Planner{policy: policy, index: make(map[string]int)}
}

// Add accepts the next validated record. When the record's SKU was already
// seen in this file, the displaced occurrence is reported as a
// skipped-duplicate outcome: the earlier row under last-wins, the new row
// under first-wins. Returns nil when nothing was displaced.
func (p *Planner) Add(rec catalog.ProductRecord) *RowOutcome {
	key := rec.Key()
	if idx, ok := p.index[key]; ok {
		if p.policy == DedupFirstWins {
			return &RowOutcome{Row: rec.Row, Kind: OutcomeSkippedDuplicate}
		}
		prev := &p.entries[idx]
		prev.dropped = true
		skipped := &RowOutcome{Row: prev.rec.Row, Kind: OutcomeSkippedDuplicate}
		p.entries = append(p.entries, plannerEntry{rec: rec})
		p.index[key] = len(p.entries) - 1
		return skipped
	}

	p.entries = append(p.entries, plannerEntry{rec: rec})
	p.index[key] = len(p.entries) - 1
	p.kept++
	return nil
}

// Kept returns the number of records that will be applied.
func (p *Planner) Kept() int { return p.kept }

// Batches slices the surviving records, in retained-row order, into batches
// of at most size records. Call after the whole stream has been consumed;
// last-wins dedup cannot be decided any earlier.
func (p *Planner) Batches(size int) [][]catalog.ProductRecord {
	if size < 1 {
		size = 1
	}

	var batches [][]catalog.ProductRecord
	var current []catalog.ProductRecord
	for _, e := range p.entries {
		if e.dropped {
			continue
		}
		current = append(current, e.rec)
		if len(current) == size {
			batches = append(batches, current)
			current = nil
		}
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
