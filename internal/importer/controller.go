package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"product-importer/internal/catalog"
	"product-importer/internal/config"
	"product-importer/internal/event"
)

// Applier persists one batch of records transactionally.
type Applier interface {
	UpsertBatch(ctx context.Context, batch []catalog.ProductRecord) ([]catalog.Applied, error)
}

// Publisher receives change events after their batch has committed.
type Publisher interface {
	Publish(ev event.ChangeEvent)
}

// Controller runs import jobs. Each upload gets its own goroutine walking the
// stream once: validate, dedup, batch, upsert, publish.
type Controller struct {
	jobs    *JobStore
	applier Applier
	pub     Publisher
	cfg     config.ImportConfig
	policy  DedupPolicy
}

func NewController(jobs *JobStore, applier Applier, pub Publisher, cfg config.ImportConfig) *Controller {
	return &Controller{
		jobs:    jobs,
		applier: applier,
		pub:     pub,
		cfg:     cfg,
		policy:  ParseDedupPolicy(cfg.DedupPolicy),
	}
}

// Start registers a new job and begins processing r in the background. The
// caller owns r's lifetime; it is closed when processing ends.
func (c *Controller) Start(ctx context.Context, r io.ReadCloser) *Job {
	job := newJob(uuid.NewString(), c.cfg.OutcomeCap)
	c.jobs.add(job)

	go func() {
		defer r.Close() //nolint:errcheck
		start := time.Now()
		c.run(ctx, job, r)
		snap := job.Snapshot()
		log.Printf("INFO: import %s finished [%s] in %s: rows=%d created=%d updated=%d unchanged=%d skipped=%d rejected=%d",
			snap.ID, snap.State, time.Since(start).Round(time.Millisecond), snap.TotalRows,
			snap.Counts.Created, snap.Counts.Updated, snap.Counts.Unchanged, snap.Counts.Skipped, snap.Counts.Rejected)
	}()

	return job
}

// Get returns a job snapshot by id.
func (c *Controller) Get(id string) (Snapshot, bool) {
	job, ok := c.jobs.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	return job.Snapshot(), true
}

// Cancel requests cancellation of a running job. The second return is false
// when the job is unknown; the first is false when it was already terminal.
func (c *Controller) Cancel(id string) (accepted, found bool) {
	job, ok := c.jobs.Get(id)
	if !ok {
		return false, false
	}
	return job.RequestCancel(), true
}

func (c *Controller) run(ctx context.Context, job *Job, r io.Reader) {
	job.markProcessing()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headerRow, err := reader.Read()
	if err != nil {
		job.fail(fmt.Sprintf("read header: %v", err))
		return
	}
	header, err := ParseHeader(headerRow)
	if err != nil {
		job.fail(err.Error())
		return
	}

	planner := NewPlanner(c.policy)
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			job.fail(fmt.Sprintf("read row: %v", err))
			return
		}

		rowNum := job.addRow()
		if c.cfg.MaxRows > 0 && rowNum > c.cfg.MaxRows {
			job.fail(fmt.Sprintf("file exceeds the %d row limit", c.cfg.MaxRows))
			return
		}

		rec, rejected := ValidateRow(header, fields, rowNum)
		if rejected != nil {
			job.recordOutcome(*rejected)
			continue
		}
		if skipped := planner.Add(rec); skipped != nil {
			job.recordOutcome(*skipped)
		}
	}

	seq := &event.Sequencer{}
	for _, batch := range planner.Batches(c.cfg.BatchSize) {
		if job.cancelRequested() {
			job.markCancelled()
			return
		}

		applied, err := c.applier.UpsertBatch(ctx, batch)
		if err != nil {
			log.Printf("ERROR: import %s batch failed: %v", job.ID(), err)
			job.fail(err.Error())
			return
		}

		// Events only for committed work, so subscribers never hear
		// about a rolled-back batch.
		for _, a := range applied {
			job.recordApplied(a)
			c.publish(job.ID(), seq, a)
		}
	}

	if job.cancelRequested() {
		job.markCancelled()
		return
	}
	job.complete()
}

func (c *Controller) publish(jobID string, seq *event.Sequencer, a catalog.Applied) {
	var typ event.Type
	switch a.Classification {
	case catalog.Created:
		typ = event.TypeCreated
	case catalog.Updated:
		typ = event.TypeUpdated
	default:
		return
	}
	c.pub.Publish(event.ChangeEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		SKU:        a.Record.SKU,
		Product:    a.Record,
		JobID:      jobID,
		Sequence:   seq.Next(),
		OccurredAt: time.Now().UTC(),
	})
}
