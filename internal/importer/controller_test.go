package importer

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"product-importer/internal/catalog"
	"product-importer/internal/config"
	"product-importer/internal/event"
)

// fakeApplier classifies records against an in-memory catalog the way the
// real store does, without a database.
type fakeApplier struct {
	mu       sync.Mutex
	existing map[string]catalog.ProductRecord
	batches  [][]catalog.ProductRecord
	failOn   int // 1-based batch number to fail, 0 for never

	started chan struct{} // closed when the first batch arrives, optional
	release chan struct{} // first batch blocks until closed, optional
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{existing: make(map[string]catalog.ProductRecord)}
}

func (f *fakeApplier) UpsertBatch(_ context.Context, batch []catalog.ProductRecord) ([]catalog.Applied, error) {
	f.mu.Lock()
	f.batches = append(f.batches, batch)
	n := len(f.batches)
	f.mu.Unlock()

	if n == 1 && f.started != nil {
		close(f.started)
		<-f.release
	}
	if f.failOn > 0 && n == f.failOn {
		return nil, errors.New("storage unavailable")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	applied := make([]catalog.Applied, 0, len(batch))
	for _, r := range batch {
		prev, ok := f.existing[r.Key()]
		switch {
		case !ok:
			applied = append(applied, catalog.Applied{Record: r, Classification: catalog.Created})
		case prev.Same(r):
			applied = append(applied, catalog.Applied{Record: r, Classification: catalog.Unchanged})
		default:
			applied = append(applied, catalog.Applied{Record: r, Classification: catalog.Updated})
		}
		f.existing[r.Key()] = r
	}
	return applied, nil
}

func (f *fakeApplier) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []event.ChangeEvent
}

func (f *fakePublisher) Publish(ev event.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakePublisher) all() []event.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]event.ChangeEvent, len(f.events))
	copy(out, f.events)
	return out
}

func testImportConfig() config.ImportConfig {
	return config.ImportConfig{BatchSize: 2, MaxRows: 100, OutcomeCap: 100, DedupPolicy: "last"}
}

func startImport(t *testing.T, c *Controller, csv string) *Job {
	t.Helper()
	return c.Start(context.Background(), io.NopCloser(strings.NewReader(csv)))
}

func waitTerminal(t *testing.T, c *Controller, id string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := c.Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if snap.State.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", id)
	return Snapshot{}
}

func TestImportHappyPath(t *testing.T) {
	applier := newFakeApplier()
	pub := &fakePublisher{}
	c := NewController(NewJobStore(time.Hour), applier, pub, testImportConfig())

	csv := "sku,name,price,status\n" +
		"A-1,Widget,10,active\n" +
		"A-2,Gadget,5,\n" +
		",NoSku,1,\n" + // rejected
		"a-1,Widget v2,12,active\n" // duplicate of row 1, last wins

	job := startImport(t, c, csv)
	snap := waitTerminal(t, c, job.ID())

	if snap.State != StateCompleted {
		t.Fatalf("expected completed, got %s (%s)", snap.State, snap.Error)
	}
	if snap.TotalRows != 4 {
		t.Errorf("expected 4 rows, got %d", snap.TotalRows)
	}
	want := Counts{Created: 2, Rejected: 1, Skipped: 1}
	if snap.Counts != want {
		t.Errorf("expected counts %+v, got %+v", want, snap.Counts)
	}
	if snap.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	// Outcomes come back in row order
	if len(snap.Outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(snap.Outcomes))
	}
	for i, o := range snap.Outcomes {
		if o.Row != i+1 {
			t.Errorf("outcome %d out of order: %+v", i, o)
		}
	}
	if snap.Outcomes[0].Kind != OutcomeSkippedDuplicate {
		t.Errorf("row 1 should be the skipped duplicate, got %+v", snap.Outcomes[0])
	}
	if snap.Outcomes[2].Kind != OutcomeRejected || len(snap.Outcomes[2].Reasons) == 0 {
		t.Errorf("row 3 should be rejected with reasons, got %+v", snap.Outcomes[2])
	}

	events := pub.all()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Type != event.TypeCreated {
			t.Errorf("expected product.created, got %s", ev.Type)
		}
		if ev.JobID != job.ID() {
			t.Errorf("event carries wrong job id: %s", ev.JobID)
		}
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Errorf("expected sequences 1,2 got %d,%d", events[0].Sequence, events[1].Sequence)
	}
	// The surviving A-1 occurrence is the later row
	if events[0].Product.Name != "Widget v2" && events[1].Product.Name != "Widget v2" {
		t.Error("expected the last occurrence of a-1 to win")
	}
}

func TestImportIdempotentRerun(t *testing.T) {
	applier := newFakeApplier()
	pub := &fakePublisher{}
	c := NewController(NewJobStore(time.Hour), applier, pub, testImportConfig())

	csv := "sku,name,price\nA-1,Widget,10\nA-2,Gadget,5\n"

	first := startImport(t, c, csv)
	if snap := waitTerminal(t, c, first.ID()); snap.Counts.Created != 2 {
		t.Fatalf("first run: expected 2 created, got %+v", snap.Counts)
	}

	second := startImport(t, c, csv)
	snap := waitTerminal(t, c, second.ID())
	want := Counts{Unchanged: 2}
	if snap.Counts != want {
		t.Errorf("second run: expected %+v, got %+v", want, snap.Counts)
	}
	if len(pub.all()) != 2 {
		t.Errorf("unchanged rows must not publish events, got %d", len(pub.all()))
	}
}

func TestImportStorageFailure(t *testing.T) {
	applier := newFakeApplier()
	applier.failOn = 2
	pub := &fakePublisher{}
	c := NewController(NewJobStore(time.Hour), applier, pub, testImportConfig())

	csv := "sku,name,price\nA-1,W,1\nA-2,W,1\nA-3,W,1\nA-4,W,1\n"

	job := startImport(t, c, csv)
	snap := waitTerminal(t, c, job.ID())

	if snap.State != StateFailed {
		t.Fatalf("expected failed, got %s", snap.State)
	}
	if snap.Error == "" {
		t.Error("expected an error message")
	}
	// Work from the committed first batch survives
	if snap.Counts.Created != 2 {
		t.Errorf("expected 2 created from the committed batch, got %+v", snap.Counts)
	}
	if len(pub.all()) != 2 {
		t.Errorf("only committed work may publish events, got %d", len(pub.all()))
	}
}

func TestImportCancellation(t *testing.T) {
	applier := newFakeApplier()
	applier.started = make(chan struct{})
	applier.release = make(chan struct{})
	pub := &fakePublisher{}
	c := NewController(NewJobStore(time.Hour), applier, pub, testImportConfig())

	csv := "sku,name,price\nA-1,W,1\nA-2,W,1\nA-3,W,1\nA-4,W,1\n"
	job := startImport(t, c, csv)

	<-applier.started
	accepted, found := c.Cancel(job.ID())
	if !found || !accepted {
		t.Fatalf("cancel rejected: accepted=%v found=%v", accepted, found)
	}
	close(applier.release)

	snap := waitTerminal(t, c, job.ID())
	if snap.State != StateCancelled {
		t.Fatalf("expected cancelled, got %s", snap.State)
	}
	// The in-flight batch commits; the second never starts
	if applier.batchCount() != 1 {
		t.Errorf("expected 1 batch, got %d", applier.batchCount())
	}
	if snap.Counts.Created != 2 {
		t.Errorf("committed batch keeps its counts, got %+v", snap.Counts)
	}

	// Cancelling again is refused
	accepted, found = c.Cancel(job.ID())
	if !found || accepted {
		t.Errorf("expected cancel refused on terminal job: accepted=%v found=%v", accepted, found)
	}
}

func TestImportRowLimit(t *testing.T) {
	cfg := testImportConfig()
	cfg.MaxRows = 2
	applier := newFakeApplier()
	c := NewController(NewJobStore(time.Hour), applier, &fakePublisher{}, cfg)

	csv := "sku,name,price\nA-1,W,1\nA-2,W,1\nA-3,W,1\n"
	job := startImport(t, c, csv)
	snap := waitTerminal(t, c, job.ID())

	if snap.State != StateFailed {
		t.Fatalf("expected failed, got %s", snap.State)
	}
	if !strings.Contains(snap.Error, "row limit") {
		t.Errorf("expected row limit error, got %q", snap.Error)
	}
	if applier.batchCount() != 0 {
		t.Errorf("nothing may be applied when the cap trips, got %d batches", applier.batchCount())
	}
}

func TestImportBadHeader(t *testing.T) {
	c := NewController(NewJobStore(time.Hour), newFakeApplier(), &fakePublisher{}, testImportConfig())

	job := startImport(t, c, "name,vendor\nWidget,Acme\n")
	snap := waitTerminal(t, c, job.ID())

	if snap.State != StateFailed {
		t.Fatalf("expected failed, got %s", snap.State)
	}
	if !strings.Contains(snap.Error, "sku") {
		t.Errorf("expected missing column error, got %q", snap.Error)
	}
}

func TestImportOutcomeCap(t *testing.T) {
	cfg := testImportConfig()
	cfg.OutcomeCap = 2
	c := NewController(NewJobStore(time.Hour), newFakeApplier(), &fakePublisher{}, cfg)

	csv := "sku,name,price\n,,x\n,,x\n,,x\n,,x\n"
	job := startImport(t, c, csv)
	snap := waitTerminal(t, c, job.ID())

	if snap.Counts.Rejected != 4 {
		t.Errorf("counters keep growing past the cap, got %+v", snap.Counts)
	}
	if len(snap.Outcomes) != 2 {
		t.Errorf("expected 2 retained outcomes, got %d", len(snap.Outcomes))
	}
	if !snap.OutcomesTruncated {
		t.Error("expected the outcome list marked truncated")
	}
}

func TestGetUnknownJob(t *testing.T) {
	c := NewController(NewJobStore(time.Hour), newFakeApplier(), &fakePublisher{}, testImportConfig())

	if _, ok := c.Get("nope"); ok {
		t.Error("expected unknown job to report not found")
	}
	if _, found := c.Cancel("nope"); found {
		t.Error("expected cancel of unknown job to report not found")
	}
}
