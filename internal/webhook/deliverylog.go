package webhook

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"product-importer/internal/store"
)

// AttemptRecord is one delivery attempt's audit entry.
type AttemptRecord struct {
	At             time.Time
	WebhookID      string
	EventID        string
	EventType      string
	SKU            string
	JobID          string
	Sequence       uint64
	URL            string
	Attempt        int
	MaxAttempts    int
	ResponseStatus int
	Status         string // succeeded, failed-retryable, failed-permanent
	Error          string
	IdempotencyKey string
}

// DeliveryLogger records delivery attempts. Logging failures never block or
// fail a delivery.
type DeliveryLogger interface {
	LogAttempt(ctx context.Context, rec AttemptRecord)
}

// NopLogger discards attempt records.
type NopLogger struct{}

func (NopLogger) LogAttempt(context.Context, AttemptRecord) {}

// StoreLogger writes attempts to the _webhook_deliveries table and prunes
// entries past the retention window on a daily sweep.
type StoreLogger struct {
	db            *store.Store
	retentionDays int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewStoreLogger(db *store.Store, retentionDays int) *StoreLogger {
	if retentionDays < 1 {
		retentionDays = 7
	}
	return &StoreLogger{
		db:            db,
		retentionDays: retentionDays,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (l *StoreLogger) LogAttempt(ctx context.Context, rec AttemptRecord) {
	pb := l.db.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, l.db.DB,
		fmt.Sprintf(`INSERT INTO _webhook_deliveries
			(id, webhook_id, event_id, event_type, sku, job_id, sequence, url, attempt, max_attempts, response_status, status, error, idempotency_key)
			VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
			pb.Add(store.GenerateUUID()), pb.Add(rec.WebhookID), pb.Add(rec.EventID),
			pb.Add(rec.EventType), pb.Add(rec.SKU), pb.Add(rec.JobID),
			pb.Add(int64(rec.Sequence)), pb.Add(rec.URL), pb.Add(rec.Attempt),
			pb.Add(rec.MaxAttempts), pb.Add(rec.ResponseStatus), pb.Add(rec.Status),
			pb.Add(rec.Error), pb.Add(rec.IdempotencyKey)),
		pb.Params()...)
	if err != nil {
		log.Printf("ERROR: record webhook delivery attempt: %v", err)
	}
}

// StartCleanup launches the retention sweep.
func (l *StoreLogger) StartCleanup() {
	go func() {
		defer close(l.done)
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		l.cleanup()
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-l.stop:
				return
			}
		}
	}()
}

// Stop halts the cleanup sweep.
func (l *StoreLogger) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

func (l *StoreLogger) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pb := l.db.Dialect.NewParamBuilder()
	sqlStr := "DELETE FROM _webhook_deliveries WHERE " +
		l.db.Dialect.IntervalDeleteExpr("created_at", pb, strconv.Itoa(l.retentionDays))
	n, err := store.Exec(ctx, l.db.DB, sqlStr, pb.Params()...)
	if err != nil {
		log.Printf("ERROR: prune webhook deliveries: %v", err)
		return
	}
	if n > 0 {
		log.Printf("INFO: pruned %d webhook delivery records older than %d days", n, l.retentionDays)
	}
}
