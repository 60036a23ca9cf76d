package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"product-importer/internal/config"
	"product-importer/internal/event"
)

// EndpointSource resolves which endpoints should receive an event.
type EndpointSource interface {
	ActiveEndpoints(ctx context.Context, t event.Type) ([]*Endpoint, error)
}

// Delivery status values written to the audit log.
const (
	StatusSucceeded       = "succeeded"
	StatusFailedRetryable = "failed-retryable"
	StatusFailedPermanent = "failed-permanent"
)

type delivery struct {
	endpoint *Endpoint
	ev       event.ChangeEvent
	key      string // idempotency key, stable across retries
}

// lane serializes deliveries sharing an (endpoint, SKU) pair. Retries run
// inside the lane, so a failing delivery holds back later events for the
// same product at the same endpoint while other lanes keep moving.
type lane struct {
	key    string
	queue  []delivery
	active bool // a worker currently owns this lane
}

// Dispatcher fans product change events out to registered endpoints. Delivery
// is at-least-once: every delivery is attempted until it succeeds, fails
// permanently, or the attempt budget runs out. A bounded slot pool keeps
// Publish from growing the backlog without limit.
type Dispatcher struct {
	cfg    config.WebhookConfig
	source EndpointSource
	logger DeliveryLogger
	client *http.Client

	mu    sync.Mutex
	lanes map[string]*lane

	laneQueue chan *lane
	slots     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(cfg config.WebhookConfig, source EndpointSource, logger DeliveryLogger) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = NopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:       cfg,
		source:    source,
		logger:    logger,
		client:    &http.Client{Timeout: cfg.Timeout},
		lanes:     make(map[string]*lane),
		laneQueue: make(chan *lane, cfg.QueueSize),
		slots:     make(chan struct{}, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	log.Printf("INFO: webhook dispatcher started: %d workers, queue %d, %d attempts",
		d.cfg.Workers, d.cfg.QueueSize, d.cfg.MaxAttempts)
}

// Stop cancels in-flight work and waits for the workers to exit. Queued
// deliveries that have not started are dropped; the audit log shows which
// events were delivered.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

// Publish routes one committed change event to every matching endpoint.
// It blocks while the backlog is full, which slows the importer down instead
// of dropping deliveries.
func (d *Dispatcher) Publish(ev event.ChangeEvent) {
	endpoints, err := d.source.ActiveEndpoints(d.ctx, ev.Type)
	if err != nil {
		log.Printf("ERROR: resolve endpoints for %s: %v", ev.Type, err)
		return
	}

	for _, ep := range endpoints {
		ok, err := ep.Matches(ev)
		if err != nil {
			log.Printf("ERROR: webhook %s condition: %v", ep.ID, err)
			continue
		}
		if !ok {
			continue
		}
		d.enqueue(delivery{endpoint: ep, ev: ev, key: uuid.NewString()})
	}
}

func (d *Dispatcher) enqueue(del delivery) {
	select {
	case d.slots <- struct{}{}:
	case <-d.ctx.Done():
		return
	}

	d.mu.Lock()
	key := laneKey(del.endpoint.ID, del.ev.SKU)
	ln, ok := d.lanes[key]
	if !ok {
		ln = &lane{key: key}
		d.lanes[key] = ln
	}
	ln.queue = append(ln.queue, del)
	schedule := !ln.active
	if schedule {
		ln.active = true
	}
	d.mu.Unlock()

	if schedule {
		select {
		case d.laneQueue <- ln:
		case <-d.ctx.Done():
		}
	}
}

func laneKey(endpointID, sku string) string {
	return endpointID + "|" + strings.ToLower(sku)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case ln := <-d.laneQueue:
			d.drain(ln)
		case <-d.ctx.Done():
			return
		}
	}
}

// drain delivers the lane's queue in order, one delivery at a time, until it
// is empty. Keeping the whole lane on one worker is what preserves per
// (endpoint, SKU) ordering across retries.
func (d *Dispatcher) drain(ln *lane) {
	for {
		d.mu.Lock()
		if len(ln.queue) == 0 {
			ln.active = false
			delete(d.lanes, ln.key)
			d.mu.Unlock()
			return
		}
		del := ln.queue[0]
		ln.queue = ln.queue[1:]
		d.mu.Unlock()

		d.deliver(del)
		<-d.slots

		select {
		case <-d.ctx.Done():
			d.mu.Lock()
			ln.active = false
			d.mu.Unlock()
			return
		default:
		}
	}
}

// deliver runs the attempt loop for one delivery.
func (d *Dispatcher) deliver(del delivery) {
	body, err := json.Marshal(del.ev)
	if err != nil {
		log.Printf("ERROR: marshal event %s: %v", del.ev.ID, err)
		return
	}

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		status, respCode, attemptErr := d.attempt(del, body)
		if status == StatusFailedRetryable && attempt == d.cfg.MaxAttempts {
			status = StatusFailedPermanent
			attemptErr = fmt.Errorf("attempt budget exhausted: %w", attemptErr)
		}
		d.logAttempt(del, attempt, respCode, status, attemptErr)

		switch status {
		case StatusSucceeded:
			return
		case StatusFailedPermanent:
			log.Printf("WARNING: webhook %s gave up on event %s (sku %s) after %d attempts: %v",
				del.endpoint.ID, del.ev.ID, del.ev.SKU, attempt, attemptErr)
			return
		}
		if !d.sleep(d.backoff(attempt)) {
			return
		}
	}
}

// attempt makes one HTTP call and classifies the result. Network errors,
// timeouts, 429, and 5xx responses are retryable; any other non-2xx response
// is permanent.
func (d *Dispatcher) attempt(del delivery, body []byte) (status string, respCode int, err error) {
	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, del.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return StatusFailedPermanent, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Import-Event", string(del.ev.Type))
	req.Header.Set("X-Import-Delivery", del.key)
	if del.endpoint.Secret != "" {
		req.Header.Set("X-Import-Signature", Sign(del.endpoint.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return StatusFailedRetryable, 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return StatusSucceeded, resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return StatusFailedRetryable, resp.StatusCode, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	default:
		return StatusFailedPermanent, resp.StatusCode, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
}

// backoff returns the exponential delay before the next attempt, capped and
// jittered by up to 25% either way.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BackoffBase << (attempt - 1)
	if delay > d.cfg.BackoffCap || delay <= 0 {
		delay = d.cfg.BackoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2+1)) - delay/4
	return delay + jitter
}

func (d *Dispatcher) sleep(dur time.Duration) bool {
	if dur <= 0 {
		return true
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-d.ctx.Done():
		return false
	}
}

func (d *Dispatcher) logAttempt(del delivery, attempt, respCode int, status string, err error) {
	rec := AttemptRecord{
		At:             time.Now().UTC(),
		WebhookID:      del.endpoint.ID,
		EventID:        del.ev.ID,
		EventType:      string(del.ev.Type),
		SKU:            del.ev.SKU,
		JobID:          del.ev.JobID,
		Sequence:       del.ev.Sequence,
		URL:            del.endpoint.URL,
		Attempt:        attempt,
		MaxAttempts:    d.cfg.MaxAttempts,
		ResponseStatus: respCode,
		Status:         status,
		IdempotencyKey: del.key,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.logger.LogAttempt(ctx, rec)
}
