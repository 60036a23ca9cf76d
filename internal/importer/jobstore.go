package importer

import (
	"log"
	"sync"
	"time"
)

// JobStore holds jobs in memory. Terminal jobs older than the retention
// window are evicted by a background sweep; in-flight jobs are never touched.
type JobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewJobStore(retention time.Duration) *JobStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &JobStore{
		jobs:      make(map[string]*Job),
		retention: retention,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *JobStore) add(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.id] = j
}

// Get returns the job with the given id, or false when unknown or evicted.
func (s *JobStore) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Len returns the number of retained jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// StartEviction launches the retention sweep. Call Stop to end it.
func (s *JobStore) StartEviction() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.sweepInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.evictExpired(time.Now().UTC()); n > 0 {
					log.Printf("INFO: evicted %d expired import jobs", n)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the eviction sweep and waits for it to exit.
func (s *JobStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *JobStore) sweepInterval() time.Duration {
	interval := s.retention / 10
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}

func (s *JobStore) evictExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, j := range s.jobs {
		snap := j.Snapshot()
		if !snap.State.Terminal() || snap.CompletedAt == nil {
			continue
		}
		if now.Sub(*snap.CompletedAt) > s.retention {
			delete(s.jobs, id)
			evicted++
		}
	}
	return evicted
}
