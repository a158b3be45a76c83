package transcription

import (
	"sync"
	"time"

	"github.com/podforge/api/internal/model"
)

// pendingJob is a single-fire wait record for one external transcript job.
type pendingJob struct {
	ch       chan *model.TranscriptResult
	deadline time.Time
}

// PendingJobs is the shared map between webhook notifications and waiting
// coordinators. Registration and notification mutate it under one mutex,
// so whichever side arrives second observes the other's state: a waiter
// registering after the notification resolves immediately from the
// completed map, and a notification arriving after registration fires the
// waiter's channel. At most one payload is ever delivered per job.
type PendingJobs struct {
	mu        sync.Mutex
	waiting   map[string]*pendingJob
	completed map[string]completedEntry
	ttl       time.Duration
	now       func() time.Time
}

type completedEntry struct {
	result   *model.TranscriptResult
	deadline time.Time
}

// NewPendingJobs creates the map. ttl bounds how long an unclaimed record
// (waiter or payload) survives before garbage collection.
func NewPendingJobs(ttl time.Duration) *PendingJobs {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &PendingJobs{
		waiting:   make(map[string]*pendingJob),
		completed: make(map[string]completedEntry),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Register declares interest in a job and returns a single-fire channel.
// If the notification already arrived the channel is pre-loaded and the
// stored payload consumed.
func (p *PendingJobs) Register(jobID string) <-chan *model.TranscriptResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweepLocked()

	ch := make(chan *model.TranscriptResult, 1)
	if entry, ok := p.completed[jobID]; ok {
		delete(p.completed, jobID)
		ch <- entry.result
		return ch
	}
	p.waiting[jobID] = &pendingJob{ch: ch, deadline: p.now().Add(p.ttl)}
	return ch
}

// Unregister withdraws interest in a job, e.g. after a wait timeout.
func (p *PendingJobs) Unregister(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiting, jobID)
}

// Notify delivers a completion payload. If a coordinator is waiting it is
// signaled and the record consumed; otherwise the payload is parked for a
// later Register, bounded by the ttl.
func (p *PendingJobs) Notify(jobID string, result *model.TranscriptResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweepLocked()

	if job, ok := p.waiting[jobID]; ok {
		delete(p.waiting, jobID)
		job.ch <- result
		return
	}
	p.completed[jobID] = completedEntry{result: result, deadline: p.now().Add(p.ttl)}
}

// Len returns the number of live records, for the health endpoint.
func (p *PendingJobs) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting) + len(p.completed)
}

// sweepLocked drops expired records so a long-lived process cannot
// accumulate abandoned jobs. Caller holds the mutex.
func (p *PendingJobs) sweepLocked() {
	now := p.now()
	for id, job := range p.waiting {
		if now.After(job.deadline) {
			delete(p.waiting, id)
		}
	}
	for id, entry := range p.completed {
		if now.After(entry.deadline) {
			delete(p.completed, id)
		}
	}
}
