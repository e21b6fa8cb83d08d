// Package jobs tracks asynchronous work started by HTTP requests.
//
// Lifecycle:
//
//	pending ──► processing ──► completed
//	                      └──► failed
//
// completed and failed are terminal. State lives in process memory only and is
// lost on restart; the data a job writes is durable, the job itself is not.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a snapshot of one tracked work item.
type Job struct {
	ID        string
	Type      string
	Status    Status
	Data      any
	Result    any
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tracker is a mutex-guarded registry of jobs keyed by id. Readers always get a
// copy taken under the lock, so they see either the state before or after a
// transition, never a partial one.
type Tracker struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	now   func() time.Time
	newID func() string
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns an empty Tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		jobs:  make(map[string]*Job),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create registers a new pending job and returns it.
func (t *Tracker) Create(jobType string, data any) Job {
	now := t.now().UTC()
	job := &Job{
		ID:        t.newID(),
		Type:      jobType,
		Status:    StatusPending,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.mu.Lock()
	t.jobs[job.ID] = job
	t.mu.Unlock()

	return *job
}

// Get returns a copy of the job with the given id.
func (t *Tracker) Get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// UpdateStatus moves a job to status and bumps UpdatedAt. result is attached
// when non-nil and errMsg when non-empty. Unknown ids and jobs already in a
// terminal state are silently ignored.
func (t *Tracker) UpdateStatus(id string, status Status, result any, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}

	job.Status = status
	job.UpdatedAt = t.now().UTC()
	if result != nil {
		job.Result = result
	}
	if errMsg != "" {
		job.Error = errMsg
	}
}

// Sweep drops terminal jobs whose last update is older than olderThan and
// returns how many were removed. Pending and processing jobs are never dropped.
func (t *Tracker) Sweep(olderThan time.Duration) int {
	cutoff := t.now().UTC().Add(-olderThan)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, job := range t.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}
