package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Submit when the backlog is at capacity.
	ErrQueueFull = errors.New("job queue is full")

	// ErrRunnerStopped is returned by Submit after Stop.
	ErrRunnerStopped = errors.New("job runner is stopped")
)

// Work is the body of a job. Its result is recorded on success and its error
// message on failure. Work should return promptly once ctx is done.
type Work func(ctx context.Context) (any, error)

type task struct {
	id   string
	work Work
}

// Runner executes submitted work one job at a time, in submission order, on a
// single background goroutine fed by a buffered channel. The job id is the
// correlation key between the queue and the Tracker.
type Runner struct {
	tracker *Tracker
	log     *slog.Logger
	timeout time.Duration
	queue   chan task

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRunner builds a Runner with room for queueSize waiting jobs. Each job is
// given at most timeout to finish; zero means no per-job deadline.
func NewRunner(tracker *Tracker, log *slog.Logger, queueSize int, timeout time.Duration) *Runner {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Runner{
		tracker: tracker,
		log:     log,
		timeout: timeout,
		queue:   make(chan task, queueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Cancelling ctx has the same effect as Stop.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)
}

// Submit queues work for the job with the given id without blocking. The job
// stays pending until the consumer picks it up.
func (r *Runner) Submit(id string, work Work) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrRunnerStopped
	}

	select {
	case r.queue <- task{id: id, work: work}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cancels the running job, fails every job still queued and waits for
// the consumer to exit. It is safe to call more than once.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	if !started {
		r.drain()
		close(r.done)
		return
	}

	r.cancel()
	<-r.done
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.markStopping()
			r.drain()
			return
		case t := <-r.queue:
			r.process(ctx, t)
		}
	}
}

// markStopping makes Submit refuse work once the consumer is going away.
func (r *Runner) markStopping() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// drain fails every job that never started. Submit can no longer add to the
// queue once stopped is set, so the loop terminates.
func (r *Runner) drain() {
	for {
		select {
		case t := <-r.queue:
			r.tracker.UpdateStatus(t.id, StatusFailed, nil, ErrRunnerStopped.Error())
			r.log.Warn("job dropped on shutdown", "job_id", t.id)
		default:
			return
		}
	}
}

func (r *Runner) process(ctx context.Context, t task) {
	r.tracker.UpdateStatus(t.id, StatusProcessing, nil, "")
	r.log.Info("job started", "job_id", t.id)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := run(ctx, t.work)
	if err != nil {
		r.tracker.UpdateStatus(t.id, StatusFailed, nil, err.Error())
		r.log.Error("job failed", "job_id", t.id, "err", err, "duration", time.Since(start))
		return
	}

	r.tracker.UpdateStatus(t.id, StatusCompleted, result, "")
	r.log.Info("job completed", "job_id", t.id, "duration", time.Since(start))
}

// run calls work, turning a panic into an error so nothing escapes the consumer.
func run(ctx context.Context, work Work) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return work(ctx)
}
