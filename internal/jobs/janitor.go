package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically evicts finished jobs from a Tracker so memory stays
// bounded on a long-running process.
type Janitor struct {
	tracker   *Tracker
	retention time.Duration
	log       *slog.Logger
	cron      *cron.Cron
}

// NewJanitor returns a Janitor that drops terminal jobs older than retention.
func NewJanitor(tracker *Tracker, retention time.Duration, log *slog.Logger) *Janitor {
	return &Janitor{
		tracker:   tracker,
		retention: retention,
		log:       log,
		cron:      cron.New(),
	}
}

// Start schedules Sweep with a cron expression such as "@every 10m".
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return fmt.Errorf("scheduling job sweep %q: %w", schedule, err)
	}
	j.cron.Start()
	j.log.Info("job janitor started", "schedule", schedule, "retention", j.retention)
	return nil
}

// Stop halts the schedule and waits for a sweep in progress to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep runs one eviction pass.
func (j *Janitor) Sweep() {
	if n := j.tracker.Sweep(j.retention); n > 0 {
		j.log.Info("expired jobs removed", "count", n, "remaining", j.tracker.Len())
	}
}
