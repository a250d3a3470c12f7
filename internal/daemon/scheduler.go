package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Scheduler wraps a gocron scheduler for the daemon's periodic tasks. Each
// task is registered under a name and can be rescheduled or removed later.
type Scheduler struct {
	scheduler gocron.Scheduler

	mu   sync.Mutex
	jobs map[string]gocron.Job
}

// NewScheduler creates a scheduler driven by clock.
func NewScheduler(clock clockwork.Clock) (*Scheduler, error) {
	opts := []gocron.SchedulerOption{gocron.WithStopTimeout(10 * time.Second)}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
	}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler. Running tasks see their
// context canceled.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// Schedule runs task every interval under name. An existing job of the same
// name is updated in place; a non-positive interval removes it. A run that
// is still in progress when the next one is due causes that run to be skipped.
func (s *Scheduler) Schedule(name string, interval time.Duration, task func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[name]
	if interval <= 0 {
		if !ok {
			return nil
		}
		delete(s.jobs, name)
		if err := s.scheduler.RemoveJob(existing.ID()); err != nil {
			return fmt.Errorf("failed to remove %s job: %w", name, err)
		}
		slog.Info("Unscheduled periodic task", slog.String("task", name))
		return nil
	}

	def := gocron.DurationJob(interval)
	run := gocron.NewTask(task)
	opts := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}

	var (
		job gocron.Job
		err error
	)
	if ok {
		job, err = s.scheduler.Update(existing.ID(), def, run, opts...)
	} else {
		job, err = s.scheduler.NewJob(def, run, opts...)
	}
	if err != nil {
		return fmt.Errorf("failed to schedule %s job: %w", name, err)
	}
	s.jobs[name] = job

	slog.Info("Scheduled periodic task", slog.String("task", name), slog.Duration("interval", interval))
	return nil
}

// Scheduled reports whether a job of the given name exists.
func (s *Scheduler) Scheduled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// NextRun returns when the named job runs next.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	next, err := job.NextRun()
	if err != nil {
		return time.Time{}, false
	}
	return next, true
}
