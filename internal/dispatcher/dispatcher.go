// Package dispatcher runs remote mutations on a bounded worker pool.
//
// Submission never blocks: the scheduler loop hands a job over and moves on.
// Every job catches its own failure; results leave the pool only through
// logging, metrics and result sinks, never through shared view state.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
	"git.home.luguber.info/inful/wodesk/internal/metrics"
	"git.home.luguber.info/inful/wodesk/internal/retry"
)

const (
	DefaultWorkers   = 6
	DefaultQueueSize = 1024

	sinkTimeout = 5 * time.Second
)

// ResultSink receives every job result. Sinks run on worker goroutines.
type ResultSink interface {
	Record(ctx context.Context, res Result)
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc func(ctx context.Context, res Result)

func (f SinkFunc) Record(ctx context.Context, res Result) { f(ctx, res) }

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Active    int   `json:"active"`
	Submitted int64 `json:"submitted"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// Dispatcher is a fixed-size worker pool over a bounded job queue.
type Dispatcher struct {
	jobs      chan Job
	workers   int
	queueSize int
	exec      Executor

	retryPolicy retry.Policy
	recorder    metrics.Recorder
	sinks       []ResultSink

	mu      sync.Mutex
	started bool
	closed  bool
	active  map[string]Job
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc

	submitted, succeeded, failed, dropped atomic.Int64
}

// New creates a dispatcher with the given queue size, worker count and executor.
func New(queueSize, workers int, exec Executor) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if exec == nil {
		panic("dispatcher.New: executor is required")
	}
	return &Dispatcher{
		jobs:        make(chan Job, queueSize),
		workers:     workers,
		queueSize:   queueSize,
		exec:        exec,
		retryPolicy: retry.DefaultPolicy(),
		recorder:    metrics.NoopRecorder{},
		active:      make(map[string]Job),
	}
}

// ConfigureRetry updates the retry policy (should be called once after config load).
func (d *Dispatcher) ConfigureRetry(cfg config.RetryConfig) {
	d.retryPolicy = retry.FromConfig(cfg)
}

// SetRecorder injects a metrics recorder (optional).
func (d *Dispatcher) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	d.recorder = r
}

// AddSink registers a result sink. Must be called before Start.
func (d *Dispatcher) AddSink(s ResultSink) {
	d.sinks = append(d.sinks, s)
}

// Start launches the workers. In-flight jobs are not canceled by ctx; only
// a Stop that runs out of time cancels them.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	d.baseCtx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))

	slog.Info("Starting dispatcher", "workers", d.workers, "queue_size", d.queueSize)
	for i := range d.workers {
		d.wg.Add(1)
		go d.worker(fmt.Sprintf("worker-%d", i))
	}
}

// Submit queues a job without blocking. A full queue or a stopped
// dispatcher drops the job; drops are logged, counted and reported to sinks.
func (d *Dispatcher) Submit(job Job) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.drop(job, errors.DispatcherError("dispatcher stopped").Build())
		return false
	}
	select {
	case d.jobs <- job:
		d.submitted.Add(1)
		d.recorder.SetQueueDepth(len(d.jobs))
		return true
	default:
		d.drop(job, errors.DispatcherError("dispatcher queue is full").
			WithContext("queue_size", d.queueSize).Build())
		return false
	}
}

// Stop stops intake and waits for queued and in-flight jobs to finish. When
// ctx ends first, in-flight jobs are canceled and Stop returns ctx's error
// without waiting further.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if cancel != nil {
			cancel()
		}
		slog.Info("Dispatcher drained")
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		slog.Warn("Dispatcher stop timed out; canceled in-flight jobs", "queued", len(d.jobs))
		return ctx.Err()
	}
}

// Pending returns the number of queued jobs.
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

// Active returns the jobs currently executing.
func (d *Dispatcher) Active() []Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Job, 0, len(d.active))
	for _, j := range d.active {
		out = append(out, j)
	}
	return out
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	active := len(d.active)
	d.mu.Unlock()
	return Stats{
		Workers:   d.workers,
		Queued:    len(d.jobs),
		Active:    active,
		Submitted: d.submitted.Load(),
		Succeeded: d.succeeded.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) worker(workerID string) {
	defer d.wg.Done()
	for job := range d.jobs {
		d.process(job, workerID)
	}
}

func (d *Dispatcher) process(job Job, workerID string) {
	d.mu.Lock()
	d.active[job.ID] = job
	d.mu.Unlock()
	d.recorder.SetQueueDepth(len(d.jobs))

	res := job.Execute(d.baseCtx, d.exec, d.retryPolicy)

	d.mu.Lock()
	delete(d.active, job.ID)
	d.mu.Unlock()

	d.report(res, workerID)
}

// drop records a job that never reached a worker. Called with d.mu held,
// so sinks are notified on their own goroutine.
func (d *Dispatcher) drop(job Job, err error) {
	now := time.Now()
	res := Result{Job: job, Outcome: OutcomeDropped, Err: err, FinishedAt: now}
	d.dropped.Add(1)
	d.recorder.IncJobOutcome(string(job.Kind), string(OutcomeDropped))
	slog.Error("Dropped remote update job", resultAttrs(res)...)
	if len(d.sinks) > 0 {
		go d.notifySinks(res)
	}
}

func (d *Dispatcher) report(res Result, workerID string) {
	kind := string(res.Job.Kind)
	d.recorder.ObserveJobDuration(kind, res.Duration)
	d.recorder.IncJobOutcome(kind, string(res.Outcome))
	for range max(0, res.Attempts-1) {
		d.recorder.IncJobRetry(kind)
	}

	attrs := append(resultAttrs(res), slog.String("worker", workerID))
	if res.Outcome == OutcomeSucceeded {
		d.succeeded.Add(1)
		slog.Info("Remote update job succeeded", attrs...)
	} else {
		d.failed.Add(1)
		slog.Warn("Remote update job failed", attrs...)
	}
	d.notifySinks(res)
}

func (d *Dispatcher) notifySinks(res Result) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		s.Record(ctx, res)
		cancel()
	}
}

func resultAttrs(res Result) []any {
	attrs := []any{
		logfields.JobID(res.Job.ID),
		logfields.JobKind(string(res.Job.Kind)),
		logfields.WorkOrderID(res.Job.WorkOrderID),
		logfields.Reason(string(res.Job.Reason)),
		logfields.Outcome(string(res.Outcome)),
		logfields.Attempts(res.Attempts),
		logfields.DurationMS(float64(res.Duration.Microseconds()) / 1000),
	}
	if res.Job.State != "" {
		attrs = append(attrs, logfields.State(string(res.Job.State)))
	}
	if res.Err != nil {
		attrs = append(attrs, logfields.Error(res.Err))
	}
	return attrs
}
