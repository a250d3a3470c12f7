package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/testsccd"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// collector is a ResultSink that records results.
type collector struct {
	mu      sync.Mutex
	results []Result
	ch      chan Result
}

func newCollector() *collector { return &collector{ch: make(chan Result, 64)} }

func (c *collector) Record(_ context.Context, res Result) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
	c.ch <- res
}

func (c *collector) next(t *testing.T) Result {
	t.Helper()
	select {
	case res := <-c.ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for job result")
		return Result{}
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	retries  int
}

func (f *fakeRecorder) ObserveJobDuration(string, time.Duration) {}
func (f *fakeRecorder) IncJobOutcome(_ string, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = map[string]int{}
	}
	f.outcomes[outcome]++
}
func (f *fakeRecorder) IncJobRetry(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
}
func (f *fakeRecorder) SetQueueDepth(int)                  {}
func (f *fakeRecorder) SetActiveTimers(int)                {}
func (f *fakeRecorder) IncTimerExpired()                   {}
func (f *fakeRecorder) ObserveRefresh(time.Duration, bool) {}

func (f *fakeRecorder) count(outcome string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes[outcome]
}

func TestDispatcherRunsJobsAgainstRemote(t *testing.T) {
	remote := testsccd.New()
	d := New(8, 2, RemoteExecutor{Remote: remote})
	sink := newCollector()
	d.AddSink(sink)
	d.Start(context.Background())

	require.True(t, d.Submit(UpdateState("WO1", workorder.StateInProgress, ReasonManual)))
	require.True(t, d.Submit(AppendLog("WO1", "P00. status", "waiting for customer")))

	for range 2 {
		res := sink.next(t)
		require.Equal(t, OutcomeSucceeded, res.Outcome)
		require.Equal(t, 1, res.Attempts)
		require.NoError(t, res.Err)
	}
	require.NoError(t, d.Stop(context.Background()))

	require.Len(t, remote.CallsOf(testsccd.CallUpdate), 1)
	require.Len(t, remote.CallsOf(testsccd.CallLog), 1)
	st := d.Stats()
	require.EqualValues(t, 2, st.Submitted)
	require.EqualValues(t, 2, st.Succeeded)
}

func TestDispatcherFailureIsIsolated(t *testing.T) {
	remote := testsccd.New()
	remote.FailFor("WO1", testsccd.FailModeNetwork)
	d := New(8, 1, RemoteExecutor{Remote: remote})
	sink := newCollector()
	d.AddSink(sink)
	d.Start(context.Background())

	d.Submit(UpdateState("WO1", workorder.StateInProgress, ReasonManual))
	d.Submit(UpdateState("WO2", workorder.StateInProgress, ReasonManual))

	byID := map[string]Result{}
	for range 2 {
		res := sink.next(t)
		byID[res.Job.WorkOrderID] = res
	}
	require.Equal(t, OutcomeFailed, byID["WO1"].Outcome)
	require.True(t, errors.HasCategory(byID["WO1"].Err, errors.CategoryNetwork))
	require.Equal(t, OutcomeSucceeded, byID["WO2"].Outcome)
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcherRecoversPanics(t *testing.T) {
	remote := testsccd.New()
	remote.FailFor("WO1", testsccd.FailModePanic)
	d := New(8, 1, RemoteExecutor{Remote: remote})
	sink := newCollector()
	d.AddSink(sink)
	d.Start(context.Background())

	d.Submit(UpdateState("WO1", workorder.StateQueued, ReasonExpiry))
	res := sink.next(t)
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.True(t, errors.HasCategory(res.Err, errors.CategoryDispatcher))

	d.Submit(UpdateState("WO2", workorder.StateQueued, ReasonExpiry))
	require.Equal(t, OutcomeSucceeded, sink.next(t).Outcome)
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	rec := &fakeRecorder{}
	d := New(1, 1, ExecutorFunc(func(context.Context, Job) error { return nil }))
	d.SetRecorder(rec)
	sink := newCollector()
	d.AddSink(sink)

	// Not started: the first job fills the queue.
	require.True(t, d.Submit(UpdateState("WO1", workorder.StateQueued, ReasonExpiry)))
	require.False(t, d.Submit(UpdateState("WO2", workorder.StateQueued, ReasonExpiry)))

	dropped := sink.next(t)
	require.Equal(t, OutcomeDropped, dropped.Outcome)
	require.Equal(t, "WO2", dropped.Job.WorkOrderID)
	require.Equal(t, 1, rec.count(string(OutcomeDropped)))

	d.Start(context.Background())
	require.Equal(t, OutcomeSucceeded, sink.next(t).Outcome)
	require.NoError(t, d.Stop(context.Background()))

	require.False(t, d.Submit(UpdateState("WO3", workorder.StateQueued, ReasonManual)))
	require.Equal(t, OutcomeDropped, sink.next(t).Outcome)
	require.EqualValues(t, 2, d.Stats().Dropped)
}

func TestDispatcherStopReturnsWhenJobHangs(t *testing.T) {
	remote := testsccd.New()
	remote.Block()
	d := New(8, 1, RemoteExecutor{Remote: remote})
	sink := newCollector()
	d.AddSink(sink)
	d.Start(context.Background())

	d.Submit(UpdateState("WO1", workorder.StateInProgress, ReasonManual))
	require.Eventually(t, func() bool { return len(d.Active()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := d.Stop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)

	res := sink.next(t)
	require.Equal(t, OutcomeCanceled, res.Outcome)
}

func TestDispatcherStopDrainsQueuedJobs(t *testing.T) {
	var ran atomic.Int32
	d := New(16, 2, ExecutorFunc(func(context.Context, Job) error {
		time.Sleep(time.Millisecond)
		ran.Add(1)
		return nil
	}))
	d.Start(context.Background())
	for range 10 {
		d.Submit(AppendLog("WO1", "title", "note"))
	}
	require.NoError(t, d.Stop(context.Background()))
	require.EqualValues(t, 10, ran.Load())
	require.Zero(t, d.Pending())
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	rec := &fakeRecorder{}
	d := New(4, 1, ExecutorFunc(func(context.Context, Job) error {
		if attempts.Add(1) < 3 {
			return errors.RemoteError("sccd returned 503").Build()
		}
		return nil
	}))
	d.ConfigureRetry(config.RetryConfig{MaxRetries: 2, Backoff: "fixed", InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
	d.SetRecorder(rec)
	sink := newCollector()
	d.AddSink(sink)
	d.Start(context.Background())

	d.Submit(UpdateState("WO1", workorder.StateQueued, ReasonExpiry))
	res := sink.next(t)
	require.Equal(t, OutcomeSucceeded, res.Outcome)
	require.Equal(t, 3, res.Attempts)
	require.NoError(t, d.Stop(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, 2, rec.retries)
}

func TestDispatcherDoesNotRetryByDefault(t *testing.T) {
	var attempts atomic.Int32
	d := New(4, 1, ExecutorFunc(func(context.Context, Job) error {
		attempts.Add(1)
		return errors.RemoteError("sccd returned 503").Build()
	}))
	sink := newCollector()
	d.AddSink(sink)
	d.Start(context.Background())

	d.Submit(UpdateState("WO1", workorder.StateQueued, ReasonExpiry))
	res := sink.next(t)
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Equal(t, 1, res.Attempts)
	require.NoError(t, d.Stop(context.Background()))
	require.EqualValues(t, 1, attempts.Load())
}

func TestRemoteExecutorRejectsUnknownKind(t *testing.T) {
	exec := RemoteExecutor{Remote: testsccd.New()}
	err := exec.Execute(context.Background(), Job{Kind: "bogus"})
	require.True(t, errors.HasCategory(err, errors.CategoryDispatcher))

	err = exec.Execute(context.Background(), RenderMWEmail("WO1", "N20.", "note"))
	require.True(t, errors.HasCategory(err, errors.CategoryDispatcher))
}
