package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduler_ScheduleUpdateRemove(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	var runs atomic.Int32
	task := func(ctx context.Context) { runs.Add(1) }

	require.NoError(t, s.Schedule("tick", 10*time.Millisecond, task))
	require.True(t, s.Scheduled("tick"))
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Schedule("tick", time.Hour, task))
	next, ok := s.NextRun("tick")
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(time.Hour), next, time.Minute)

	require.NoError(t, s.Schedule("tick", 0, task))
	require.False(t, s.Scheduled("tick"))
	_, ok = s.NextRun("tick")
	require.False(t, ok)
}

func TestScheduler_NonPositiveIntervalWithoutJobIsNoop(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.Schedule("refresh", 0, func(context.Context) {}))
	require.False(t, s.Scheduled("refresh"))
}

func TestScheduler_StopCancelsTaskContext(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	s.Start()

	started := make(chan struct{})
	canceled := make(chan struct{})
	var once atomic.Bool
	require.NoError(t, s.Schedule("block", 5*time.Millisecond, func(ctx context.Context) {
		if !once.CompareAndSwap(false, true) {
			return
		}
		close(started)
		<-ctx.Done()
		close(canceled)
	}))

	<-started
	require.NoError(t, s.Stop())
	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("task context was not canceled on stop")
	}
}
