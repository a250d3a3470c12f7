// Package loop runs a single cooperative scheduler goroutine.
//
// All state owned by the loop (the view, the timer registry and the
// lifecycle controller's bookkeeping) is touched only from functions the loop
// executes, so none of it needs locking. Other goroutines hand work to the
// loop with Call. Deferred work is scheduled with After.
//
// Deferred calls are ordered by deadline and then by scheduling order. While
// a deferred call runs, Now reports its deadline instead of the wall clock,
// so a call that reschedules itself with After(d) fires at exactly
// deadline+d. Advancing a fake clock by N intervals therefore yields exactly
// N ticks in order.
package loop

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
)

// ErrStopped is returned when work is handed to a loop that is no longer running.
var ErrStopped = errors.RuntimeError("scheduler loop stopped").Build()

// Loop is a single-goroutine scheduler.
type Loop struct {
	clock clockwork.Clock
	inbox chan func()

	// Owned by the loop goroutine.
	tasks  taskHeap
	seq    uint64
	now    time.Time
	inTask bool

	running   atomic.Bool
	readyOnce sync.Once
	ready     chan struct{}
	done      chan struct{}
}

// New creates a loop driven by clock. buffer sizes the inbox.
func New(clock clockwork.Clock, buffer int) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		clock: clock,
		inbox: make(chan func(), buffer),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Ready is closed once Run has started.
func (l *Loop) Ready() <-chan struct{} { return l.ready }

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Clock returns the clock driving the loop.
func (l *Loop) Clock() clockwork.Clock { return l.clock }

// Run executes posted and deferred calls until ctx is canceled.
// Pending deferred calls are discarded on return.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.RuntimeError("scheduler loop already running").Build()
	}
	defer close(l.done)
	l.readyOnce.Do(func() { close(l.ready) })

	for {
		l.runDue()

		var (
			timer clockwork.Timer
			wake  <-chan time.Time
		)
		if next := l.tasks.peek(); next != nil {
			timer = l.clock.NewTimer(next.at.Sub(l.clock.Now()))
			wake = timer.Chan()
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil
		case fn := <-l.inbox:
			stopTimer(timer)
			// Deferred calls that are already due run before the posted call,
			// so callers observe every tick up to the current time.
			l.runDue()
			l.exec(fn)
		case <-wake:
		}
	}
}

// Call runs fn on the loop and waits for it to finish. It must not be used
// from the loop goroutine itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	result := make(chan error, 1)
	wrapped := func() { result <- l.exec(fn) }

	select {
	case l.inbox <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

// Eval runs fn on the loop and returns its value.
func Eval[T any](ctx context.Context, l *Loop, fn func() T) (T, error) {
	var out T
	err := l.Call(ctx, func() { out = fn() })
	return out, err
}

// After schedules fn to run d after the current logical time. Loop goroutine only.
func (l *Loop) After(d time.Duration, fn func()) *Handle {
	if d < 0 {
		d = 0
	}
	l.seq++
	t := &task{at: l.Now().Add(d), seq: l.seq, fn: fn}
	heap.Push(&l.tasks, t)
	return &Handle{l: l, t: t}
}

// Now reports the loop's logical time. Loop goroutine only.
func (l *Loop) Now() time.Time {
	if l.inTask {
		return l.now
	}
	return l.clock.Now()
}

// Pending reports how many deferred calls are scheduled. Loop goroutine only.
func (l *Loop) Pending() int { return l.tasks.Len() }

func (l *Loop) runDue() {
	for {
		next := l.tasks.peek()
		if next == nil || next.at.After(l.clock.Now()) {
			return
		}
		heap.Pop(&l.tasks)
		l.inTask, l.now = true, next.at
		_ = l.exec(next.fn)
		l.inTask = false
	}
}

// exec runs fn, converting a panic into an error so one faulty callback
// cannot take the loop down.
func (l *Loop) exec(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.InternalError("scheduler callback panicked").
				WithContext("panic", fmt.Sprint(r)).Build()
			slog.Error("Scheduler callback panicked", "panic", r)
		}
	}()
	fn()
	return nil
}

func stopTimer(t clockwork.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Handle refers to a deferred call.
type Handle struct {
	l *Loop
	t *task
}

// Cancel removes the deferred call if it has not run yet and reports whether
// it did so. Loop goroutine only.
func (h *Handle) Cancel() bool {
	if h == nil || h.t.index < 0 {
		return false
	}
	heap.Remove(&h.l.tasks, h.t.index)
	return true
}

type task struct {
	at    time.Time
	seq   uint64
	fn    func()
	index int
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

func (h taskHeap) peek() *task {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
