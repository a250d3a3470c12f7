// Package timers keeps one countdown per work order on the scheduler loop.
package timers

import (
	"log/slog"
	"slices"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/logfields"
	"git.home.luguber.info/inful/wodesk/internal/loop"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// DefaultInterval is the length of one tick.
const DefaultInterval = time.Second

// Rows is the part of the view the registry writes to.
type Rows interface {
	SetRemainingMinutes(id string, minutes int) bool
	SetState(id string, state workorder.State) bool
}

// Options configures a Registry.
type Options struct {
	// Returned is the state a row takes when its countdown expires.
	Returned workorder.State
	// Interval is the tick length; zero means DefaultInterval.
	Interval time.Duration
	// OnExpire is called once per natural expiry, after the row was updated.
	OnExpire func(id string)
}

// Registry owns the running timers. It is confined to the loop goroutine:
// every method must be called from a function the loop executes.
type Registry struct {
	loop     *loop.Loop
	rows     Rows
	returned workorder.State
	interval time.Duration
	onExpire func(id string)

	timers map[string]*timer
}

type timer struct {
	id        string
	remaining int // seconds
	next      *loop.Handle
}

// New creates a registry that schedules its ticks on l.
func New(l *loop.Loop, rows Rows, opts Options) *Registry {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Returned == "" {
		opts.Returned = workorder.StateQueued
	}
	return &Registry{
		loop:     l,
		rows:     rows,
		returned: opts.Returned,
		interval: opts.Interval,
		onExpire: opts.OnExpire,
		timers:   make(map[string]*timer),
	}
}

// Start begins a countdown of minutes for id, replacing any running one.
// Negative minutes are treated as zero.
func (r *Registry) Start(id string, minutes int) {
	if minutes < 0 {
		minutes = 0
	}
	r.stop(id)

	t := &timer{id: id, remaining: minutes * 60}
	r.timers[id] = t
	r.rows.SetRemainingMinutes(id, ceilMinutes(t.remaining))
	t.next = r.loop.After(r.interval, func() { r.tick(t) })

	slog.Debug("Timer started", logfields.WorkOrderID(id), logfields.Minutes(minutes))
}

// Cancel stops the countdown for id and zeroes its remaining minutes.
// It does nothing when no timer runs for id.
func (r *Registry) Cancel(id string) {
	if !r.stop(id) {
		return
	}
	r.rows.SetRemainingMinutes(id, 0)
	slog.Debug("Timer cancelled", logfields.WorkOrderID(id))
}

// CancelAll cancels every running timer.
func (r *Registry) CancelAll() {
	for _, id := range r.IDs() {
		r.Cancel(id)
	}
}

// Remaining reports the seconds left for id.
func (r *Registry) Remaining(id string) (time.Duration, bool) {
	t, ok := r.timers[id]
	if !ok {
		return 0, false
	}
	return time.Duration(t.remaining) * time.Second, true
}

// Running reports whether a timer runs for id.
func (r *Registry) Running(id string) bool {
	_, ok := r.timers[id]
	return ok
}

// IDs lists the work orders with a running timer, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.timers))
	for id := range r.timers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) Len() int { return len(r.timers) }

// stop removes the timer for id and its pending tick.
func (r *Registry) stop(id string) bool {
	t, ok := r.timers[id]
	if !ok {
		return false
	}
	t.next.Cancel()
	delete(r.timers, id)
	return true
}

func (r *Registry) tick(t *timer) {
	// A replaced or cancelled timer must not act even if its tick was due.
	if r.timers[t.id] != t {
		return
	}

	t.remaining = max(0, t.remaining-1)
	r.rows.SetRemainingMinutes(t.id, ceilMinutes(t.remaining))

	if t.remaining > 0 {
		t.next = r.loop.After(r.interval, func() { r.tick(t) })
		return
	}

	r.rows.SetState(t.id, r.returned)
	// Removed before the callback so that it may start a new timer for the id.
	delete(r.timers, t.id)
	slog.Info("Timer expired", logfields.WorkOrderID(t.id), logfields.State(string(r.returned)))
	if r.onExpire != nil {
		r.onExpire(t.id)
	}
}

func ceilMinutes(seconds int) int {
	return (seconds + 59) / 60
}
