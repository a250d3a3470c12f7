// Package lifecycle applies user intents and timer expiries to the work
// order view and turns them into remote updates.
//
// Every mutation runs on the scheduler loop. Public methods are safe to call
// from any goroutine except the loop itself: they hand their work to the loop
// and wait for it. Remote listing happens on the caller's goroutine so the
// loop never blocks on I/O. Remote writes leave through the dispatcher and
// their results never flow back into the view.
package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/dispatcher"
	"git.home.luguber.info/inful/wodesk/internal/events"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
	"git.home.luguber.info/inful/wodesk/internal/loop"
	"git.home.luguber.info/inful/wodesk/internal/metrics"
	"git.home.luguber.info/inful/wodesk/internal/remote"
	"git.home.luguber.info/inful/wodesk/internal/timers"
	"git.home.luguber.info/inful/wodesk/internal/view"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// Log title tags that carry meaning.
const (
	TagProjectInfo = "P00."
	TagPM          = "N27."
	TagMWStart     = "N20."
	TagMWEnd       = "N21."
)

// Submitter accepts remote update jobs without blocking.
type Submitter interface {
	Submit(job dispatcher.Job) bool
}

// Options configures a Controller.
type Options struct {
	Active   workorder.State // defaults to IN_PROGRESS
	Returned workorder.State // defaults to QUEUED
	Interval time.Duration   // timer tick length, defaults to one second
	Recorder metrics.Recorder
}

// Controller is the single writer of the view.
type Controller struct {
	loop     *loop.Loop
	store    *view.Store
	timers   *timers.Registry
	remote   remote.Lister
	jobs     Submitter
	bus      *events.Bus
	recorder metrics.Recorder

	active   workorder.State
	returned workorder.State
}

// New wires a controller. The loop must be running before any method is called.
func New(l *loop.Loop, store *view.Store, lister remote.Lister, jobs Submitter, bus *events.Bus, opts Options) *Controller {
	if opts.Active == "" {
		opts.Active = workorder.StateInProgress
	}
	if opts.Returned == "" {
		opts.Returned = workorder.StateQueued
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if bus == nil {
		bus = events.NewBus()
	}
	c := &Controller{
		loop:     l,
		store:    store,
		remote:   lister,
		jobs:     jobs,
		bus:      bus,
		recorder: opts.Recorder,
		active:   opts.Active,
		returned: opts.Returned,
	}
	c.timers = timers.New(l, store, timers.Options{
		Returned: opts.Returned,
		Interval: opts.Interval,
		OnExpire: c.onExpire,
	})
	return c
}

// ActiveState is the state that may carry a countdown.
func (c *Controller) ActiveState() workorder.State { return c.active }

// ReturnedState is the state a work order takes when its countdown expires.
func (c *Controller) ReturnedState() workorder.State { return c.returned }

// Load replaces the view with records. Timers of work orders that are still
// present keep running; the others are cancelled. Countdown columns are
// taken from the running timers only.
func (c *Controller) Load(ctx context.Context, records []workorder.WorkOrder) (int, error) {
	rows := listingRows(records)
	var n int
	err := c.loop.Call(ctx, func() {
		n = c.store.Load(rows)
		c.adoptTimers()
	})
	return n, err
}

// ApplyState sets target on every present work order in ids and submits one
// remote update each. A countdown of minutes starts when target is the
// active state and minutes is positive; otherwise any countdown is
// cancelled. It returns the identifiers that were applied.
func (c *Controller) ApplyState(ctx context.Context, ids []string, target workorder.State, minutes int) ([]string, error) {
	if len(ids) == 0 {
		return nil, errors.ValidationError("no work orders selected").Build()
	}
	if strings.TrimSpace(string(target)) == "" {
		return nil, errors.ValidationError("target state is required").Build()
	}
	if minutes < 0 {
		return nil, errors.ValidationError("duration must not be negative").
			WithContext("minutes", minutes).Build()
	}

	return loop.Eval(ctx, c.loop, func() []string {
		applied := make([]string, 0, len(ids))
		for _, id := range ids {
			if !c.store.SetState(id, target) {
				continue
			}
			if target == c.active && minutes > 0 {
				c.timers.Start(id, minutes)
			} else {
				c.timers.Cancel(id)
				c.store.SetRemainingMinutes(id, 0)
			}
			c.jobs.Submit(dispatcher.UpdateState(id, target, dispatcher.ReasonManual))
			applied = append(applied, id)
		}
		c.recorder.SetActiveTimers(c.timers.Len())
		slog.Info("Applied state",
			logfields.State(string(target)),
			logfields.Minutes(minutes),
			logfields.Count(len(applied)))
		return applied
	})
}

// ApplyStateInput is ApplyState with the duration written as "mm" or
// "hh:mm". The duration is only read for the active state.
func (c *Controller) ApplyStateInput(ctx context.Context, ids []string, target workorder.State, duration string) ([]string, error) {
	minutes := 0
	if target == c.active {
		m, err := workorder.ParseMinutes(duration)
		if err != nil {
			return nil, err
		}
		minutes = m
	}
	return c.ApplyState(ctx, ids, target, minutes)
}

// ApplyLog records a note on every present work order in ids and submits one
// remote log entry each. Title tags also copy the note into the project info
// (P00.) or PM (N27.) columns; N20. and N21. render a maintenance-window
// e-mail from the note once.
func (c *Controller) ApplyLog(ctx context.Context, ids []string, title, note string) ([]string, error) {
	note = strings.TrimSpace(note)
	if title == "" && note == "" {
		return nil, errors.ValidationError("log title or note is required").Build()
	}
	if len(ids) == 0 {
		return nil, errors.ValidationError("no work orders selected").Build()
	}

	return loop.Eval(ctx, c.loop, func() []string {
		applied := make([]string, 0, len(ids))
		for _, id := range ids {
			ok := c.store.Mutate(id, func(w *workorder.WorkOrder) bool {
				w.LastUpdate = note
				if strings.Contains(title, TagProjectInfo) {
					w.ProjectInfo = note
				}
				if strings.Contains(title, TagPM) {
					w.PM = note
				}
				return true
			})
			if !ok {
				continue
			}
			c.jobs.Submit(dispatcher.AppendLog(id, title, note))
			applied = append(applied, id)
		}
		if len(applied) > 0 && (strings.Contains(title, TagMWStart) || strings.Contains(title, TagMWEnd)) {
			c.jobs.Submit(dispatcher.RenderMWEmail(applied[0], title, note))
		}
		slog.Info("Applied log", slog.String("title", title), logfields.Count(len(applied)))
		return applied
	})
}

// Select replaces the selection and returns the selected identifiers.
func (c *Controller) Select(ctx context.Context, ids []string) ([]string, error) {
	return loop.Eval(ctx, c.loop, func() []string { return c.store.Select(ids) })
}

// Search selects the rows matching query and returns their identifiers.
func (c *Controller) Search(ctx context.Context, query string) ([]string, error) {
	return loop.Eval(ctx, c.loop, func() []string { return c.store.Search(query) })
}

// ToggleSort advances the presentation sort of field.
func (c *Controller) ToggleSort(ctx context.Context, field workorder.Field) (view.SortState, error) {
	return loop.Eval(ctx, c.loop, func() view.SortState { return c.store.ToggleSort(field) })
}

// Rows returns copies of every work order in presentation order.
func (c *Controller) Rows() []workorder.WorkOrder { return c.store.GetAll() }

// Selected returns copies of the selected work orders.
func (c *Controller) Selected() []workorder.WorkOrder { return c.store.GetSelected() }

// SortState returns the active presentation sort.
func (c *Controller) SortState() view.SortState { return c.store.SortState() }

// Timer describes one running countdown.
type Timer struct {
	WorkOrderID string        `json:"work_order_id"`
	Remaining   time.Duration `json:"remaining"`
}

// Timers lists the running countdowns sorted by identifier.
func (c *Controller) Timers(ctx context.Context) ([]Timer, error) {
	return loop.Eval(ctx, c.loop, func() []Timer {
		ids := c.timers.IDs()
		out := make([]Timer, 0, len(ids))
		for _, id := range ids {
			left, _ := c.timers.Remaining(id)
			out = append(out, Timer{WorkOrderID: id, Remaining: left})
		}
		return out
	})
}

// Expirations subscribes to timer expiry notifications. The channel is
// closed by the returned function or when the bus closes. Notifications
// are dropped for a subscriber whose buffer is full.
func (c *Controller) Expirations(buffer int) (<-chan events.TimerExpired, func()) {
	return events.Subscribe[events.TimerExpired](c.bus, buffer)
}

// Bus returns the event bus the controller publishes on.
func (c *Controller) Bus() *events.Bus { return c.bus }

// onExpire runs on the loop after the registry returned the row.
func (c *Controller) onExpire(id string) {
	c.jobs.Submit(dispatcher.UpdateState(id, c.returned, dispatcher.ReasonExpiry))
	c.recorder.IncTimerExpired()
	c.recorder.SetActiveTimers(c.timers.Len())
	c.bus.TryPublish(events.TimerExpired{
		WorkOrderID: id,
		State:       c.returned,
		ExpiredAt:   c.loop.Now(),
	})
}

// adoptTimers reconciles running timers with a freshly loaded view: rows that
// survived keep their countdown and the active state, orphans are cancelled.
// Runs on the loop.
func (c *Controller) adoptTimers() (kept, orphaned int) {
	for _, id := range c.timers.IDs() {
		if !c.store.Has(id) {
			c.timers.Cancel(id)
			orphaned++
			continue
		}
		left, _ := c.timers.Remaining(id)
		c.store.SetState(id, c.active)
		c.store.SetRemainingMinutes(id, int((left+time.Minute-time.Second)/time.Minute))
		kept++
	}
	if orphaned > 0 {
		slog.Info("Cancelled orphaned timers", logfields.Count(orphaned))
	}
	c.recorder.SetActiveTimers(c.timers.Len())
	return kept, orphaned
}
