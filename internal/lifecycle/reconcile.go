package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/dispatcher"
	"git.home.luguber.info/inful/wodesk/internal/events"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// Cause names what replaced the view.
type Cause string

const (
	CauseClear     Cause = "clear"
	CauseSoftClear Cause = "soft_clear"
	CauseRefresh   Cause = "refresh"
)

// Reconciliation summarizes a reload from the remote system.
type Reconciliation struct {
	Cause     Cause `json:"cause"`
	Loaded    int   `json:"loaded"`
	Corrected int   `json:"corrected"` // rows forced back to the returned state
	Kept      int   `json:"kept"`      // timers that survived a refresh
	Orphaned  int   `json:"orphaned"`  // timers cancelled because their row vanished
	// Stale is set when the remote listing failed and the view was left as it was.
	Stale bool `json:"stale"`
}

// Clear cancels every timer and reloads the view from the remote system.
// Rows the remote system reports in the active state are forced to the
// returned state locally and one corrective remote update is submitted for
// each. A failed listing is logged and leaves the rows unchanged, though
// the timers stay cancelled.
func (c *Controller) Clear(ctx context.Context) (Reconciliation, error) {
	return c.reset(ctx, CauseClear, true)
}

// SoftClear is Clear without the forced state correction.
func (c *Controller) SoftClear(ctx context.Context) (Reconciliation, error) {
	return c.reset(ctx, CauseSoftClear, false)
}

func (c *Controller) reset(ctx context.Context, cause Cause, correct bool) (Reconciliation, error) {
	rec := Reconciliation{Cause: cause}
	if err := c.loop.Call(ctx, c.cancelAll); err != nil {
		return rec, err
	}

	records, ok := c.list(ctx, cause)
	if !ok {
		rec.Stale = true
		return rec, ctx.Err()
	}

	rows := listingRows(records)
	err := c.loop.Call(ctx, func() {
		// Timers started while the listing was in flight are cancelled too.
		c.cancelAll()
		for i := range rows {
			if correct && rows[i].State == c.active {
				rows[i].State = c.returned
				c.jobs.Submit(dispatcher.UpdateState(rows[i].ID, c.returned, dispatcher.ReasonReconcile))
				rec.Corrected++
			}
		}
		rec.Loaded = c.store.Load(rows)
		c.announce(rec)
	})
	return rec, err
}

// Refresh reloads the view from the remote system without touching timers
// of rows that are still present. Rows that survive keep their local state,
// so a change whose remote update failed or is still queued stays visible;
// only Clear and SoftClear adopt the remote state. Every other column comes
// from the listing. Sort and selection survive. A failed listing is logged
// and leaves the view unchanged.
func (c *Controller) Refresh(ctx context.Context) (Reconciliation, error) {
	rec := Reconciliation{Cause: CauseRefresh}
	start := time.Now()

	records, ok := c.list(ctx, CauseRefresh)
	c.recorder.ObserveRefresh(time.Since(start), ok)
	if !ok {
		rec.Stale = true
		return rec, ctx.Err()
	}

	rows := listingRows(records)
	err := c.loop.Call(ctx, func() {
		for i := range rows {
			if cur, ok := c.store.Get(rows[i].ID); ok {
				rows[i].State = cur.State
			}
		}
		rec.Loaded = c.store.Reload(rows)
		rec.Kept, rec.Orphaned = c.adoptTimers()
		c.announce(rec)
	})
	return rec, err
}

// list fetches the remote truth on the caller's goroutine.
func (c *Controller) list(ctx context.Context, cause Cause) ([]workorder.WorkOrder, bool) {
	records, err := c.remote.ListWorkOrders(ctx)
	if err != nil {
		slog.Warn("Listing work orders failed; view left unchanged",
			logfields.Reason(string(cause)), logfields.Error(err))
		return nil, false
	}
	return records, true
}

// listingRows returns the rows a listing loads: records without an identifier
// are dropped, the first record wins for a duplicate identifier and the
// countdown column is zeroed. records is not modified.
func listingRows(records []workorder.WorkOrder) []workorder.WorkOrder {
	rows := make([]workorder.WorkOrder, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		r.RemainingMinutes = 0
		rows = append(rows, r)
	}
	return rows
}

func (c *Controller) cancelAll() {
	c.timers.CancelAll()
	c.recorder.SetActiveTimers(0)
}

func (c *Controller) announce(rec Reconciliation) {
	slog.Info("Work orders reloaded",
		logfields.Reason(string(rec.Cause)),
		logfields.Count(rec.Loaded),
		slog.Int("corrected", rec.Corrected),
		slog.Int("orphaned", rec.Orphaned))
	c.bus.TryPublish(events.WorkOrdersLoaded{
		Count:     rec.Loaded,
		Cause:     string(rec.Cause),
		Corrected: rec.Corrected,
		Orphaned:  rec.Orphaned,
		LoadedAt:  time.Now(),
	})
}
