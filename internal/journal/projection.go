package journal

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/dispatcher"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
)

// Summary is the read model of one work order's journal.
type Summary struct {
	WorkOrderID  string    `json:"work_order_id"`
	Jobs         int       `json:"jobs"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	Dropped      int       `json:"dropped"`
	Expiries     int       `json:"expiries"`
	LastKind     string    `json:"last_kind,omitempty"`
	LastOutcome  string    `json:"last_outcome,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	LastActivity time.Time `json:"last_activity"`
}

// History keeps per-work-order summaries, rebuilt from the store at startup
// and updated live through Apply.
type History struct {
	mu       sync.RWMutex
	store    Store
	byID     map[string]*Summary
	lastSync time.Time
}

// NewHistory creates a projection backed by store.
func NewHistory(store Store) *History {
	return &History{store: store, byID: make(map[string]*Summary)}
}

// Rebuild reconstructs the projection from every entry in the store.
func (h *History) Rebuild(ctx context.Context) error {
	entries, err := h.store.Range(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.byID = make(map[string]*Summary)
	for _, e := range entries {
		h.applyLocked(e)
	}
	h.lastSync = time.Now()
	return nil
}

// Apply folds one entry into the projection.
func (h *History) Apply(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applyLocked(e)
}

func (h *History) applyLocked(e Entry) {
	if e.WorkOrderID == "" {
		return
	}
	rec, err := Decode(e)
	if err != nil {
		slog.Warn("Skipping malformed journal entry", logfields.WorkOrderID(e.WorkOrderID), logfields.Error(err))
		return
	}

	s, ok := h.byID[e.WorkOrderID]
	if !ok {
		s = &Summary{WorkOrderID: e.WorkOrderID}
		h.byID[e.WorkOrderID] = s
	}
	if e.Timestamp.After(s.LastActivity) {
		s.LastActivity = e.Timestamp
	}

	switch {
	case rec.Job != nil:
		s.Jobs++
		switch dispatcher.Outcome(rec.Job.Outcome) {
		case dispatcher.OutcomeSucceeded:
			s.Succeeded++
		case dispatcher.OutcomeDropped:
			s.Dropped++
		default:
			s.Failed++
		}
		s.LastKind = rec.Job.Kind
		s.LastOutcome = rec.Job.Outcome
		s.LastError = rec.Job.Error
	case rec.Expiry != nil:
		s.Expiries++
	}
}

// Get returns a copy of the summary for id.
func (h *History) Get(id string) (Summary, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.byID[id]
	if !ok {
		return Summary{}, false
	}
	return *s, true
}

// All returns every summary, most recently active first.
func (h *History) All() []Summary {
	h.mu.RLock()
	out := make([]Summary, 0, len(h.byID))
	for _, s := range h.byID {
		out = append(out, *s)
	}
	h.mu.RUnlock()

	slices.SortFunc(out, func(a, b Summary) int {
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(a.WorkOrderID, b.WorkOrderID)
	})
	return out
}

// LastSync reports when Rebuild last completed.
func (h *History) LastSync() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastSync
}
