// Package responses defines API response types used by the wodesk HTTP handlers.
package responses

import (
	"time"

	"git.home.luguber.info/inful/wodesk/internal/dispatcher"
	"git.home.luguber.info/inful/wodesk/internal/journal"
	"git.home.luguber.info/inful/wodesk/internal/lifecycle"
	"git.home.luguber.info/inful/wodesk/internal/view"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// WorkOrdersResponse lists rows in presentation order.
type WorkOrdersResponse struct {
	Count     int                   `json:"count"`
	Sort      view.SortState        `json:"sort"`
	Rows      []workorder.WorkOrder `json:"rows"`
	Timestamp time.Time             `json:"timestamp"`
}

// SelectionResponse carries the identifiers a select or search matched.
type SelectionResponse struct {
	IDs []string `json:"ids"`
}

// ApplyResponse carries the identifiers a state or log change was applied to.
// Identifiers missing from the view are skipped silently and not listed.
type ApplyResponse struct {
	Applied []string `json:"applied"`
}

// SortResponse is the sort state after a toggle.
type SortResponse struct {
	Sort view.SortState `json:"sort"`
}

// ReconcileResponse reports a clear, soft clear or refresh.
type ReconcileResponse struct {
	lifecycle.Reconciliation
	Timestamp time.Time `json:"timestamp"`
}

// TimersResponse lists running countdowns.
type TimersResponse struct {
	Timers []TimerInfo `json:"timers"`
}

// TimerInfo is one countdown with its remaining time in seconds.
type TimerInfo struct {
	WorkOrderID      string  `json:"work_order_id"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// JournalResponse is the recorded history of one work order.
type JournalResponse struct {
	WorkOrderID string           `json:"work_order_id"`
	Summary     *journal.Summary `json:"summary,omitempty"`
	Records     []journal.Record `json:"records"`
}

// HealthResponse represents the health check API response.
type HealthResponse struct {
	Status     string           `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
	Version    string           `json:"version"`
	Uptime     float64          `json:"uptime"`
	Rows       int              `json:"rows"`
	Timers     int              `json:"timers"`
	Dispatcher dispatcher.Stats `json:"dispatcher"`
	LastSync   *time.Time       `json:"last_sync,omitempty"`
	Stale      bool             `json:"stale,omitempty"`
}
