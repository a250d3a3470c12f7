package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/dispatcher"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/server/responses"
	"git.home.luguber.info/inful/wodesk/internal/version"
)

// HealthSource exposes the runtime figures reported by /healthz.
type HealthSource interface {
	StartTime() time.Time
	RowCount() int
	TimerCount() int
	DispatcherStats() dispatcher.Stats
	// LastSync is the time of the last successful remote listing; zero if none.
	LastSync() time.Time
	// Stale reports whether the last remote listing failed.
	Stale() bool
}

// MonitoringHandlers contains monitoring-related HTTP handlers.
type MonitoringHandlers struct {
	source       HealthSource
	errorAdapter *errors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates a new monitoring handlers instance.
func NewMonitoringHandlers(source HealthSource) *MonitoringHandlers {
	return &MonitoringHandlers{
		source:       source,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleHealthCheck serves GET /healthz. A stale view degrades the status
// but still answers 200.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := &responses.HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Version:    version.Version,
		Uptime:     time.Since(h.source.StartTime()).Seconds(),
		Rows:       h.source.RowCount(),
		Timers:     h.source.TimerCount(),
		Dispatcher: h.source.DispatcherStats(),
		Stale:      h.source.Stale(),
	}
	if last := h.source.LastSync(); !last.IsZero() {
		health.LastSync = &last
	}
	if health.Stale {
		health.Status = "degraded"
	}
	respond(h.errorAdapter, w, r, http.StatusOK, health)
}
