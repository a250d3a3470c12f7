package httpserver

import (
	"net/http"

	"git.home.luguber.info/inful/wodesk/internal/journal"
	"git.home.luguber.info/inful/wodesk/internal/server/handlers"
)

// Runtime is what the API needs from the daemon. It matches the interfaces
// declared in internal/server/handlers.
type Runtime interface {
	handlers.Engine
	handlers.HealthSource
}

// Options configures optional endpoints.
type Options struct {
	// Journal backs /api/workorders/{id}/journal. The route is absent when nil.
	Journal handlers.JournalReader
	History *journal.History

	// PrometheusHandler serves /metrics when set.
	PrometheusHandler http.Handler
}
