// Package httpserver wires the wodesk JSON API onto a single listener.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/wodesk/internal/config"
	derrors "git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/server/handlers"
	smw "git.home.luguber.info/inful/wodesk/internal/server/middleware"
)

const readHeaderTimeout = 10 * time.Second

// Server manages the API listener.
type Server struct {
	cfg          config.HTTPConfig
	opts         Options
	errorAdapter *derrors.HTTPErrorAdapter

	workOrderHandlers  *handlers.WorkOrderHandlers
	journalHandlers    *handlers.JournalHandlers
	monitoringHandlers *handlers.MonitoringHandlers

	mchain  func(http.Handler) http.Handler
	handler http.Handler
	srv     *http.Server
	addr    net.Addr
}

// New constructs the server and its routes.
func New(cfg config.HTTPConfig, runtime Runtime, opts Options) *Server {
	s := &Server{
		cfg:          cfg,
		opts:         opts,
		errorAdapter: derrors.NewHTTPErrorAdapter(slog.Default()),
	}
	s.workOrderHandlers = handlers.NewWorkOrderHandlers(runtime)
	s.monitoringHandlers = handlers.NewMonitoringHandlers(runtime)
	if opts.Journal != nil {
		s.journalHandlers = handlers.NewJournalHandlers(opts.Journal, opts.History)
	}
	s.mchain = smw.Chain(slog.Default(), s.errorAdapter)
	s.handler = s.mchain(s.routes())
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	wo := s.workOrderHandlers
	mux.HandleFunc("GET /api/workorders", wo.HandleList)
	mux.HandleFunc("POST /api/workorders/select", wo.HandleSelect)
	mux.HandleFunc("POST /api/workorders/search", wo.HandleSearch)
	mux.HandleFunc("POST /api/workorders/state", wo.HandleState)
	mux.HandleFunc("POST /api/workorders/log", wo.HandleLog)
	mux.HandleFunc("POST /api/workorders/sort/{field}", wo.HandleSort)
	mux.HandleFunc("GET /api/timers", wo.HandleTimers)
	mux.HandleFunc("POST /api/clear", wo.HandleClear)
	mux.HandleFunc("POST /api/soft-clear", wo.HandleSoftClear)
	mux.HandleFunc("POST /api/refresh", wo.HandleRefresh)
	if s.journalHandlers != nil {
		mux.HandleFunc("GET /api/workorders/{id}/journal", s.journalHandlers.HandleWorkOrderJournal)
	}
	mux.HandleFunc("GET /healthz", s.monitoringHandlers.HandleHealthCheck)
	if s.opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", s.opts.PrometheusHandler)
	}
	return mux
}

// Handler returns the routed handler including middleware.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() net.Addr { return s.addr }

// Start binds the listener and serves in the background. Binding happens
// synchronously so an occupied port fails fast.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Listen == "" {
		return derrors.ConfigError("http.listen is empty").Build()
	}
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryDaemon, "http listen failed").
			WithContext("listen", s.cfg.Listen).Build()
	}
	s.addr = ln.Addr()
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	slog.Info("HTTP server started", slog.String("addr", s.addr.String()))
	return nil
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}
