// Package daemon composes the lifecycle engine with the remote client, the
// dispatcher, the journal and the optional outer surfaces, and runs them as
// one long-lived service.
package daemon

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/wodesk/internal/archive"
	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/dispatcher"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/journal"
	"git.home.luguber.info/inful/wodesk/internal/lifecycle"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
	"git.home.luguber.info/inful/wodesk/internal/loop"
	"git.home.luguber.info/inful/wodesk/internal/metrics"
	"git.home.luguber.info/inful/wodesk/internal/mwemail"
	"git.home.luguber.info/inful/wodesk/internal/notify"
	"git.home.luguber.info/inful/wodesk/internal/remote"
	"git.home.luguber.info/inful/wodesk/internal/sccd"
	"git.home.luguber.info/inful/wodesk/internal/server/httpserver"
	"git.home.luguber.info/inful/wodesk/internal/version"
	"git.home.luguber.info/inful/wodesk/internal/view"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

const (
	refreshTask     = "refresh"
	archiveTask     = "journal-archive"
	archiveInterval = 24 * time.Hour

	loopBuffer       = 256
	subscriberBuffer = 64
	healthTimeout    = time.Second
)

// Options replaces collaborators the daemon would otherwise build from its
// configuration.
type Options struct {
	// Remote replaces the SCCD client.
	Remote remote.System
	// Publisher replaces the NATS publisher. It is not closed by the daemon.
	Publisher notify.Publisher
	// Clock drives the loop and the scheduler. Defaults to the real clock.
	Clock clockwork.Clock
	// LevelVar, when set, follows logging.level across config reloads.
	LevelVar *slog.LevelVar
}

// Daemon is the composition root. It embeds the lifecycle controller, so the
// daemon itself is the engine the HTTP API drives.
type Daemon struct {
	*lifecycle.Controller

	cfg            *config.Config
	configFilePath string
	status         atomic.Value // Status
	startTime      atomic.Value // time.Time; read by health checks without d.mu
	stopChan       chan struct{}
	stopped        bool
	mu             sync.RWMutex

	clock      clockwork.Clock
	level      *slog.LevelVar
	loop       *loop.Loop
	store      *view.Store
	dispatcher *dispatcher.Dispatcher
	recorder   metrics.Recorder
	promHTTP   http.Handler

	journal journal.Store
	history *journal.History
	sink    *journal.Sink

	publisher    notify.Publisher
	ownPublisher *notify.NATSPublisher
	forwarder    *notify.Forwarder

	archiver      *archive.Uploader
	archiveMu     sync.Mutex
	archivedUntil time.Time

	scheduler     *Scheduler
	configWatcher *ConfigWatcher
	httpServer    *httpserver.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastSync atomic.Int64 // unix nanoseconds of the last successful listing
	stale    atomic.Bool
}

// New builds a daemon from cfg. configPath enables the config file watcher
// when non-empty. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, configPath string, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.ConfigError("configuration is required").Build()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	d := &Daemon{
		cfg:            cfg,
		configFilePath: configPath,
		clock:          clock,
		level:          opts.LevelVar,
	}
	d.status.Store(StatusStopped)

	rem := opts.Remote
	if rem == nil {
		client, err := sccd.New(cfg.Remote, nil)
		if err != nil {
			return nil, err
		}
		rem = client
	}

	store, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		return nil, err
	}
	d.journal = store

	built := false
	defer func() {
		if !built {
			d.release()
		}
	}()

	renderer, err := mwemail.New(cfg.MWEmail)
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	d.recorder = metrics.NewPrometheusRecorder(reg)
	d.promHTTP = metrics.HTTPHandler(reg)

	d.history = journal.NewHistory(store)
	d.sink = journal.NewSink(store)
	d.sink.OnRecord = d.history.Apply

	d.dispatcher = dispatcher.New(cfg.Dispatcher.QueueSize, cfg.Dispatcher.Workers,
		dispatcher.RemoteExecutor{Remote: rem, Mail: renderer})
	d.dispatcher.ConfigureRetry(cfg.Dispatcher.Retry)
	d.dispatcher.SetRecorder(d.recorder)
	d.dispatcher.AddSink(d.sink)

	d.loop = loop.New(clock, loopBuffer)
	d.store = view.New()
	d.Controller = lifecycle.New(d.loop, d.store, rem, d.dispatcher, nil, lifecycle.Options{
		Active:   workorder.State(cfg.Lifecycle.ActiveState),
		Returned: workorder.State(cfg.Lifecycle.ReturnedState),
		Interval: cfg.Lifecycle.TickInterval,
		Recorder: d.recorder,
	})

	switch {
	case opts.Publisher != nil:
		d.publisher = opts.Publisher
	case cfg.Notify.NATSURL != "":
		pub, err := notify.NewNATSPublisher(cfg.Notify)
		if err != nil {
			slog.Warn("Expiry notifications stay in process; NATS is unavailable", logfields.Error(err))
		} else {
			d.publisher = pub
			d.ownPublisher = pub
		}
	}
	if d.publisher != nil {
		d.forwarder = notify.NewForwarder(d.publisher, cfg.Notify.Subject)
	}

	if cfg.Archive.Bucket != "" {
		up, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			return nil, err
		}
		d.archiver = up
	}

	d.scheduler, err = NewScheduler(clock)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to create scheduler").Build()
	}

	if configPath != "" {
		w, err := NewConfigWatcher(configPath, d)
		if err != nil {
			slog.Warn("Config file changes will not be picked up", logfields.Path(configPath), logfields.Error(err))
		} else {
			d.configWatcher = w
		}
	}

	if cfg.HTTP.Listen != "" {
		d.httpServer = httpserver.New(cfg.HTTP, d, httpserver.Options{
			Journal:           store,
			History:           d.history,
			PrometheusHandler: d.promHTTP,
		})
	}

	built = true
	return d, nil
}

// Start brings every component up and performs the initial load. It
// returns once the daemon is running; use Run to block until shutdown.
// A stopped daemon cannot be started again.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || d.GetStatus() != StatusStopped {
		return errors.DaemonError("daemon cannot be started").
			WithContext("status", string(d.GetStatus())).Build()
	}

	d.status.Store(StatusStarting)
	d.startTime.Store(d.clock.Now())
	d.stopChan = make(chan struct{})
	slog.Info("Starting wodesk daemon", slog.String("version", version.Version))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	fail := func(err error) error {
		d.status.Store(StatusError)
		d.teardown(context.Background())
		d.stopped = true
		return err
	}

	d.background(func() {
		if err := d.loop.Run(runCtx); err != nil {
			slog.Error("Scheduler loop failed", logfields.Error(err))
		}
	})
	select {
	case <-d.loop.Ready():
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	d.dispatcher.Start(runCtx)

	if err := d.history.Rebuild(ctx); err != nil {
		slog.Warn("Failed to rebuild journal history", logfields.Error(err))
	}
	d.background(func() { d.sink.Follow(runCtx, d.Bus(), subscriberBuffer) })
	if d.forwarder != nil {
		d.background(func() { d.forwarder.Run(runCtx, d.Bus(), subscriberBuffer) })
	}

	if _, err := d.Refresh(ctx); err != nil {
		return fail(err)
	}

	if err := d.scheduler.Schedule(refreshTask, d.cfg.Sync.RefreshInterval, d.scheduledRefresh); err != nil {
		return fail(errors.WrapError(err, errors.CategoryDaemon, "failed to schedule refresh").Build())
	}
	if d.archiver != nil {
		d.archivedUntil = d.StartTime()
		if err := d.scheduler.Schedule(archiveTask, archiveInterval, d.scheduledArchive); err != nil {
			return fail(errors.WrapError(err, errors.CategoryDaemon, "failed to schedule journal archive").Build())
		}
	}
	d.scheduler.Start()

	if d.httpServer != nil {
		if err := d.httpServer.Start(ctx); err != nil {
			return fail(err)
		}
	}

	if d.configWatcher != nil {
		if err := d.configWatcher.Start(runCtx); err != nil {
			slog.Error("Failed to start config watcher", logfields.Error(err))
		}
	}

	d.status.Store(StatusRunning)
	slog.Info("wodesk daemon started",
		logfields.Count(d.store.Len()),
		slog.Duration("refresh_interval", d.cfg.Sync.RefreshInterval),
		slog.String("journal", d.cfg.Journal.Driver),
		slog.Bool("http", d.httpServer != nil),
		slog.Bool("notify", d.forwarder != nil),
		slog.Bool("archive", d.archiver != nil))
	return nil
}

// Run starts the daemon, blocks until ctx ends and then stops it within the
// configured shutdown timeout.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon")

	stopCtx, cancel := context.WithTimeout(context.Background(), d.Config().Dispatcher.ShutdownTimeout)
	defer cancel()
	return d.Stop(stopCtx)
}

// Stop gracefully shuts down the daemon. Queued remote updates are drained
// until ctx ends.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	currentStatus := d.GetStatus()
	if currentStatus == StatusStopped || currentStatus == StatusStopping {
		return nil
	}

	d.status.Store(StatusStopping)
	slog.Info("Stopping wodesk daemon")

	err := d.teardown(ctx)
	d.stopped = true
	d.status.Store(StatusStopped)

	slog.Info("wodesk daemon stopped", slog.Duration("uptime", d.clock.Since(d.StartTime())))
	return err
}

// teardown stops components in reverse start order. It returns the
// dispatcher's drain error, if any.
func (d *Daemon) teardown(ctx context.Context) error {
	if d.stopChan != nil {
		select {
		case <-d.stopChan:
		default:
			close(d.stopChan)
		}
	}

	if d.configWatcher != nil {
		if err := d.configWatcher.Stop(); err != nil {
			slog.Error("Failed to stop config watcher", logfields.Error(err))
		}
	}
	if d.httpServer != nil {
		if err := d.httpServer.Stop(ctx); err != nil {
			slog.Error("Failed to stop HTTP server", logfields.Error(err))
		}
	}
	if err := d.scheduler.Stop(); err != nil {
		slog.Error("Failed to stop scheduler", logfields.Error(err))
	}

	drainErr := d.dispatcher.Stop(ctx)
	if drainErr != nil {
		drainErr = errors.WrapError(drainErr, errors.CategoryDispatcher, "remote updates did not drain before shutdown").Build()
	}

	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.Bus().Close()
	d.release()
	return drainErr
}

// release closes the resources New opened.
func (d *Daemon) release() {
	if d.ownPublisher != nil {
		if err := d.ownPublisher.Close(); err != nil {
			slog.Warn("Failed to close NATS connection", logfields.Error(err))
		}
	}
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			slog.Error("Failed to close journal", logfields.Error(err))
		}
	}
}

func (d *Daemon) background(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// GetStatus returns the current daemon status
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// History returns the journal projection.
func (d *Daemon) History() *journal.History { return d.history }

// HTTPAddr returns the bound API address, or nil when the API is disabled
// or not started.
func (d *Daemon) HTTPAddr() net.Addr {
	if d.httpServer == nil {
		return nil
	}
	return d.httpServer.Addr()
}

// Clear shadows the controller's Clear to track listing health.
func (d *Daemon) Clear(ctx context.Context) (lifecycle.Reconciliation, error) {
	return d.track(d.Controller.Clear(ctx))
}

// SoftClear shadows the controller's SoftClear to track listing health.
func (d *Daemon) SoftClear(ctx context.Context) (lifecycle.Reconciliation, error) {
	return d.track(d.Controller.SoftClear(ctx))
}

// Refresh shadows the controller's Refresh to track listing health.
func (d *Daemon) Refresh(ctx context.Context) (lifecycle.Reconciliation, error) {
	return d.track(d.Controller.Refresh(ctx))
}

func (d *Daemon) track(rec lifecycle.Reconciliation, err error) (lifecycle.Reconciliation, error) {
	switch {
	case rec.Stale:
		d.stale.Store(true)
	case err == nil:
		d.stale.Store(false)
		d.lastSync.Store(d.clock.Now().UnixNano())
	}
	return rec, err
}

func (d *Daemon) scheduledRefresh(ctx context.Context) {
	ctx, cancel := d.stopAwareContext(ctx)
	defer cancel()
	if _, err := d.Refresh(ctx); err != nil {
		slog.Debug("Scheduled refresh interrupted", logfields.Error(err))
	}
}

func (d *Daemon) scheduledArchive(ctx context.Context) {
	ctx, cancel := d.stopAwareContext(ctx)
	defer cancel()

	d.archiveMu.Lock()
	defer d.archiveMu.Unlock()

	end := d.clock.Now()
	if _, _, err := d.archiver.ArchiveJournal(ctx, d.journal, d.archivedUntil, end); err != nil {
		slog.Error("Journal archive failed", logfields.Error(err))
		return
	}
	// Entries are stored with millisecond precision and ranges are inclusive.
	d.archivedUntil = end.Add(time.Millisecond)
}

// ApplyConfig applies the parts of next that can change at runtime: the
// refresh interval and the log level. Other changed sections are logged as
// requiring a restart and take effect only then.
func (d *Daemon) ApplyConfig(next *config.Config) error {
	if next == nil {
		return errors.ConfigError("configuration is required").Build()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.cfg

	if next.Sync.RefreshInterval != prev.Sync.RefreshInterval {
		if err := d.scheduler.Schedule(refreshTask, next.Sync.RefreshInterval, d.scheduledRefresh); err != nil {
			return errors.WrapError(err, errors.CategoryDaemon, "failed to reschedule refresh").Build()
		}
	}
	if next.Logging.Level != prev.Logging.Level && d.level != nil {
		d.level.Set(next.Logging.Level.SlogLevel())
		slog.Info("Log level changed", slog.String("level", string(next.Logging.Level)))
	}
	for _, section := range restartSections(prev, next) {
		slog.Warn("Configuration change requires restart", slog.String("section", section))
	}

	// Restart-only sections keep their running values.
	applied := *prev
	applied.Sync = next.Sync
	applied.Logging = next.Logging
	d.cfg = &applied
	return nil
}

func restartSections(prev, next *config.Config) []string {
	sections := []struct {
		name       string
		prev, next any
	}{
		{"remote", prev.Remote, next.Remote},
		{"lifecycle", prev.Lifecycle, next.Lifecycle},
		{"dispatcher", prev.Dispatcher, next.Dispatcher},
		{"journal", prev.Journal, next.Journal},
		{"notify", prev.Notify, next.Notify},
		{"mw_email", prev.MWEmail, next.MWEmail},
		{"http", prev.HTTP, next.HTTP},
		{"archive", prev.Archive, next.Archive},
	}
	var changed []string
	for _, s := range sections {
		if !reflect.DeepEqual(s.prev, s.next) {
			changed = append(changed, s.name)
		}
	}
	return changed
}

// StartTime implements handlers.HealthSource.
func (d *Daemon) StartTime() time.Time {
	t, _ := d.startTime.Load().(time.Time)
	return t
}

func (d *Daemon) RowCount() int { return d.store.Len() }

// TimerCount asks the loop for the number of running countdowns. It reports
// zero when the loop does not answer in time.
func (d *Daemon) TimerCount() int {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()
	timers, err := d.Timers(ctx)
	if err != nil {
		return 0
	}
	return len(timers)
}

func (d *Daemon) DispatcherStats() dispatcher.Stats { return d.dispatcher.Stats() }

func (d *Daemon) LastSync() time.Time {
	n := d.lastSync.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (d *Daemon) Stale() bool { return d.stale.Load() }
