package config

import "time"

const (
	JournalDriverSQLite   = "sqlite"
	JournalDriverPostgres = "postgres"
	JournalDriverNone     = "none"
)

// DefaultStateMap maps SCCD statuses to the local lifecycle states.
func DefaultStateMap() map[string]string {
	return map[string]string{
		"INPRG":       "IN_PROGRESS",
		"WORKPENDING": "PENDING",
		"QUEUED":      "QUEUED",
	}
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	applyRemoteDefaults(&cfg.Remote)

	if cfg.Lifecycle.ActiveState == "" {
		cfg.Lifecycle.ActiveState = "IN_PROGRESS"
	}
	if cfg.Lifecycle.ReturnedState == "" {
		cfg.Lifecycle.ReturnedState = "QUEUED"
	}
	if cfg.Lifecycle.TickInterval <= 0 {
		cfg.Lifecycle.TickInterval = time.Second
	}

	if cfg.Dispatcher.Workers <= 0 {
		cfg.Dispatcher.Workers = 6
	}
	if cfg.Dispatcher.QueueSize <= 0 {
		cfg.Dispatcher.QueueSize = 1024
	}
	if cfg.Dispatcher.ShutdownTimeout <= 0 {
		cfg.Dispatcher.ShutdownTimeout = 30 * time.Second
	}
	r := &cfg.Dispatcher.Retry
	if r.MaxRetries < 0 {
		r.MaxRetries = 0
	}
	if NormalizeRetryBackoff(r.Backoff) == "" {
		r.Backoff = string(RetryBackoffLinear)
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = 30 * time.Second
	}

	if cfg.Sync.RefreshInterval < 0 {
		cfg.Sync.RefreshInterval = 0
	}

	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = JournalDriverSQLite
	} else if d, ok := journalDrivers.Lookup(cfg.Journal.Driver); ok {
		cfg.Journal.Driver = d
	}
	if cfg.Journal.Driver == JournalDriverSQLite && cfg.Journal.DSN == "" {
		cfg.Journal.DSN = "wodesk-journal.db"
	}

	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "wodesk.timers.expired"
	}
	if cfg.MWEmail.OutputDir == "" {
		cfg.MWEmail.OutputDir = "./mw-emails"
	}

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
}

func applyRemoteDefaults(r *RemoteConfig) {
	if r.Timeout <= 0 {
		r.Timeout = 30 * time.Second
	}
	if len(r.StateMap) == 0 {
		r.StateMap = DefaultStateMap()
	}
	if len(r.Statuses) == 0 {
		r.Statuses = []string{"WORKPENDING", "INPRG", "QUEUED"}
	}
}
