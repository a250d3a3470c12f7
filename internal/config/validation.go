package config

import (
	"net/url"

	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/foundation/normalization"
)

var journalDrivers = normalization.NewNormalizer(map[string]string{
	JournalDriverSQLite:   JournalDriverSQLite,
	"sqlite3":             JournalDriverSQLite,
	JournalDriverPostgres: JournalDriverPostgres,
	"pgx":                 JournalDriverPostgres,
	JournalDriverNone:     JournalDriverNone,
}, "")

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	if err := validateRemote(&cfg.Remote); err != nil {
		return err
	}
	if cfg.Lifecycle.ActiveState == cfg.Lifecycle.ReturnedState {
		return errors.ConfigError("lifecycle.active_state and lifecycle.returned_state must differ").
			WithContext("state", cfg.Lifecycle.ActiveState).Build()
	}
	driver, err := journalDrivers.NormalizeWithError(cfg.Journal.Driver)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "unsupported journal driver").
			WithContext("driver", cfg.Journal.Driver).Build()
	}
	cfg.Journal.Driver = driver
	if driver != JournalDriverNone && cfg.Journal.DSN == "" {
		return errors.ConfigError("journal.dsn is required").
			WithContext("driver", driver).Build()
	}
	if cfg.Archive.Bucket != "" && cfg.Archive.Region == "" && cfg.Archive.Endpoint == "" {
		return errors.ConfigError("archive.region or archive.endpoint is required with archive.bucket").Build()
	}
	if (cfg.Archive.AccessKeyID == "") != (cfg.Archive.SecretAccessKey == "") {
		return errors.ConfigError("archive.access_key_id and archive.secret_access_key must be set together").Build()
	}
	return nil
}

func validateRemote(r *RemoteConfig) error {
	if r.BaseURL == "" {
		return errors.ConfigError("remote.base_url is required").Build()
	}
	u, err := url.Parse(r.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.ConfigError("remote.base_url must be an absolute URL").
			WithContext("base_url", r.BaseURL).Build()
	}
	if r.Owner == "" {
		return errors.ConfigError("remote.owner is required").Build()
	}
	for _, s := range r.Statuses {
		if _, ok := r.StateMap[s]; !ok {
			return errors.ConfigError("remote.statuses entry has no state_map mapping").
				WithContext("status", s).Build()
		}
	}
	return nil
}
