package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
)

// Config is the wodesk configuration file.
type Config struct {
	Remote     RemoteConfig     `yaml:"remote"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Sync       SyncConfig       `yaml:"sync"`
	Journal    JournalConfig    `yaml:"journal"`
	Notify     NotifyConfig     `yaml:"notify,omitempty"`
	MWEmail    MWEmailConfig    `yaml:"mw_email"`
	HTTP       HTTPConfig       `yaml:"http"`
	Archive    ArchiveConfig    `yaml:"archive,omitempty"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// RemoteConfig points at the SCCD (Maximo OSLC) service desk.
type RemoteConfig struct {
	BaseURL            string            `yaml:"base_url"`
	Owner              string            `yaml:"owner"`
	Username           string            `yaml:"username"`
	Password           string            `yaml:"password"`
	Timeout            time.Duration     `yaml:"timeout"`
	InsecureSkipVerify bool              `yaml:"insecure_skip_verify,omitempty"`
	Statuses           []string          `yaml:"statuses,omitempty"`  // remote statuses listed by a load
	StateMap           map[string]string `yaml:"state_map,omitempty"` // remote status -> local state
}

// LifecycleConfig names the two states the timer lifecycle moves between.
type LifecycleConfig struct {
	ActiveState   string        `yaml:"active_state"`
	ReturnedState string        `yaml:"returned_state"`
	TickInterval  time.Duration `yaml:"tick_interval,omitempty"`
}

// DispatcherConfig sizes the remote update worker pool.
type DispatcherConfig struct {
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Retry           RetryConfig   `yaml:"retry"`
}

// RetryConfig configures retries of failed remote updates. MaxRetries 0 disables them.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	Backoff      string        `yaml:"backoff"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// SyncConfig controls the periodic reload from the remote system.
type SyncConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"` // 0 disables
}

// JournalConfig selects the dispatch journal backend.
type JournalConfig struct {
	Driver string `yaml:"driver"` // sqlite|postgres|none
	DSN    string `yaml:"dsn"`
}

// NotifyConfig forwards timer expiry notifications to NATS when NATSURL is set.
type NotifyConfig struct {
	NATSURL   string `yaml:"nats_url,omitempty"`
	Subject   string `yaml:"subject,omitempty"`
	JetStream bool   `yaml:"jetstream,omitempty"`
}

// MWEmailConfig controls maintenance-window e-mail rendering.
type MWEmailConfig struct {
	OutputDir string `yaml:"output_dir"`
	Template  string `yaml:"template,omitempty"` // optional html/template override
}

// HTTPConfig configures the local API listener. An empty Listen disables it.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// ArchiveConfig configures S3-compatible uploads of journal exports.
type ArchiveConfig struct {
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`

	// Static credentials; when empty the default AWS chain is used.
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty"`
}

// LoggingConfig configures the default slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, expands, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).Build()
	}
	return Parse(data)
}

// Parse decodes configuration bytes after environment expansion.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	example := Config{
		Remote: RemoteConfig{
			BaseURL:  "https://servicedesk.example.com/maximo/",
			Owner:    "${SCCD_OWNER}",
			Username: "${SCCD_USER}",
			Password: "${SCCD_PASSWORD}",
		},
		Journal: JournalConfig{Driver: JournalDriverSQLite, DSN: "wodesk-journal.db"},
		MWEmail: MWEmailConfig{OutputDir: "./mw-emails"},
		HTTP:    HTTPConfig{Listen: "127.0.0.1:8087"},
	}
	ApplyDefaults(&example)

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}
