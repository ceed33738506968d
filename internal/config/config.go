// Package config provides FinTrack runtime configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML or
// TOML file, and FINTRACK_* environment overrides.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// AppName is the directory name used under the XDG base directories.
const AppName = "fintrack"

// Storage backends.
const (
	BackendFile     = "file"
	BackendSnapshot = "snapshot"
)

// SQL drivers.
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// Client variants. They only differ in their default settings.
const (
	VariantWeb    = "web"
	VariantMobile = "mobile"
)

// RuntimeConfig holds all runtime configuration values.
type RuntimeConfig struct {
	Variant   string          `yaml:"variant" toml:"variant"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler" toml:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify" toml:"notify"`
	Daemon    DaemonConfig    `yaml:"daemon" toml:"daemon"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// StorageConfig selects the schema store backend and its paths.
type StorageConfig struct {
	// Backend is "file" (durable per statement) or "snapshot" (in-memory,
	// exported to the key-value store on flush).
	Backend string `yaml:"backend" toml:"backend"`

	// Driver is the database/sql driver name. "sqlite3" requires a cgo build.
	Driver string `yaml:"driver" toml:"driver"`

	// Path is the SQLite database file used by the file backend.
	Path string `yaml:"path" toml:"path"`

	// KVPath is the badger directory holding legacy flat storage and snapshots.
	KVPath string `yaml:"kv_path" toml:"kv_path"`
}

// SchedulerConfig holds reminder scheduler configuration.
type SchedulerConfig struct {
	// CatchUpMissed delivers a reminder once at boot if its persisted fire
	// time passed while the process was not running.
	CatchUpMissed bool `yaml:"catch_up_missed" toml:"catch_up_missed"`
}

// NotifyConfig configures reminder delivery.
type NotifyConfig struct {
	Console  bool            `yaml:"console" toml:"console"`
	Webhooks []WebhookConfig `yaml:"webhooks" toml:"webhooks"`
	HTTP     HTTPConfig      `yaml:"http" toml:"http"`
}

// WebhookConfig is one outgoing webhook target.
type WebhookConfig struct {
	Name string `yaml:"name" toml:"name"`
	Type string `yaml:"type" toml:"type"` // discord, slack, teams, generic
	URL  string `yaml:"url" toml:"url"`
}

// HTTPConfig holds HTTP client configuration.
type HTTPConfig struct {
	Timeout     time.Duration   `yaml:"-" toml:"-"`
	MaxRetries  int             `yaml:"max_retries" toml:"max_retries"`
	RetryDelays []time.Duration `yaml:"-" toml:"-"`

	// Raw string values for file decoding.
	TimeoutRaw     string   `yaml:"timeout" toml:"timeout"`
	RetryDelaysRaw []string `yaml:"retry_delays" toml:"retry_delays"`
}

// DaemonConfig holds foreground reminder daemon configuration.
type DaemonConfig struct {
	// ShutdownTimeout bounds how long shutdown waits for in-flight deliveries.
	ShutdownTimeout    time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	PIDFile string `yaml:"pid_file" toml:"pid_file"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
	JSON  bool   `yaml:"json" toml:"json"`
}

// DefaultRuntimeConfig returns the default runtime configuration.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Variant: VariantWeb,
		Storage: StorageConfig{
			Backend: BackendFile,
			Driver:  DriverModernc,
			Path:    filepath.Join(xdg.DataHome, AppName, "fintrack.db"),
			KVPath:  filepath.Join(xdg.DataHome, AppName, "kv"),
		},
		Notify: NotifyConfig{
			Console: true,
			HTTP: HTTPConfig{
				Timeout:    30 * time.Second,
				MaxRetries: 3,
				RetryDelays: []time.Duration{
					0,
					5 * time.Second,
					30 * time.Second,
				},
			},
		},
		Daemon: DaemonConfig{
			ShutdownTimeout: 5 * time.Second,
			PIDFile:         filepath.Join(xdg.StateHome, AppName, "daemon.pid"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath returns the config file path searched when none is given.
// A fintrack.yaml wins over fintrack.toml.
func DefaultConfigPath() string {
	dir := filepath.Join(xdg.ConfigHome, AppName)
	for _, name := range []string{"fintrack.yaml", "fintrack.yml", "fintrack.toml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load builds the runtime configuration. An empty path falls back to
// FINTRACK_CONFIG and then DefaultConfigPath; a missing default file is not
// an error.
func Load(path string) (*RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()

	if path == "" {
		path = os.Getenv("FINTRACK_CONFIG")
	}
	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML or TOML file over the current values.
// Environment variables in the format ${VAR_NAME} are expanded first.
func (c *RuntimeConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	expanded := expandEnvVars(string(data))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, c); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	if err := c.parseDurations(); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// parseDurations converts the raw duration strings into time.Duration values.
func (c *RuntimeConfig) parseDurations() error {
	if raw := c.Notify.HTTP.TimeoutRaw; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parsing notify.http.timeout %q: %w", raw, err)
		}
		c.Notify.HTTP.Timeout = d
	}

	if len(c.Notify.HTTP.RetryDelaysRaw) > 0 {
		delays := make([]time.Duration, 0, len(c.Notify.HTTP.RetryDelaysRaw))
		for _, raw := range c.Notify.HTTP.RetryDelaysRaw {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("parsing notify.http.retry_delays %q: %w", raw, err)
			}
			delays = append(delays, d)
		}
		c.Notify.HTTP.RetryDelays = delays
	}

	if raw := c.Daemon.ShutdownTimeoutRaw; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parsing daemon.shutdown_timeout %q: %w", raw, err)
		}
		c.Daemon.ShutdownTimeout = d
	}
	return nil
}

// loadFromEnv loads configuration overrides from environment variables.
func (c *RuntimeConfig) loadFromEnv() {
	if v := os.Getenv("FINTRACK_VARIANT"); v != "" {
		c.Variant = v
	}

	// Storage configuration
	if v := os.Getenv("FINTRACK_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("FINTRACK_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("FINTRACK_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("FINTRACK_KV_PATH"); v != "" {
		c.Storage.KVPath = v
	}

	// Scheduler configuration
	if v := os.Getenv("FINTRACK_CATCH_UP_MISSED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Scheduler.CatchUpMissed = b
		}
	}

	// Notify configuration
	if v := os.Getenv("FINTRACK_NOTIFY_CONSOLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Notify.Console = b
		}
	}
	if v := os.Getenv("FINTRACK_WEBHOOK_URL"); v != "" {
		c.Notify.Webhooks = append(c.Notify.Webhooks, WebhookConfig{
			Name: "env",
			Type: os.Getenv("FINTRACK_WEBHOOK_TYPE"),
			URL:  v,
		})
	}
	if v := os.Getenv("FINTRACK_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Notify.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("FINTRACK_HTTP_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Notify.HTTP.MaxRetries = n
		}
	}

	// Daemon configuration
	if v := os.Getenv("FINTRACK_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Daemon.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("FINTRACK_PID_FILE"); v != "" {
		c.Daemon.PIDFile = v
	}

	// Logging configuration
	if v := os.Getenv("FINTRACK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks enumerated fields and required paths.
// Returns an error describing the first validation failure encountered.
func (c *RuntimeConfig) Validate() error {
	switch c.Variant {
	case VariantWeb, VariantMobile:
	default:
		return fmt.Errorf("variant must be %q or %q, got %q", VariantWeb, VariantMobile, c.Variant)
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the file backend")
		}
	case BackendSnapshot:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendFile, BackendSnapshot, c.Storage.Backend)
	}

	switch c.Storage.Driver {
	case DriverModernc, DriverCGO:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverModernc, DriverCGO, c.Storage.Driver)
	}

	if c.Storage.KVPath == "" {
		return fmt.Errorf("storage.kv_path is required")
	}

	for i, w := range c.Notify.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("notify.webhooks[%d].url is required", i)
		}
	}

	if c.Notify.HTTP.MaxRetries < 0 {
		return fmt.Errorf("notify.http.max_retries must not be negative")
	}
	return nil
}

// Encode renders the effective configuration as YAML or TOML. Duration
// fields are written back in their string form and webhook URLs pass
// through mask, so a printed config does not leak credentials.
func (c *RuntimeConfig) Encode(format string, mask func(string) string) ([]byte, error) {
	out := *c
	out.Notify.HTTP.TimeoutRaw = c.Notify.HTTP.Timeout.String()
	out.Notify.HTTP.RetryDelaysRaw = make([]string, len(c.Notify.HTTP.RetryDelays))
	for i, d := range c.Notify.HTTP.RetryDelays {
		out.Notify.HTTP.RetryDelaysRaw[i] = d.String()
	}
	out.Daemon.ShutdownTimeoutRaw = c.Daemon.ShutdownTimeout.String()

	out.Notify.Webhooks = make([]WebhookConfig, len(c.Notify.Webhooks))
	for i, w := range c.Notify.Webhooks {
		if mask != nil {
			w.URL = mask(w.URL)
		}
		out.Notify.Webhooks[i] = w
	}

	switch format {
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(out); err != nil {
			return nil, fmt.Errorf("encoding config: %w", err)
		}
		return buf.Bytes(), nil
	case "yaml", "":
		data, err := yaml.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("encoding config: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
}
