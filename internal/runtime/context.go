// Package runtime wires FinTrack's components together for one process.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/manav03panchal/fintrack/internal/clock"
	"github.com/manav03panchal/fintrack/internal/config"
	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/logging"
	"github.com/manav03panchal/fintrack/internal/migrate"
	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/notify"
	"github.com/manav03panchal/fintrack/internal/output"
	"github.com/manav03panchal/fintrack/internal/scheduler"
	"github.com/manav03panchal/fintrack/internal/state"
	"github.com/manav03panchal/fintrack/internal/storage"
	"github.com/manav03panchal/fintrack/internal/validate"
)

// MemoryPath selects a throwaway in-memory database.
const MemoryPath = ":memory:"

// Context holds the application runtime context.
type Context struct {
	Config    *config.RuntimeConfig
	Formatter *output.Formatter
	Clock     clock.Clock

	// Storage
	KV *storage.KV
	DB *storage.Store

	// Delivery
	Channel *notify.Multi
	Queue   *notify.RetryQueue

	Scheduler *scheduler.Scheduler
	Migrator  *migrate.Migrator
	State     *state.Store

	// Debug mode
	Debug bool
}

// Options configures the runtime context.
type Options struct {
	ConfigPath string
	// DBPath overrides storage.path; MemoryPath keeps everything in memory.
	DBPath    string
	Format    output.Format
	ColorMode output.ColorMode
	Debug     bool
	// Clock defaults to the real clock.
	Clock clock.Clock
	// Console receives console reminders; nil means stdout.
	Console io.Writer
	// WrapChannel decorates the channel reminders are delivered through.
	WrapChannel func(notify.Channel) notify.Channel
}

// DefaultOptions returns default runtime options.
func DefaultOptions() Options {
	return Options{
		Format:    output.FormatCLI,
		ColorMode: output.ColorAuto,
	}
}

// New loads the configuration and builds every component. Nothing touches
// the database until Boot.
func New(opts Options) (*Context, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, opts)
}

// NewWithConfig builds every component from an already loaded configuration.
func NewWithConfig(cfg *config.RuntimeConfig, opts Options) (*Context, error) {
	initLogging(cfg, opts.Debug)

	if opts.DBPath != "" {
		cfg.Storage.Path = opts.DBPath
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	inMemory := cfg.Storage.Path == MemoryPath

	kv, err := openKV(cfg, inMemory)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg, kv, inMemory)
	if err != nil {
		if kv != nil {
			kv.Close()
		}
		return nil, err
	}
	db := storage.New(backend)

	formatter := output.NewFormatter()
	formatter.Format = opts.Format
	formatter.ColorMode = opts.ColorMode

	channel, queue := buildChannels(cfg, opts.Console)
	var delivery notify.Channel = channel
	if opts.WrapChannel != nil {
		delivery = opts.WrapChannel(channel)
	}

	sched := scheduler.New(scheduler.Options{
		Clock:         opts.Clock,
		Channel:       delivery,
		Journal:       db,
		CatchUpMissed: cfg.Scheduler.CatchUpMissed,
	})

	variant := model.ParseVariant(cfg.Variant)

	var source migrate.Source
	if kv != nil {
		source = kv
	}
	migrator := migrate.New(db, source, variant).WithClock(opts.Clock.Now)

	st := state.New(state.Deps{
		Repo:       db,
		Migrator:   migrator,
		Scheduler:  sched,
		Permission: channel,
		Variant:    variant,
		Clock:      opts.Clock,
	})

	return &Context{
		Config:    cfg,
		Formatter: formatter,
		Clock:     opts.Clock,
		KV:        kv,
		DB:        db,
		Channel:   channel,
		Queue:     queue,
		Scheduler: sched,
		Migrator:  migrator,
		State:     st,
		Debug:     opts.Debug,
	}, nil
}

func initLogging(cfg *config.RuntimeConfig, debug bool) {
	if debug {
		logging.InitDebug()
		return
	}
	lc := logging.DefaultConfig()
	lc.JSON = cfg.Logging.JSON
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err == nil {
		lc.Level = level
	}
	logging.Init(lc)
}

// openKV opens the badger store. The snapshot backend cannot work without
// it; the file backend only reads legacy data from it, so a locked or
// missing store just skips migration.
func openKV(cfg *config.RuntimeConfig, inMemory bool) (*storage.KV, error) {
	if inMemory {
		return storage.OpenKV(storage.KVOptions{InMemory: true})
	}

	kv, err := storage.OpenKV(storage.KVOptions{Path: cfg.Storage.KVPath})
	if err == nil {
		return kv, nil
	}
	if cfg.Storage.Backend == config.BackendSnapshot {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}
	logging.DebugLog("legacy store unavailable, skipping migration",
		"path", cfg.Storage.KVPath,
		logging.KeyError, err)
	return nil, nil
}

func newBackend(cfg *config.RuntimeConfig, kv *storage.KV, inMemory bool) (storage.Backend, error) {
	if inMemory || cfg.Storage.Backend == config.BackendSnapshot {
		return storage.NewSnapshotBackend(kv, cfg.Storage.Driver), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}
	return storage.NewFileBackend(cfg.Storage.Path, cfg.Storage.Driver), nil
}

// buildChannels creates the console and webhook channels. Webhooks with an
// unusable URL are skipped with a warning.
func buildChannels(cfg *config.RuntimeConfig, console io.Writer) (*notify.Multi, *notify.RetryQueue) {
	var channels []notify.Channel
	if cfg.Notify.Console {
		channels = append(channels, notify.NewConsoleChannel(console))
	}

	var queue *notify.RetryQueue
	if len(cfg.Notify.Webhooks) > 0 {
		httpCfg := cfg.Notify.HTTP
		client := notify.NewHTTPClient(httpCfg.Timeout, httpCfg.MaxRetries, httpCfg.RetryDelays)
		queue = notify.NewRetryQueue(client, 0, nil)

		for _, w := range cfg.Notify.Webhooks {
			if err := validate.URL(w.URL); err != nil {
				logging.Warn("webhook skipped",
					logging.KeyWebhook, w.Name,
					logging.KeyError, err)
				continue
			}
			channels = append(channels,
				notify.NewWebhookChannel(w.Name, w.Type, w.URL, client).
					WithRetryQueue(queue, httpCfg.MaxRetries))
		}
	}
	return notify.NewMulti(channels...), queue
}

// Boot opens the database and loads the application state.
func (c *Context) Boot(ctx context.Context) error {
	return c.State.Boot(ctx)
}

// StartDelivery starts background retries of failed webhook deliveries.
func (c *Context) StartDelivery() {
	if c.Queue != nil {
		c.Queue.Start()
	}
}

// Close shuts the state down, waiting up to the configured shutdown timeout
// for deliveries, and releases storage.
func (c *Context) Close() error {
	timeout := c.Config.Daemon.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := c.State.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	if c.Queue != nil {
		c.Queue.Stop()
	}
	if err := c.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	if c.KV != nil {
		if err := c.KV.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing key-value store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CLIFormatter returns a CLI formatter.
func (c *Context) CLIFormatter() *output.CLIFormatter {
	return output.NewCLIFormatter(c.Formatter)
}

// JSONFormatter returns a JSON formatter.
func (c *Context) JSONFormatter() *output.JSONFormatter {
	return output.NewJSONFormatter(c.Formatter)
}

// IsJSON returns true if output format is JSON.
func (c *Context) IsJSON() bool {
	return c.Formatter.IsJSON()
}

// Debugf prints debug output if debug mode is enabled.
func (c *Context) Debugf(format string, args ...interface{}) {
	if c.Debug {
		logging.DebugLog(fmt.Sprintf(format, args...))
	}
}
