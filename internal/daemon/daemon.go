package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/manav03panchal/fintrack/internal/config"
	"github.com/manav03panchal/fintrack/internal/logging"
	"github.com/manav03panchal/fintrack/internal/output"
	"github.com/manav03panchal/fintrack/internal/runtime"
	"github.com/manav03panchal/fintrack/internal/state"
)

const (
	stateFileName = "daemon.json"
	logFileName   = "daemon.log"

	// startupWait is how long StartBackground waits for the child to
	// write its PID file.
	startupWait = 500 * time.Millisecond
)

// Options configures a Daemon.
type Options struct {
	// PIDFile defaults to the configured daemon.pid_file.
	PIDFile string
	// ConfigPath is passed on to background and service processes.
	ConfigPath string
	Version    string
	Metrics    *Metrics
	Debug      bool
}

// Daemon keeps reminders armed until it is told to stop.
type Daemon struct {
	cfg        *config.RuntimeConfig
	rt         *runtime.Context
	pidFile    *PIDFile
	statePath  string
	configPath string
	version    string
	metrics    *Metrics
	debug      bool
	health     *HealthChecker
	startedAt  time.Time
}

// Status represents the daemon status.
type Status struct {
	Running   bool             `json:"running"`
	PID       int              `json:"pid,omitempty"`
	StartedAt time.Time        `json:"started_at,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Health    *HealthStatus    `json:"health,omitempty"`
	Metrics   *MetricsSnapshot `json:"metrics,omitempty"`
}

// DaemonState is the state file the running daemon keeps current.
type DaemonState struct {
	PID       int             `json:"pid"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Health    *HealthStatus   `json:"health"`
	Metrics   MetricsSnapshot `json:"metrics"`
}

// New creates a daemon manager. Controlling a running daemon needs only
// the configuration; Run takes the runtime to serve.
func New(cfg *config.RuntimeConfig, opts Options) *Daemon {
	pidPath := opts.PIDFile
	if pidPath == "" {
		pidPath = cfg.Daemon.PIDFile
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	return &Daemon{
		cfg:        cfg,
		pidFile:    NewPIDFile(pidPath),
		statePath:  filepath.Join(filepath.Dir(pidPath), stateFileName),
		configPath: opts.ConfigPath,
		version:    opts.Version,
		metrics:    opts.Metrics,
		debug:      opts.Debug,
	}
}

// LogPath returns the file background daemons write their output to.
func (d *Daemon) LogPath() string {
	return filepath.Join(filepath.Dir(d.pidFile.Path()), logFileName)
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() *Status {
	status := &Status{}

	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return status
	}
	status.Running = true
	status.PID = pid

	if st, err := d.readState(); err == nil {
		status.StartedAt = st.StartedAt
		status.Uptime = output.FormatDuration(time.Since(st.StartedAt))
		status.Health = st.Health
		status.Metrics = &st.Metrics
	}
	return status
}

// IsRunning returns true if the daemon is running.
func (d *Daemon) IsRunning() bool {
	return d.pidFile.IsRunning()
}

// Run boots rt and keeps its reminders armed until ctx is cancelled or a
// stop signal arrives. SIGHUP reloads from storage. The caller closes rt
// afterwards.
func (d *Daemon) Run(ctx context.Context, rt *runtime.Context) error {
	if err := d.pidFile.Acquire(); err != nil {
		return err
	}
	d.rt = rt
	defer d.cleanup()

	sigHandler := NewSignalHandler()
	sigHandler.Setup()
	defer sigHandler.Cleanup()

	if err := d.rt.Boot(ctx); err != nil {
		return err
	}
	d.rt.StartDelivery()

	d.startedAt = time.Now()
	d.health = NewHealthChecker(d.version)
	d.health.AddCheck("state", func() error {
		if st := d.rt.State.Status(); st != state.StatusReady {
			return fmt.Errorf("state is %s", st)
		}
		return nil
	})
	d.health.AddCheck("storage", func() error {
		status := d.rt.DB.CheckIntegrity(context.Background())
		if !status.Healthy {
			return fmt.Errorf("%s", strings.Join(status.Errors, "; "))
		}
		return nil
	})
	d.refresh()

	logger := logging.Component("daemon")
	logger.Info("daemon started",
		"pid", os.Getpid(),
		logging.KeyCount, d.rt.Scheduler.Len())

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates := d.rt.State.Subscribe(watchCtx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping", "reason", ctx.Err())
			return nil

		case sig := <-sigHandler.C():
			if IsReload(sig) {
				d.reload(ctx)
				continue
			}
			logger.Info("daemon stopping", "signal", sig.String())
			return nil

		case _, ok := <-updates:
			if !ok {
				return nil
			}
			d.refresh()
		}
	}
}

// reload re-reads storage so edits made by other processes take effect.
func (d *Daemon) reload(ctx context.Context) {
	d.metrics.RecordReload()
	if err := d.rt.State.Reload(ctx); err != nil {
		d.metrics.RecordError("reload", err)
		logging.Component("daemon").Error("reload failed", logging.KeyError, err)
		return
	}
	logging.Component("daemon").Info("reloaded",
		logging.KeyCount, d.rt.Scheduler.Len())
	d.refresh()
}

// refresh updates the health counts and rewrites the state file.
func (d *Daemon) refresh() {
	retries := 0
	if d.rt.Queue != nil {
		retries = d.rt.Queue.Pending()
	}
	d.health.SetCounts(d.rt.Scheduler.Len(), retries)

	st := &DaemonState{
		PID:       os.Getpid(),
		StartedAt: d.startedAt,
		UpdatedAt: time.Now(),
		Health:    d.health.Check(),
		Metrics:   d.metrics.Snapshot(),
	}
	if err := d.writeState(st); err != nil {
		logging.Warn("failed to write daemon state file", logging.KeyError, err, "path", d.statePath)
	}
}

func (d *Daemon) cleanup() {
	if err := d.pidFile.Release(); err != nil {
		logging.Warn("failed to remove PID file", logging.KeyError, err)
	}
	d.removeState()
}

// StartBackground re-executes the binary as a detached foreground daemon.
func (d *Daemon) StartBackground() (int, error) {
	if d.IsRunning() {
		return d.pidFile.RunningPID(), ErrAlreadyRunning
	}

	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(executable, d.foregroundArgs()...)
	cmd.Stdin = nil

	logPath := d.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err == nil {
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			defer logFile.Close()
			cmd.Stdout = logFile
			cmd.Stderr = logFile
		}
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait a moment for the process to start and write PID
	time.Sleep(startupWait)

	if !d.pidFile.IsRunning() {
		if errMsg := d.readLastLogError(); errMsg != "" {
			return 0, fmt.Errorf("daemon failed to start: %s", errMsg)
		}
		return 0, fmt.Errorf("daemon failed to start (check logs: %s)", logPath)
	}
	return cmd.Process.Pid, nil
}

func (d *Daemon) foregroundArgs() []string {
	args := []string{"daemon", "start", "--foreground"}
	if d.configPath != "" {
		args = append(args, "--config", d.configPath)
	}
	if d.debug {
		args = append(args, "--debug")
	}
	return args
}

// readLastLogError returns the most recent error line of the log file.
func (d *Daemon) readLastLogError() string {
	data, err := os.ReadFile(d.LogPath())
	if err != nil {
		return ""
	}

	lines := strings.Split(string(data), "\n")
	start := max(len(lines)-10, 0)
	for i := len(lines) - 1; i >= start; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.Contains(strings.ToLower(line), "error") {
			return line
		}
	}
	return ""
}

// Stop asks the running daemon to exit and waits for it.
func (d *Daemon) Stop() error {
	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return ErrNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(os.Interrupt); err != nil {
		if err := process.Kill(); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
	}

	// The daemon is not our child, so poll instead of Wait.
	deadline := time.Now().Add(d.cfg.Daemon.ShutdownTimeout + 2*time.Second)
	for IsProcessRunning(pid) && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	if IsProcessRunning(pid) {
		process.Kill()
	}

	d.pidFile.Remove()
	d.removeState()
	return nil
}

// Reload asks the running daemon to re-read storage. It returns
// ErrNotRunning when there is no daemon.
func (d *Daemon) Reload() error {
	return d.pidFile.Signal(reloadSignal)
}

// NotifyReload signals the daemon whose PID is stored at pidPath to reload.
func NotifyReload(pidPath string) error {
	return NewPIDFile(pidPath).Signal(reloadSignal)
}

// writeState writes daemon state to file.
func (d *Daemon) writeState(st *DaemonState) error {
	if err := os.MkdirAll(filepath.Dir(d.statePath), 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	tmp := d.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.statePath)
}

// readState reads daemon state from file.
func (d *Daemon) readState() (*DaemonState, error) {
	data, err := os.ReadFile(d.statePath)
	if err != nil {
		return nil, err
	}

	var st DaemonState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// removeState removes the state file.
func (d *Daemon) removeState() {
	if err := os.Remove(d.statePath); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove daemon state file", logging.KeyError, err, "path", d.statePath)
	}
}
