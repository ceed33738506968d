package cmd

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/fintrack/internal/daemon"
	"github.com/manav03panchal/fintrack/internal/notify"
	"github.com/manav03panchal/fintrack/internal/output"
	"github.com/manav03panchal/fintrack/internal/runtime"
)

// Daemon command flags.
var (
	daemonStartFlagForeground bool
	daemonLogsFlagTail        int
	daemonLogsFlagFollow      bool
	daemonInstallFlagForce    bool
)

// daemonCmd represents the daemon command.
var daemonCmd = &cobra.Command{
	Use:     "daemon [command]",
	Aliases: []string{"d", "bg", "service"},
	Short:   "Manage the reminder daemon",
	Long: `Manage the FinTrack daemon that keeps reminders armed and delivers
them through the console and configured webhooks.

Changes made with other fintrack commands are picked up automatically.

Examples:
  fintrack daemon start
  fintrack daemon status
  fintrack daemon reload
  fintrack daemon stop
  fintrack daemon logs --tail 20`,
	Annotations: configOnly(),
	RunE:        runDaemonStatus,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	Long: `Start the FinTrack daemon.

Examples:
  fintrack daemon start           # Start in background
  fintrack daemon start --foreground`,
	Annotations: configOnly(),
	RunE:        runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:         "stop",
	Short:       "Stop the daemon",
	Annotations: configOnly(),
	RunE:        runDaemonStop,
}

var daemonReloadCmd = &cobra.Command{
	Use:         "reload",
	Short:       "Make the daemon re-read stored reminders",
	Annotations: configOnly(),
	RunE:        runDaemonReload,
}

var daemonStatusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show daemon status",
	Annotations: configOnly(),
	RunE:        runDaemonStatus,
}

var daemonLogsCmd = &cobra.Command{
	Use:         "logs",
	Short:       "View daemon logs",
	Annotations: configOnly(),
	RunE:        runDaemonLogs,
}

var daemonInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the daemon as a user service",
	Long: `Install the FinTrack daemon as a service that starts on login.

On macOS, this creates a launchd agent in ~/Library/LaunchAgents.
On Linux, this creates a systemd user service in ~/.config/systemd/user.`,
	Annotations: configOnly(),
	RunE:        runDaemonInstall,
}

var daemonUninstallCmd = &cobra.Command{
	Use:         "uninstall",
	Short:       "Remove the daemon user service",
	Annotations: configOnly(),
	RunE:        runDaemonUninstall,
}

func init() {
	daemonStartCmd.Flags().BoolVar(&daemonStartFlagForeground, "foreground", false,
		"Run in foreground (don't daemonize)")

	daemonLogsCmd.Flags().IntVarP(&daemonLogsFlagTail, "tail", "n", 20,
		"Number of lines to show")
	daemonLogsCmd.Flags().BoolVar(&daemonLogsFlagFollow, "follow", false,
		"Follow log output (like tail -f)")

	daemonInstallCmd.Flags().BoolVar(&daemonInstallFlagForce, "force", false,
		"Force reinstall if already installed")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonReloadCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonLogsCmd)
	daemonCmd.AddCommand(daemonInstallCmd)
	daemonCmd.AddCommand(daemonUninstallCmd)

	rootCmd.AddCommand(daemonCmd)
}

func newDaemon(metrics *daemon.Metrics) *daemon.Daemon {
	return daemon.New(cfg, daemon.Options{
		ConfigPath: flagConfig,
		Version:    Version,
		Metrics:    metrics,
		Debug:      flagDebug,
	})
}

// runDaemonStart handles the daemon start command.
func runDaemonStart(cmd *cobra.Command, args []string) error {
	if !daemonStartFlagForeground {
		// The child process opens storage; this one must not hold its locks.
		d := newDaemon(nil)
		if d.IsRunning() {
			return fmt.Errorf("daemon is already running (PID: %d)", d.GetStatus().PID)
		}

		pid, err := d.StartBackground()
		if err != nil {
			return err
		}
		fmt.Printf("Daemon started (PID: %d)\n", pid)
		return nil
	}

	metrics := daemon.NewMetrics()
	opts, err := runtimeOptions()
	if err != nil {
		return err
	}
	opts.WrapChannel = func(ch notify.Channel) notify.Channel {
		return daemon.Instrument(ch, metrics)
	}

	ctx, err = runtime.NewWithConfig(cfg, opts)
	if err != nil {
		return err
	}

	d := newDaemon(metrics)
	if len(cfg.Notify.Webhooks) == 0 && !cfg.Notify.Console {
		ctx.CLIFormatter().Warning("No delivery channels configured; reminders will only be logged.")
	}
	if !ctx.IsJSON() {
		ctx.Formatter.Println("Starting fintrack daemon (foreground mode)...")
	}
	return d.Run(cmd.Context(), ctx)
}

// runDaemonStop handles the daemon stop command.
func runDaemonStop(cmd *cobra.Command, args []string) error {
	d := newDaemon(nil)
	status := d.GetStatus()
	if !status.Running {
		fmt.Println("Daemon is not running")
		return nil
	}

	fmt.Println("Stopping fintrack daemon...")
	if err := d.Stop(); err != nil {
		return err
	}
	fmt.Printf("Daemon stopped (was PID: %d)\n", status.PID)
	return nil
}

// runDaemonReload handles the daemon reload command.
func runDaemonReload(cmd *cobra.Command, args []string) error {
	if err := newDaemon(nil).Reload(); err != nil {
		return err
	}
	fmt.Println("Reload requested")
	return nil
}

// runDaemonStatus handles the daemon status command.
func runDaemonStatus(cmd *cobra.Command, args []string) error {
	status := newDaemon(nil).GetStatus()

	if flagFormat == "json" {
		return output.NewFormatter().JSON(status)
	}

	fmt.Println("FinTrack Daemon Status")
	fmt.Println("")
	if !status.Running {
		fmt.Printf("  Status:    stopped\n")
		fmt.Println("")
		fmt.Println("Start with: fintrack daemon start")
		return nil
	}

	fmt.Printf("  Status:    running\n")
	fmt.Printf("  PID:       %d\n", status.PID)
	fmt.Printf("  Uptime:    %s\n", status.Uptime)
	if h := status.Health; h != nil {
		fmt.Printf("  Health:    %s\n", h.Status)
		fmt.Printf("  Armed:     %d reminders\n", h.ArmedReminders)
		if h.PendingRetries > 0 {
			fmt.Printf("  Retrying:  %d deliveries\n", h.PendingRetries)
		}
		for _, c := range h.Checks {
			if !c.Healthy {
				fmt.Printf("  ✗ %s: %s\n", c.Name, c.Error)
			}
		}
	}
	if m := status.Metrics; m != nil {
		fmt.Printf("  Delivered: %d (%d failed)\n", m.DeliveredTotal, m.FailedTotal)
		if m.LastDeliveryAt != nil {
			fmt.Printf("  Last sent: %s\n", m.LastDeliveryAt.Local().Format(time.DateTime))
		}
	}
	return nil
}

// runDaemonLogs handles the daemon logs command.
func runDaemonLogs(cmd *cobra.Command, args []string) error {
	logPath := newDaemon(nil).LogPath()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Println("No log file found.")
		fmt.Printf("Log path: %s\n", logPath)
		return nil
	}

	if daemonLogsFlagFollow {
		return followLogs(cmd, logPath)
	}

	lines, err := tailFile(logPath, daemonLogsFlagTail)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

// tailFile reads the last n lines from a file.
func tailFile(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// followLogs prints lines appended to the log file until interrupted.
func followLogs(cmd *cobra.Command, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(0, 2); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		for {
			line, err := reader.ReadString('\n')
			if len(line) > 0 {
				fmt.Print(line)
			}
			if err != nil {
				break
			}
		}

		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}

// runDaemonInstall handles the daemon install command.
func runDaemonInstall(cmd *cobra.Command, args []string) error {
	mgr, err := daemon.NewServiceManager(flagConfig, newDaemon(nil).LogPath())
	if err != nil {
		return err
	}

	if mgr.IsInstalled() {
		if !daemonInstallFlagForce {
			fmt.Println("Service is already installed.")
			fmt.Println("Use --force to reinstall.")
			return nil
		}
		fmt.Println("Removing existing service...")
		if err := mgr.Uninstall(); err != nil {
			return fmt.Errorf("failed to remove existing service: %w", err)
		}
	}

	fmt.Println("Installing FinTrack daemon as a user service...")
	if err := mgr.Install(); err != nil {
		return err
	}

	fmt.Println("")
	fmt.Println("✓ Service installed successfully")
	fmt.Println("")
	fmt.Println("The daemon will now start automatically when you log in.")
	fmt.Println("To remove: fintrack daemon uninstall")
	return nil
}

// runDaemonUninstall handles the daemon uninstall command.
func runDaemonUninstall(cmd *cobra.Command, args []string) error {
	mgr, err := daemon.NewServiceManager(flagConfig, newDaemon(nil).LogPath())
	if err != nil {
		return err
	}

	if !mgr.IsInstalled() {
		fmt.Println("Service is not installed.")
		return nil
	}

	fmt.Println("Uninstalling FinTrack daemon service...")
	if err := mgr.Uninstall(); err != nil {
		return err
	}

	fmt.Println("")
	fmt.Println("✓ Service uninstalled successfully")
	return nil
}
