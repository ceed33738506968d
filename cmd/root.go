// Package cmd provides the CLI commands for FinTrack.
//
// This software is a derivative work based on Zeit (https://github.com/mrusme/zeit)
// Original work copyright (c) マリウス (mrusme)
// Modifications copyright (c) Manav Panchal
//
// Licensed under the SEGV License, Version 1.0
// See LICENSE file for full license text.
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/fintrack/internal/config"
	"github.com/manav03panchal/fintrack/internal/daemon"
	"github.com/manav03panchal/fintrack/internal/logging"
	"github.com/manav03panchal/fintrack/internal/output"
	"github.com/manav03panchal/fintrack/internal/runtime"
)

// Version information (set at build time via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Global flags.
var (
	flagConfig string
	flagFormat string
	flagColor  string
	flagDebug  bool
)

// Command annotations read by the root hooks.
const (
	// annotRuntime selects what the root command prepares: "none" loads
	// nothing, "config" loads only the configuration. Commands without the
	// annotation get a booted runtime.
	annotRuntime = "runtime"
	// annotWrites marks commands whose changes a running daemon must reload.
	annotWrites = "writes"
)

var (
	// cfg is the loaded configuration.
	cfg *config.RuntimeConfig
	// ctx is the shared runtime context.
	ctx *runtime.Context
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fintrack",
	Short: "Personal finance tracking from the command line",
	Long: `FinTrack records income and expenses, keeps monthly notes and
reminds you to log your spending.

Examples:
  fintrack tx add 12.50 Lunch -c Food
  fintrack tx add +2500 Salary -c Salary -d "1 March 2024"
  fintrack summary "last month"
  fintrack note add "this month" "Cancel the gym membership"
  fintrack remind add 20:00 "Log today's expenses"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for completion and help commands
		if cmd.Name() == "completion" || cmd.Name() == "help" {
			return nil
		}
		mode := cmd.Annotations[annotRuntime]
		if mode == "none" {
			return nil
		}

		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		if mode == "config" {
			return nil
		}

		// Only the daemon delivers reminders missed while nothing ran.
		cfg.Scheduler.CatchUpMissed = false

		opts, err := runtimeOptions()
		if err != nil {
			return err
		}
		ctx, err = runtime.NewWithConfig(cfg, opts)
		if err != nil {
			return err
		}
		return ctx.Boot(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[annotWrites] == "true" && cfg != nil {
			notifyDaemon()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: this month's summary
		return runSummary(cmd, nil)
	},
}

// runtimeOptions translates the global flags.
func runtimeOptions() (runtime.Options, error) {
	opts := runtime.DefaultOptions()
	var err error
	if opts.Format, err = output.ParseFormat(flagFormat); err != nil {
		return opts, err
	}
	if opts.ColorMode, err = output.ParseColorMode(flagColor); err != nil {
		return opts, err
	}
	opts.Debug = flagDebug
	return opts, nil
}

// notifyDaemon asks a running daemon to pick up changes made by this
// process.
func notifyDaemon() {
	if err := daemon.NotifyReload(cfg.Daemon.PIDFile); err != nil && err != daemon.ErrNotRunning {
		logging.DebugLog("daemon not notified", logging.KeyError, err)
	}
}

// writes annotates a command as changing stored data.
func writes() map[string]string {
	return map[string]string{annotWrites: "true"}
}

// configOnly annotates a command that needs the configuration but no
// database.
func configOnly() map[string]string {
	return map[string]string{annotRuntime: "config"}
}

// Execute runs the root command and reports any error. It returns the
// process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if ctx != nil {
		if closeErr := ctx.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	if err == nil {
		return runtime.ExitOK
	}
	return report(err)
}

// report prints err in the selected format and returns its exit code.
func report(err error) int {
	d := runtime.Describe(err)
	if flagFormat == "json" {
		f := output.NewFormatter()
		output.NewJSONFormatter(f).PrintError(d.Message, d.Category, d.Suggestion)
		return d.ExitCode
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(d.Message)
	sb.WriteString("\n")
	if d.Suggestion != "" {
		sb.WriteString(d.Suggestion)
		sb.WriteString("\n")
	}
	os.Stderr.WriteString(sb.String())
	return d.ExitCode
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"Config file (default: $XDG_CONFIG_HOME/fintrack/fintrack.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "cli",
		"Output format: cli, json, plain")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto",
		"Color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"Enable debug output")

	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{annotRuntime: "none"},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("fintrack %s\n", Version)
		cmd.Printf("  commit: %s\n", Commit)
		cmd.Printf("  built: %s\n", BuildTime)
	},
}
