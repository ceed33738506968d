package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/fintrack/internal/config"
	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/storage"
)

// migrateCmd runs the legacy data migration on demand.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import data from the legacy key-value store",
	Long: `Copy transactions, notes, settings and the reminder from the legacy
key-value store into the database. Boot already does this; each step only
runs while its target is empty, so running it again changes nothing.`,
	Annotations: writes(),
	RunE:        runMigrate,
}

// checkCmd verifies the database.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check database integrity and disk space",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(checkCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	res, err := ctx.Migrator.Run(cmd.Context())
	if err != nil {
		return err
	}
	if err := ctx.State.Reload(cmd.Context()); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintMigrate(res)
	}
	cli := ctx.CLIFormatter()
	if !res.FlatStorageRan && !res.NotificationRan {
		cli.Muted("Nothing to migrate.")
		return nil
	}
	cli.Success("Migration complete")
	cli.Printf("  Transactions: %d\n", res.Transactions)
	cli.Printf("  Notes: %d\n", res.Notes)
	cli.Printf("  Reminder: %t\n", res.Notification)
	if res.Skipped > 0 {
		cli.Warning(fmt.Sprintf("%d malformed records skipped", res.Skipped))
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	status := ctx.DB.CheckIntegrity(cmd.Context())
	diskWarning := ""
	if cfg.Storage.Backend == config.BackendFile {
		diskWarning = storage.CheckDiskSpaceWarning(cfg.Storage.Path)
	}

	if ctx.IsJSON() {
		if err := ctx.JSONFormatter().PrintIntegrity(status); err != nil {
			return err
		}
	} else {
		ctx.CLIFormatter().PrintIntegrity(status)
		if diskWarning != "" {
			ctx.CLIFormatter().Warning(diskWarning)
		}
	}

	if !status.Healthy {
		return errors.NewSystemError("database check failed", errors.ErrStorageUnavailable)
	}
	return nil
}
