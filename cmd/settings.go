package cmd

import (
	"github.com/spf13/cobra"

	"github.com/manav03panchal/fintrack/internal/model"
)

var (
	settingsFlagName string
	settingsFlagLogo string
)

// settingsCmd groups the profile and display settings.
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change profile, currency and theme",
	Long: `Show or change the profile, currency and theme.

Examples:
  fintrack settings
  fintrack settings user --name Alex
  fintrack settings currency eur
  fintrack settings theme`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings",
	RunE:  runSettingsShow,
}

var settingsUserCmd = &cobra.Command{
	Use:         "user",
	Short:       "Update the profile",
	Args:        cobra.NoArgs,
	Annotations: writes(),
	RunE:        runSettingsUser,
}

var settingsCurrencyCmd = &cobra.Command{
	Use:         "currency CODE",
	Short:       "Set the display currency (ISO 4217 code)",
	Args:        cobra.ExactArgs(1),
	Annotations: writes(),
	RunE:        runSettingsCurrency,
}

var settingsThemeCmd = &cobra.Command{
	Use:         "theme",
	Short:       "Toggle between the two themes",
	Args:        cobra.NoArgs,
	Annotations: writes(),
	RunE:        runSettingsTheme,
}

func init() {
	settingsUserCmd.Flags().StringVar(&settingsFlagName, "name", "", "Display name")
	settingsUserCmd.Flags().StringVar(&settingsFlagLogo, "logo", "", "Logo image reference")
	settingsUserCmd.MarkFlagsOneRequired("name", "logo")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsUserCmd)
	settingsCmd.AddCommand(settingsCurrencyCmd)
	settingsCmd.AddCommand(settingsThemeCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	snap := ctx.State.Snapshot()
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintSettings(snap)
	}
	ctx.CLIFormatter().PrintSettings(snap)
	return nil
}

func runSettingsUser(cmd *cobra.Command, args []string) error {
	if _, err := ctx.State.UpdateUser(cmd.Context(), model.User{
		Name: settingsFlagName,
		Logo: settingsFlagLogo,
	}); err != nil {
		return err
	}
	return runSettingsShow(cmd, nil)
}

func runSettingsCurrency(cmd *cobra.Command, args []string) error {
	if err := ctx.State.ChangeCurrency(cmd.Context(), args[0]); err != nil {
		return err
	}
	return runSettingsShow(cmd, nil)
}

func runSettingsTheme(cmd *cobra.Command, args []string) error {
	if _, err := ctx.State.ToggleTheme(cmd.Context()); err != nil {
		return err
	}
	return runSettingsShow(cmd, nil)
}
