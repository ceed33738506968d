package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/fintrack/internal/config"
	"github.com/manav03panchal/fintrack/internal/logging"
)

var configFlagTOML bool

// configCmd inspects the effective configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after defaults, the config file and FINTRACK_*
environment variables are applied. Webhook URLs are masked.

Examples:
  fintrack config
  fintrack config --toml
  fintrack config path`,
	Annotations: configOnly(),
	RunE:        runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file in use",
	Annotations: configOnly(),
	RunE:        runConfigPath,
}

func init() {
	configCmd.Flags().BoolVar(&configFlagTOML, "toml", false, "Print TOML instead of YAML")
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format := "yaml"
	if configFlagTOML {
		format = "toml"
	}
	data, err := cfg.Encode(format, logging.MaskURL)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := flagConfig
	if path == "" {
		path = os.Getenv("FINTRACK_CONFIG")
	}
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No config file; using defaults.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
