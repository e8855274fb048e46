// Package cli is beekeeper's command-line surface.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	debug      bool
	noColor    bool
}

// NewRootCommand creates and returns the root cobra command for beekeeper
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "beekeeper",
		Short: "Data-quality auditor for a CKAN open data catalog",
		Long: `Beekeeper scans datastore fields in a CKAN catalog, checks every
record against an assertion, alerts an operator channel when a check
fails, and can make the offending dataset private.

Checks come from a YAML or JSON checks file, or from the defaults
compiled into the binary. Credentials come from the environment or a
.env file (CKAN_SITE, CKAN_API_KEY, SLACK_WEBHOOK_URL,
BEEKEEPER_PRODUCTION).`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to settings file (YAML)")
	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", "", "Path to .env file (default: .env if present)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable coloured output")

	cmd.AddCommand(newRunCommand(g))
	cmd.AddCommand(newResourceCommand(g))
	cmd.AddCommand(newListCommand(g))
	cmd.AddCommand(newValidateCommand(g))
	cmd.AddCommand(newHistoryCommand(g))

	return cmd
}
