package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/buildinfo"
	"github.com/cleared-dev/stmtimport/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "stmtimport",
		Short:   "Import bank statements into a ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.FileName, "path to the project config file")

	rootCmd.AddCommand(
		newInitCommand(),
		newPreviewCommand(&configPath),
		newImportCommand(&configPath),
		newLedgerCommand(&configPath),
		newBatchCommand(&configPath),
		newServeCommand(&configPath),
	)

	return rootCmd
}
