package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/engine"
	"github.com/cleared-dev/stmtimport/internal/importer"
)

func newPreviewCommand(configPath *string) *cobra.Command {
	var account string
	var wf windowFlags

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Show what importing a statement would change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := wf.window()
			if err != nil {
				return err
			}

			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.checkAccount(account); err != nil {
				return err
			}

			source, err := readStatement(importer.DefaultRegistry(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			name := filepath.Base(args[0])
			m, err := a.engine.ParseAndMatch(cmd.Context(), source, account, window)
			if errors.Is(err, engine.ErrEmptyResult) {
				printSummary(out, name, m)
				return fmt.Errorf("%s: %w", name, err)
			}
			if err != nil {
				return err
			}

			printSummary(out, name, m)
			printMatch(out, m)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "target bank account id (required)")
	wf.register(cmd)

	return cmd
}
