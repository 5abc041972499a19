package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/model"
)

func newLedgerCommand(configPath *string) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List ledger entries for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.checkAccount(account); err != nil {
				return err
			}
			entries, err := a.engine.Ledger(cmd.Context(), account)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No ledger entries.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tDIRECTION\tAMOUNT\tCATEGORY\tBATCH\tDESCRIPTION")
			for _, e := range entries {
				batch := e.Provenance
				if batch == "" {
					batch = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.Date.Format(model.DateFormat), e.Direction, e.Amount.StringFixed(2), e.Category, batch, e.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "bank account id (required)")
	return cmd
}
