package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/engine"
	"github.com/cleared-dev/stmtimport/internal/importlog"
	"github.com/cleared-dev/stmtimport/internal/model"
)

func newBatchCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Inspect and reverse import batches",
	}
	cmd.AddCommand(
		newBatchListCommand(configPath),
		newBatchShowCommand(configPath),
		newBatchDeleteCommand(configPath),
	)
	return cmd
}

func newBatchListCommand(configPath *string) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List import batches for an account, newest first",
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
			batches, err := a.engine.Batches(cmd.Context(), account)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(batches) == 0 {
				fmt.Fprintln(out, "No import batches.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tRECORDS\tFILE")
			for _, b := range batches {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b.ID, b.CreatedAt.Local().Format(time.DateTime), b.RecordCount, b.Filename)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "bank account id (required)")
	return cmd
}

func newBatchShowCommand(configPath *string) *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a batch and the ledger entries it created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.engine.Batch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries, err := a.engine.BatchEntries(cmd.Context(), b.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Batch:    %s\n", b.ID)
			fmt.Fprintf(out, "Account:  %s\n", b.AccountID)
			fmt.Fprintf(out, "File:     %s\n", b.Filename)
			fmt.Fprintf(out, "Created:  %s\n", b.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "Records:  %d\n\n", b.RecordCount)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tDIRECTION\tAMOUNT\tCATEGORY\tDESCRIPTION")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.Date.Format(model.DateFormat), e.Direction, e.Amount.StringFixed(2), e.Category, e.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if showSource {
				fmt.Fprintf(out, "\n%s\n", b.Source)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "print the statement text the batch was imported from")
	return cmd
}

func newBatchDeleteCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove every ledger entry a batch created, and the batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			out := cmd.OutOrStdout()

			// Fetched up front so the log row can name the account.
			b, err := a.engine.Batch(cmd.Context(), id)
			if errors.Is(err, engine.ErrBatchNotFound) {
				fmt.Fprintf(out, "Batch %s not found, nothing deleted.\n", id)
				return nil
			}
			if err != nil {
				return err
			}

			res, err := a.engine.DeleteBatch(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !res.Found {
				fmt.Fprintf(out, "Batch %s not found, nothing deleted.\n", id)
				return nil
			}

			if err := importlog.Append(a.logDir(), []importlog.Entry{{
				Timestamp: time.Now(),
				Action:    importlog.ActionDelete,
				BatchID:   id,
				AccountID: b.AccountID,
				Filename:  b.Filename,
				Removed:   res.Removed,
			}}); err != nil {
				return fmt.Errorf("batch %s deleted but the import log was not written: %w", id, err)
			}

			fmt.Fprintf(out, "Deleted batch %s (%d ledger entries removed)\n", id, res.Removed)
			return nil
		},
	}
}
