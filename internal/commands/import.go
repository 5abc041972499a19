package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/engine"
	"github.com/cleared-dev/stmtimport/internal/importer"
	"github.com/cleared-dev/stmtimport/internal/importlog"
	"github.com/cleared-dev/stmtimport/internal/model"
)

type importFlags struct {
	account    string
	replace    []int
	replaceAll bool
	inbox      bool
	window     windowFlags
}

func newImportCommand(configPath *string) *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Commit bank statements to the ledger",
		Long: `Parse, match and commit one or more statements. Conflicts with existing
ledger entries keep the existing entry unless named with --replace (pair
numbers as shown by preview) or --replace-all.

With --inbox the statements are taken from the configured import directory
and moved to its processed/ subdirectory once committed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.inbox && len(args) > 0 {
				return fmt.Errorf("--inbox does not take file arguments")
			}
			if !f.inbox && len(args) == 0 {
				return fmt.Errorf("no statement files given (or use --inbox)")
			}
			if len(f.replace) > 0 && (f.inbox || len(args) > 1) {
				return fmt.Errorf("--replace names pairs of a single statement")
			}
			if len(f.replace) > 0 && f.replaceAll {
				return fmt.Errorf("--replace and --replace-all are mutually exclusive")
			}
			window, err := f.window.window()
			if err != nil {
				return err
			}

			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.checkAccount(f.account); err != nil {
				return err
			}

			reg := importer.DefaultRegistry()
			paths := args
			if f.inbox {
				files, err := importer.Scan(a.inboxDir(), reg)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No statements to import.")
					return nil
				}
				paths = make([]string, len(files))
				for i, file := range files {
					paths[i] = file.Path
				}
			}

			var failed int
			for _, path := range paths {
				err := a.importFile(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), reg, path, window, f)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", filepath.Base(path), err)
					failed++
					continue
				}
				if f.inbox {
					if err := importer.MarkProcessed(a.inboxDir(), filepath.Base(path)); err != nil {
						return err
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d statements failed to import", failed, len(paths))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.account, "account", "", "target bank account id (required)")
	cmd.Flags().IntSliceVar(&f.replace, "replace", nil, "conflict pair numbers to replace with the statement's record")
	cmd.Flags().BoolVar(&f.replaceAll, "replace-all", false, "replace every conflicting ledger entry")
	cmd.Flags().BoolVar(&f.inbox, "inbox", false, "import every statement in the configured import directory")
	f.window.register(cmd)

	return cmd
}

func (a *app) importFile(ctx context.Context, out, errOut io.Writer, reg *importer.Registry, path string, window importer.DateRange, f importFlags) error {
	source, err := readStatement(reg, path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)

	m, err := a.engine.ParseAndMatch(ctx, source, f.account, window)
	if errors.Is(err, engine.ErrEmptyResult) {
		printSummary(out, name, m)
		return err
	}
	if err != nil {
		return err
	}
	printSummary(out, name, m)

	rs := m.Resolver()
	if f.replaceAll {
		rs.SetAll(model.ReplaceWithNew)
	}
	for _, id := range f.replace {
		if err := rs.Set(id, model.ReplaceWithNew); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Import.CommitTimeout)
	defer cancel()

	res, err := a.engine.Commit(ctx, engine.CommitRequest{
		Clean:     m.Clean,
		Conflicts: m.Conflicts,
		Decisions: rs.Decisions(),
		Meta:      engine.BatchMeta{Filename: name, AccountID: f.account, Source: source},
		Ignored:   m.Ignored,
		Progress: func(p engine.Progress) {
			if p.Phase == engine.PhaseInserting {
				fmt.Fprintf(errOut, "\r  inserting %d/%d (%d%%)", p.Done, p.Total, p.Percent())
			}
			if p.Phase == engine.PhaseComplete && p.Total > 0 {
				fmt.Fprintln(errOut)
			}
		},
	})
	if err != nil {
		return err
	}

	if res.NoOp {
		fmt.Fprintf(out, "%s: nothing to import, ledger unchanged\n", name)
		return nil
	}

	if err := importlog.Append(a.logDir(), []importlog.Entry{{
		Timestamp: time.Now(),
		Action:    importlog.ActionCommit,
		BatchID:   res.BatchID,
		AccountID: f.account,
		Filename:  name,
		Inserted:  res.Inserted,
		Removed:   res.Removed,
		Kept:      res.Kept,
	}}); err != nil {
		return fmt.Errorf("batch %s committed but the import log was not written: %w", res.BatchID, err)
	}

	fmt.Fprintf(out, "%s: committed batch %s (%d inserted, %d replaced, %d kept)\n",
		name, res.BatchID, res.Inserted, res.Removed, res.Kept)
	return nil
}
