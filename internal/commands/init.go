package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/config"
	"github.com/cleared-dev/stmtimport/internal/rules"
)

func newInitCommand() *cobra.Command {
	var accounts []string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new statement import project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.Context(), cmd.OutOrStdout(), absDir, accounts, dbPath)
		},
	}

	cmd.Flags().StringSliceVar(&accounts, "account", nil, "bank account id to register (repeatable)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path relative to the project (default ledger.db)")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, dir string, accounts []string, dbPath string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", cfgPath, err)
	}

	cfg := config.Default()
	if dbPath != "" {
		cfg.Database.DSN = dbPath
	}
	for _, id := range accounts {
		cfg.BankAccounts = append(cfg.BankAccounts, config.BankAccount{ID: id, Name: id})
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create directory structure.
	dirs := []string{
		filepath.Dir(cfg.Rules.File),
		cfg.Import.LogDir,
		cfg.Import.InboxDir,
		filepath.Join(cfg.Import.InboxDir, "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(config.Resolve(dir, cfg.Database.DSN)), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write empty categorization rules.
	if err := rules.Save(filepath.Join(dir, cfg.Rules.File), nil); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore(cfg)), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// Create the database schema.
	store, err := openStore(ctx, cfg, dir)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}

	fmt.Fprintf(out, "Initialized stmtimport project at %s\n", dir)
	return nil
}

// gitignore lists the files a project should not commit. A SQLite database
// inside the project is listed with its journal files.
func gitignore(cfg *config.Config) string {
	var b strings.Builder
	if cfg.Database.Driver == config.DriverSQLite && !filepath.IsAbs(cfg.Database.DSN) {
		db := filepath.ToSlash(filepath.Clean(cfg.Database.DSN))
		b.WriteString(db + "\n" + db + "-*\n")
	}
	b.WriteString(".env\n")
	b.WriteString(filepath.ToSlash(cfg.Import.InboxDir) + "/processed/\n")
	return b.String()
}
