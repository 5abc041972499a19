package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cleared-dev/stmtimport/internal/config"
	"github.com/cleared-dev/stmtimport/internal/engine"
	"github.com/cleared-dev/stmtimport/internal/logging"
	"github.com/cleared-dev/stmtimport/internal/rules"
	"github.com/cleared-dev/stmtimport/internal/store/postgres"
	"github.com/cleared-dev/stmtimport/internal/store/sqlite"
)

// ledgerStore is an engine store the CLI owns and must close.
type ledgerStore interface {
	engine.Store
	Close() error
}

// app is everything a command needs once the project config is loaded.
type app struct {
	cfg    *config.Config
	root   string // directory holding the config file
	store  ledgerStore
	engine *engine.Engine
}

func loadApp(ctx context.Context, configPath string) (*app, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(absPath)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	root := filepath.Dir(absPath)
	store, err := openStore(ctx, cfg, root)
	if err != nil {
		return nil, err
	}

	eng := engine.New(store, rules.FileSource{Path: config.Resolve(root, cfg.Rules.File)}, engine.Options{
		MaxSourceBytes: cfg.Import.MaxSourceBytes,
		ProgressEvery:  cfg.Import.ProgressEvery,
	})
	return &app{cfg: cfg, root: root, store: store, engine: eng}, nil
}

func openStore(ctx context.Context, cfg *config.Config, root string) (ledgerStore, error) {
	if cfg.Database.Driver == config.DriverPostgres {
		s, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := sqlite.Open(config.Resolve(root, cfg.Database.DSN))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) logDir() string {
	return config.Resolve(a.root, a.cfg.Import.LogDir)
}

func (a *app) inboxDir() string {
	return config.Resolve(a.root, a.cfg.Import.InboxDir)
}

func (a *app) checkAccount(account string) error {
	if account == "" {
		return fmt.Errorf("--account is required")
	}
	if !a.cfg.KnowsAccount(account) {
		return fmt.Errorf("unknown account %q (configured in bank_accounts)", account)
	}
	return nil
}
