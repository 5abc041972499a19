package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/server"
)

func newServeCommand(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP import API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			srv := server.New(a.engine, server.Options{
				MaxSourceBytes: a.cfg.Import.MaxSourceBytes,
				CommitTimeout:  a.cfg.Import.CommitTimeout,
				KnowsAccount:   a.cfg.KnowsAccount,
				LogDir:         a.logDir(),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(addr)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			slog.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown error", "error", err)
				return err
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			slog.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
