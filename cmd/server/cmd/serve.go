// cmd/server/cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"hammer/internal/app/server/api"
	"hammer/internal/domain/sync"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP-сервер синхронизации",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		be, err := openBackend(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer be.closer.Close()

		sessions, err := newSessions(cfg, be.sessions, log)
		if err != nil {
			return fmt.Errorf("failed to init auth: %w", err)
		}

		svc := sync.NewService(be.sync, log, &sync.ServiceConfig{
			SessionTTL: cfg.Sync.SessionTTL.Duration,
			GCInterval: cfg.Sync.GCInterval.Duration,
		})
		go svc.RunSessionGC(ctx)

		srv := &http.Server{
			Addr: cfg.Server.RunAddress,
			Handler: api.New(api.Deps{
				Sync:        svc,
				Sessions:    sessions,
				Storage:     be.pinger,
				CORSOrigins: cfg.Server.CORSOrigins,
			}, log),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting server",
				slog.String("address", cfg.Server.RunAddress),
				slog.String("storage", cfg.Storage),
				slog.String("auth_mode", cfg.Auth.Mode),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		log.Info("server stopped")
		return nil
	},
}
