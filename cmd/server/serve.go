package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"credentials/internal/platform/config"
	"credentials/internal/platform/httpserver"
	"credentials/internal/platform/logger"
	"credentials/internal/platform/postgres"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.IsDevelopment())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if migrateFirst && cfg.DatabaseURL != "" {
				if err := postgres.MigrateUp(cfg.DatabaseURL, log); err != nil {
					return err
				}
			}

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			srv := httpserver.New(cfg.Addr, a.router)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return a.events.Run(gctx)
			})
			g.Go(func() error {
				log.Info("starting server", "addr", cfg.Addr, "env", cfg.Environment, "storage", cfg.Storage.Backend)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				log.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}
