package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tenanthooks/internal/api"
	"tenanthooks/internal/buildinfo"
	"tenanthooks/internal/logging"
	"tenanthooks/internal/webhooks"
)

func newServeCmd() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("migrate") {
				cfg.Database.Migrate = migrateFirst
			}
			d, err := buildDeps(cfg, cfg.Database.Migrate)
			if err != nil {
				return err
			}
			defer d.Close()

			queue := webhooks.NewQueue(d.dispatcher.Dispatch, cfg.Webhook.QueueSize, cfg.Webhook.Workers)
			srv := api.NewServer(api.Deps{
				Store:      d.store,
				Dispatcher: d.dispatcher,
				Queue:      queue,
				Auth:       newVerifier(cfg),
				Broker:     d.broker,
				Config:     cfg,
			})
			httpSrv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           srv.Routes(),
				ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logging.Info().Str("addr", httpSrv.Addr).Str("version", buildinfo.Version).Msg("API listening")
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			case <-ctx.Done():
			}

			logging.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("http shutdown")
			}
			if err := queue.Close(shutdownCtx); err != nil {
				logging.Warn().Err(err).Int("pending", queue.Len()).Msg("webhook queue did not drain")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "Run database migrations before starting the server (overrides DB_MIGRATE)")

	return cmd
}
