package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"buildbank/handlers"
	"buildbank/logger"
	"buildbank/scheduler"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the run control API and, when a schedule is set, triggers runs on it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		manager := scheduler.NewRunManager(ctx, a.runner, logger.For("runs"))

		if a.cfg.Batch.Schedule != "" {
			trigger := scheduler.NewCronTrigger(a.cfg.Batch.Schedule, manager, logger.For("cron"))
			if err := trigger.Start(); err != nil {
				return err
			}
			defer trigger.Stop()
		}

		h := handlers.NewHandlers(manager, a.prices, a.settings, logger.For("api"))
		server := &http.Server{
			Addr:              a.cfg.HTTP.Addr(),
			Handler:           handlers.NewRouter(h, a.cfg.HTTP, a.metrics, logger.For("http")),
			ReadHeaderTimeout: a.cfg.HTTP.RequestTimeout.Std(),
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info().Str("addr", server.Addr).Msg("server starting")
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
		}

		a.log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("server shutdown")
		}
		// runs derive from ctx, so they are already cancelling
		if err := manager.Wait(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("price update still running at shutdown")
		}
		return nil
	},
}
