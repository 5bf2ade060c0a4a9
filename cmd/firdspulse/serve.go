package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/guttosm/firdspulse/config"
	"github.com/guttosm/firdspulse/internal/app"
	"github.com/guttosm/firdspulse/internal/logger"
)

var shutdownTimeout = 10 * time.Second

func newServeCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history API and on-demand runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			router, cleanup, err := app.InitializeApp(ctx)
			if err != nil {
				return fmt.Errorf("app init: %w", err)
			}
			return serve(ctx, newServer(router, config.AppConfig.Server.Port), cleanup)
		},
	}
	cmd.Flags().StringVar(&f.port, "port", "", "Port for the API server (SERVER_PORT)")
	return cmd
}

// newServer builds the HTTP server. WriteTimeout leaves room for a triggered run.
func newServer(handler http.Handler, port string) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// serve runs srv until ctx is done or the listener fails, then shuts it down
// gracefully and calls cleanup.
func serve(ctx context.Context, srv *http.Server, cleanup func()) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.L().Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.L().Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if cleanup != nil {
		cleanup()
	}
	logger.L().Info().Msg("server exited")
	return err
}
