package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/firdspulse/config"
	"github.com/guttosm/firdspulse/internal/api"
	"github.com/guttosm/firdspulse/internal/logger"
	"github.com/guttosm/firdspulse/internal/service"
	"github.com/guttosm/firdspulse/internal/storage"
)

// OpenRunLog connects to Postgres and migrates the run history schema when
// RUN_LOG_ENABLED is set. It returns nils when run history is disabled.
func OpenRunLog(ctx context.Context, cfg config.Config) (*sql.DB, storage.RunsRepository, error) {
	if !cfg.RunLog.Enabled {
		return nil, nil, nil
	}

	// indirection for unit testing
	db, err := postgresOpener(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	if err := migrator(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, storage.NewRunsRepository(db), nil
}

// InitializeApp sets up all serve-mode dependencies and returns the configured Gin router,
// a cleanup function for graceful shutdown, and any initialization error.
//
// Responsibilities:
//   - Opens the optional run history (Postgres + migrations).
//   - Builds the pipeline runner and its object store from config.
//   - Creates the RunService; triggered runs are bound to ctx, not to the request.
//   - Configures the router and registers health and readiness probes.
func InitializeApp(ctx context.Context) (*gin.Engine, func(), error) {
	cfg := config.AppConfig

	db, repo, err := OpenRunLog(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if db != nil {
			_ = db.Close()
		}
	}

	opts, err := RunOptions(ctx, cfg, time.Time{})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	svc := service.NewRunService(ctx, repo, NewRunner(cfg, repo), opts)

	router := api.NewRouter(api.NewHandler(svc))

	var ping func(context.Context) error
	if db != nil {
		ping = db.PingContext
	}
	api.NewHealthHandler(ping).Register(router)

	logger.L().Info().
		Bool("run_log", db != nil).
		Str("storage", cfg.Storage.Backend).
		Str("format", string(opts.Format)).
		Msg("app initialized")

	return router, cleanup, nil
}
