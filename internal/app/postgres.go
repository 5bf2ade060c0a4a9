package app

import (
	"context"
	"database/sql"
	"fmt"

	goose "github.com/pressly/goose/v3"

	"github.com/guttosm/firdspulse/config"
	"github.com/guttosm/firdspulse/db/migrations"

	_ "github.com/lib/pq" // PostgreSQL driver for database/sql
)

// sqlOpener is an indirection for unit testing; defaults to sql.Open
var sqlOpener = sql.Open

// InitPostgres opens the run history database and pings it.
//
// Parameters:
//   - cfg (config.Config): The application configuration object containing Postgres settings.
//
// Behavior:
//   - Uses the DSN computed by config (cfg.Postgres.URL).
//   - Opens a database handle with sql.Open and pings it to validate connectivity.
//   - Closes the handle again when the ping fails.
//
// Returns:
//   - *sql.DB: an open database connection pool (safe for concurrent use).
//   - error: if opening or pinging the database fails.
//
// Example usage:
//
//	db, err := app.InitPostgres(config.AppConfig)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func InitPostgres(cfg config.Config) (*sql.DB, error) {
	db, err := sqlOpener("postgres", cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// postgresOpener is an indirection used by OpenRunLog; overridden in tests to avoid real connections.
var postgresOpener = InitPostgres

// Migrate applies the embedded goose migrations.
//
// Parameters:
//   - ctx (context.Context): Bounds the migration run.
//   - db (*sql.DB): An open Postgres connection.
//
// Behavior:
//   - Points goose at migrations.FS and restores the default filesystem afterwards.
//   - Applies every pending up migration in version order.
//
// Returns:
//   - error: if the dialect cannot be set or a migration fails.
//
// Example usage:
//
//	if err := app.Migrate(ctx, db); err != nil {
//	    return err
//	}
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate run history: %w", err)
	}
	return nil
}

// migrator is an indirection used by OpenRunLog; overridden in tests.
var migrator = Migrate
