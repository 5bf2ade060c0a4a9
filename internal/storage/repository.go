package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	pq "github.com/lib/pq"

	"github.com/guttosm/firdspulse/internal/domain/models"
)

// DefaultListLimit caps ListRuns when the filter sets no limit.
const DefaultListLimit = 50

var runColumns = []string{
	"id", "run_date", "feed_url", "download_link", "archive_name",
	"new_count", "terminated_count", "modified_count", "error_count",
	"status", "message", "started_at", "finished_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// RunsRepository defines contract for run history operations.
type RunsRepository interface {
	InsertRun(ctx context.Context, run models.Run) error
	FinishRun(ctx context.Context, run models.Run) error
	InsertRowsBatch(ctx context.Context, runID uuid.UUID, category models.Category, rows []models.InstrumentRow) error
	InsertRecordErrors(ctx context.Context, runID uuid.UUID, errs []models.RecordError) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	LatestRun(ctx context.Context) (*models.Run, error)
	ListRuns(ctx context.Context, filter models.RunFilter) ([]models.Run, error)
}

type runsRepository struct {
	db *sql.DB
}

func NewRunsRepository(db *sql.DB) RunsRepository {
	return &runsRepository{db: db}
}

// InsertRun stores a run in its initial state.
func (r *runsRepository) InsertRun(ctx context.Context, run models.Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, run_date, feed_url, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.RunDate, run.FeedURL, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun writes the outcome of a run.
func (r *runsRepository) FinishRun(ctx context.Context, run models.Run) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET download_link = $2, archive_name = $3,
			new_count = $4, terminated_count = $5, modified_count = $6, error_count = $7,
			status = $8, message = $9, finished_at = $10
		WHERE id = $1
	`, run.ID, run.DownloadLink, run.ArchiveName,
		run.NewCount, run.TerminatedCount, run.ModifiedCount, run.ErrorCount,
		run.Status, run.Message, toNullTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, sql.ErrNoRows)
	}
	return nil
}

// InsertRowsBatch bulk-loads the rows of one category with COPY in a single transaction.
func (r *runsRepository) InsertRowsBatch(ctx context.Context, runID uuid.UUID, category models.Category, rows []models.InstrumentRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.copyIn(ctx, pq.CopyIn(
		"instrument_rows",
		"run_id",
		"category",
		"position",
		"instrument_id",
		"full_name",
		"classification_type",
		"commodity_derivative_indicator",
		"currency",
		"issuer",
	), len(rows), func(stmt *sql.Stmt, i int) error {
		row := rows[i]
		_, err := stmt.ExecContext(ctx, runID, category.String(), i,
			row.ID, row.FullName, row.ClassificationType, row.CommodityDerivativeIndicator, row.Currency, row.Issuer)
		return err
	})
}

// InsertRecordErrors bulk-loads the error log of a run.
func (r *runsRepository) InsertRecordErrors(ctx context.Context, runID uuid.UUID, errs []models.RecordError) error {
	if len(errs) == 0 {
		return nil
	}
	return r.copyIn(ctx, pq.CopyIn(
		"record_errors",
		"run_id",
		"record_index",
		"category",
		"reason",
		"field",
		"raw",
	), len(errs), func(stmt *sql.Stmt, i int) error {
		e := errs[i]
		_, err := stmt.ExecContext(ctx, runID, e.Index, e.Category.String(), e.Reason, e.Field, e.Raw)
		return err
	})
}

func (r *runsRepository) copyIn(ctx context.Context, query string, n int, exec func(stmt *sql.Stmt, i int) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Small optimization for bulk load
	if _, err := tx.ExecContext(ctx, `SET LOCAL synchronous_commit = OFF`); err != nil {
		_ = tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return err
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return err
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// GetRun returns the run with the given id, or nil when it does not exist.
func (r *runsRepository) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query, args, err := psql.Select(runColumns...).From("runs").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryOne(ctx, query, args...)
}

// LatestRun returns the most recently started run, or nil when none exist.
func (r *runsRepository) LatestRun(ctx context.Context) (*models.Run, error) {
	query, args, err := psql.Select(runColumns...).From("runs").OrderBy("started_at DESC").Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryOne(ctx, query, args...)
}

// ListRuns returns runs newest first, optionally restricted to run dates on or after filter.Since.
func (r *runsRepository) ListRuns(ctx context.Context, filter models.RunFilter) ([]models.Run, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}

	b := psql.Select(runColumns...).From("runs")
	if filter.Since != nil {
		b = b.Where(sq.GtOrEq{"run_date": *filter.Since})
	}
	query, args, err := b.OrderBy("started_at DESC").Limit(limit).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *runsRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (models.Run, error) {
	var (
		run      models.Run
		finished sql.NullTime
	)
	err := s.Scan(
		&run.ID, &run.RunDate, &run.FeedURL, &run.DownloadLink, &run.ArchiveName,
		&run.NewCount, &run.TerminatedCount, &run.ModifiedCount, &run.ErrorCount,
		&run.Status, &run.Message, &run.StartedAt, &finished,
	)
	if err != nil {
		return models.Run{}, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return run, nil
}

// toNullTime maps zero-value times to NULL (nil).
func toNullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
