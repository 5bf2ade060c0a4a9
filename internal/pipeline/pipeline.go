// Package pipeline runs one FIRDS extraction end to end: fetch feed, extract link, retrieve archive,
// flatten records, export collections.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/guttosm/firdspulse/internal/archive"
	"github.com/guttosm/firdspulse/internal/domain/models"
	"github.com/guttosm/firdspulse/internal/export"
	"github.com/guttosm/firdspulse/internal/feed"
	"github.com/guttosm/firdspulse/internal/flatten"
	"github.com/guttosm/firdspulse/internal/logger"
)

// Step names used in logs and wrapped errors.
const (
	StepFetch    = "fetch feed"
	StepLink     = "extract link"
	StepRetrieve = "retrieve archive"
	StepFlatten  = "flatten records"
	StepExport   = "export"
	StepRecord   = "record run"
)

// FeedFetcher downloads the feed document.
type FeedFetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// ArchiveRetriever downloads and unpacks the data archive, returning the data file path.
type ArchiveRetriever interface {
	Retrieve(ctx context.Context, url, dir string) (string, error)
}

// Exporter writes and uploads the flattened collections.
type Exporter interface {
	ExportAll(ctx context.Context, cfg export.RunConfig, res *models.FlattenResult) ([]export.Object, error)
}

// Recorder persists run history. storage.RunsRepository satisfies it.
type Recorder interface {
	InsertRun(ctx context.Context, run models.Run) error
	FinishRun(ctx context.Context, run models.Run) error
	InsertRowsBatch(ctx context.Context, runID uuid.UUID, category models.Category, rows []models.InstrumentRow) error
	InsertRecordErrors(ctx context.Context, runID uuid.UUID, errs []models.RecordError) error
}

// Runner wires the steps of a run. Recorder is optional.
type Runner struct {
	Fetcher  FeedFetcher
	Links    func(feedPath string) (string, error)
	Archives ArchiveRetriever
	Exporter Exporter
	Recorder Recorder
	Clock    func() time.Time
}

// NewRunner returns a Runner using feed.ExtractLinkFromFile and the wall clock.
func NewRunner(f FeedFetcher, a ArchiveRetriever, e Exporter, rec Recorder) *Runner {
	return &Runner{
		Fetcher:  f,
		Links:    feed.ExtractLinkFromFile,
		Archives: a,
		Exporter: e,
		Recorder: rec,
		Clock:    time.Now,
	}
}

// Options are the per-run inputs.
//
// Fields:
//   - FeedURL: feed query URL.
//   - WorkDir: directory for feed.xml, the archive, the data file and local exports.
//   - Date: stamp for object keys; zero means today (Clock).
//   - Bucket, Prefix, Format, Store: forwarded to the exporter as export.RunConfig.
type Options struct {
	FeedURL string
	WorkDir string
	Date    time.Time
	Bucket  string
	Prefix  string
	Format  export.Format
	Store   export.ObjectStore
}

// Run executes the steps strictly in order.
//
// Behavior:
//   - Any step failure aborts the run and returns "<step>: <cause>".
//   - Per-record failures are part of the result, not errors.
//   - With a Recorder, the run is inserted as running, rows and record errors are stored,
//     and the final status is written. A failed run is still recorded on a best-effort basis.
func (r *Runner) Run(ctx context.Context, opts Options) (models.Run, error) {
	now := r.now()
	date := opts.Date
	if date.IsZero() {
		date = now
	}
	run := models.Run{
		ID:        uuid.New(),
		RunDate:   time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		FeedURL:   opts.FeedURL,
		Status:    models.RunStatusRunning,
		StartedAt: now,
	}
	log := logger.With("pipeline").With().Str("run_id", run.ID.String()).Logger()

	if r.Recorder != nil {
		if err := r.Recorder.InsertRun(ctx, run); err != nil {
			return run, fmt.Errorf("%s: %w", StepRecord, err)
		}
	}

	fail := func(step string, err error) (models.Run, error) {
		err = fmt.Errorf("%s: %w", step, err)
		run.Status = models.RunStatusFailed
		run.Message = err.Error()
		run.FinishedAt = r.now()
		log.Error().Str("step", step).Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).Err(err).Msg("run failed")
		if r.Recorder != nil {
			if recErr := r.Recorder.FinishRun(context.WithoutCancel(ctx), run); recErr != nil {
				log.Warn().Err(recErr).Msg("record failed run")
			}
		}
		return run, err
	}

	log.Info().Str("feed_url", opts.FeedURL).Str("work_dir", opts.WorkDir).Str("run_date", run.RunDate.Format("2006-01-02")).Msg("run start")

	if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
		return fail(StepFetch, fmt.Errorf("create work dir: %w", err))
	}

	feedPath := filepath.Join(opts.WorkDir, feed.DefaultFileName)
	if err := r.Fetcher.Fetch(ctx, opts.FeedURL, feedPath); err != nil {
		return fail(StepFetch, err)
	}

	link, err := r.Links(feedPath)
	if err != nil {
		return fail(StepLink, err)
	}
	run.DownloadLink = link
	if name, err := archive.FileName(link); err == nil {
		run.ArchiveName = name
	}
	log.Info().Str("step", StepLink).Str("link", link).Msg("download link found")

	dataPath, err := r.Archives.Retrieve(ctx, link, opts.WorkDir)
	if err != nil {
		return fail(StepRetrieve, err)
	}

	start := time.Now()
	doc, err := flatten.ParseFile(dataPath)
	if err != nil {
		return fail(StepFlatten, err)
	}
	res := flatten.Flatten(doc)
	run.ApplyCounts(&res)
	log.Info().Str("step", StepFlatten).Int("records", res.Total).
		Int("new", run.NewCount).Int("terminated", run.TerminatedCount).Int("modified", run.ModifiedCount).
		Int("errors", run.ErrorCount).Dur("elapsed", time.Since(start)).Msg("records flattened")
	if run.ErrorCount > 0 {
		log.Warn().Str("step", StepFlatten).Interface("reasons", countReasons(res.Errors)).Msg("records routed to error log")
	}

	cfg := export.RunConfig{
		Date:   run.RunDate,
		Bucket: opts.Bucket,
		Prefix: opts.Prefix,
		Format: opts.Format,
		Store:  opts.Store,
		Dir:    opts.WorkDir,
	}
	if _, err := r.Exporter.ExportAll(ctx, cfg, &res); err != nil {
		return fail(StepExport, err)
	}

	if r.Recorder != nil {
		if err := r.record(ctx, run.ID, &res); err != nil {
			return fail(StepRecord, err)
		}
	}

	run.Status = models.RunStatusSucceeded
	run.FinishedAt = r.now()
	if r.Recorder != nil {
		if err := r.Recorder.FinishRun(ctx, run); err != nil {
			return run, fmt.Errorf("%s: %w", StepRecord, err)
		}
	}
	log.Info().Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).Msg("run done")
	return run, nil
}

func (r *Runner) record(ctx context.Context, id uuid.UUID, res *models.FlattenResult) error {
	var errs []error
	for _, c := range models.Categories {
		if err := r.Recorder.InsertRowsBatch(ctx, id, c, res.Rows(c)); err != nil {
			errs = append(errs, fmt.Errorf("rows %s: %w", c, err))
		}
	}
	if err := r.Recorder.InsertRecordErrors(ctx, id, res.Errors); err != nil {
		errs = append(errs, fmt.Errorf("record errors: %w", err))
	}
	return errors.Join(errs...)
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock().UTC()
	}
	return time.Now().UTC()
}

func countReasons(errs []models.RecordError) map[string]int {
	out := make(map[string]int)
	for _, e := range errs {
		out[e.Reason]++
	}
	return out
}
