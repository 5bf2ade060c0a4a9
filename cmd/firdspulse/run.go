package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/guttosm/firdspulse/config"
	"github.com/guttosm/firdspulse/internal/app"
	"github.com/guttosm/firdspulse/internal/logger"
)

func newRunCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one extraction: fetch feed, download archive, flatten, export and upload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := f.runDate()
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), config.AppConfig, date)
		},
	}
	cmd.Flags().StringVar(&f.date, "date", "", "Date stamped into object keys, YYYY-MM-DD (default today)")
	return cmd
}

// runOnce executes a single pipeline run and returns its error, if any.
func runOnce(ctx context.Context, cfg config.Config, date time.Time) error {
	db, repo, err := app.OpenRunLog(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	opts, err := app.RunOptions(ctx, cfg, date)
	if err != nil {
		return err
	}

	run, err := app.NewRunner(cfg, repo).Run(ctx, opts)
	if err != nil {
		logger.L().Error().Err(err).Str("run_id", run.ID.String()).Msg("run failed")
		return err
	}

	logger.L().Info().
		Str("run_id", run.ID.String()).
		Str("run_date", run.RunDate.Format("20060102")).
		Int("new", run.NewCount).
		Int("terminated", run.TerminatedCount).
		Int("modified", run.ModifiedCount).
		Int("errors", run.ErrorCount).
		Msg("run completed")
	return nil
}
