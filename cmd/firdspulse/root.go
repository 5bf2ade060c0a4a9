package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/guttosm/firdspulse/config"
	"github.com/guttosm/firdspulse/internal/logger"
)

// flags holds command-line overrides. Only flags the user actually set replace config values.
type flags struct {
	workDir string
	format  string
	record  bool
	date    string
	port    string
}

func newRootCommand() *cobra.Command {
	root, _ := buildRootCommand()
	return root
}

func buildRootCommand() (*cobra.Command, *flags) {
	f := &flags{}

	root := &cobra.Command{
		Use:           "firdspulse",
		Short:         "Extract ESMA FIRDS instrument records into CSV or Parquet collections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.AppConfig = config.Load()
			logger.Init()
			return f.apply(cmd, &config.AppConfig)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&f.workDir, "work-dir", "", "Directory for the feed, archive and export files (WORK_DIR)")
	root.PersistentFlags().StringVar(&f.format, "format", "", "Export format: csv or parquet (EXPORT_FORMAT)")
	root.PersistentFlags().BoolVar(&f.record, "record", false, "Record runs in Postgres (RUN_LOG_ENABLED)")

	root.AddCommand(newRunCommand(f))
	root.AddCommand(newServeCommand(f))
	return root, f
}

// apply copies the flags the user set onto cfg and re-validates it.
func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}

	if changed("work-dir") {
		cfg.Feed.WorkDir = f.workDir
	}
	if changed("format") {
		cfg.Export.Format = strings.ToLower(strings.TrimSpace(f.format))
	}
	if changed("record") {
		cfg.RunLog.Enabled = f.record
	}
	if changed("port") {
		cfg.Server.Port = f.port
	}

	if missing := cfg.Validate(); len(missing) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// runDate parses --date (YYYY-MM-DD). Empty means today.
func (f *flags) runDate() (time.Time, error) {
	if strings.TrimSpace(f.date) == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(f.date))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", f.date)
	}
	return d, nil
}
