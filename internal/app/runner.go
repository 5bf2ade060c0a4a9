package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/guttosm/firdspulse/config"
	"github.com/guttosm/firdspulse/internal/archive"
	"github.com/guttosm/firdspulse/internal/export"
	"github.com/guttosm/firdspulse/internal/feed"
	"github.com/guttosm/firdspulse/internal/objectstore"
	"github.com/guttosm/firdspulse/internal/pipeline"
)

// FeedURL returns cfg.Feed.URL when set, otherwise the Solr query URL built from
// the base URL, publication window and page size.
func FeedURL(cfg config.Config) (string, error) {
	if cfg.Feed.URL != "" {
		return cfg.Feed.URL, nil
	}
	return feed.BuildQueryURL(cfg.Feed.BaseURL, cfg.Feed.From, cfg.Feed.To, cfg.Feed.Rows)
}

// RunOptions resolves the per-run inputs from configuration. date may be zero (today).
func RunOptions(ctx context.Context, cfg config.Config, date time.Time) (pipeline.Options, error) {
	feedURL, err := FeedURL(cfg)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("feed url: %w", err)
	}
	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return pipeline.Options{}, err
	}
	store, err := objectstore.New(ctx, objectstore.Options{
		Backend:         cfg.Storage.Backend,
		LocalRoot:       cfg.Storage.LocalRoot,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		ForcePathStyle:  cfg.Storage.ForcePathStyle,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	})
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("object store: %w", err)
	}

	return pipeline.Options{
		FeedURL: feedURL,
		WorkDir: cfg.Feed.WorkDir,
		Date:    date,
		Bucket:  cfg.Storage.Bucket,
		Prefix:  cfg.Export.Prefix,
		Format:  format,
		Store:   store,
	}, nil
}

// NewRunner wires the pipeline steps with one shared HTTP client. rec may be nil.
func NewRunner(cfg config.Config, rec pipeline.Recorder) *pipeline.Runner {
	client := &http.Client{Timeout: cfg.Feed.Timeout}
	return pipeline.NewRunner(
		feed.NewFetcher(client, cfg.Feed.UserAgent),
		archive.NewRetriever(client, cfg.Feed.UserAgent, feed.DefaultFileName),
		export.New(),
		rec,
	)
}
