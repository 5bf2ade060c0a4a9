// Package feed downloads the FIRDS file listing and extracts the data file link from it.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/guttosm/firdspulse/internal/download"
	"github.com/guttosm/firdspulse/internal/logger"
)

// DefaultFileName is the local name of the fetched feed inside the work directory.
const DefaultFileName = "feed.xml"

const solrTimeLayout = "2006-01-02T15:04:05Z"

// Fetcher downloads the feed XML to local disk.
type Fetcher struct {
	dl *download.Client
}

// NewFetcher builds a Fetcher. A nil client falls back to a client with download.DefaultTimeout.
func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	return &Fetcher{dl: download.New(client, userAgent)}
}

// Fetch issues a GET for url and writes the response body to dest.
// Non-200 responses fail with a *download.StatusError.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	start := time.Now()
	n, err := f.dl.ToFile(ctx, url, dest)
	if err != nil {
		return fmt.Errorf("download feed: %w", err)
	}
	logger.L().Info().Str("step", "fetch").Str("url", url).Str("dest", dest).Int64("bytes", n).Dur("elapsed", time.Since(start)).Msg("feed downloaded")
	return nil
}

// BuildQueryURL returns the Solr select URL listing files published between from and to (inclusive days).
//
// Example:
//
//	BuildQueryURL(base, 2021-01-17, 2021-01-19, 100)
//	→ base?fq=publication_date:[2021-01-17T00:00:00Z TO 2021-01-19T23:59:59Z]&indent=true&q=*&rows=100&start=0&wt=xml
func BuildQueryURL(base string, from, to time.Time, rows int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse feed base url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("feed base url %q has no host", base)
	}
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return "", fmt.Errorf("invalid publication window %s..%s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	if rows <= 0 {
		rows = 100
	}
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)

	q := u.Query()
	q.Set("q", "*")
	q.Set("fq", fmt.Sprintf("publication_date:[%s TO %s]", start.Format(solrTimeLayout), end.Format(solrTimeLayout)))
	q.Set("wt", "xml")
	q.Set("indent", "true")
	q.Set("start", "0")
	q.Set("rows", fmt.Sprint(rows))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
