// Package archive downloads the FIRDS data ZIP and unpacks it into the work directory.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/guttosm/firdspulse/internal/download"
	"github.com/guttosm/firdspulse/internal/logger"
)

var (
	// ErrNoDataFile is returned when an archive holds no .xml entry.
	ErrNoDataFile = errors.New("archive contains no xml data file")
	// ErrEntryConflict is returned when two entries, or an entry and a reserved work file,
	// would be extracted to the same path.
	ErrEntryConflict = errors.New("archive entry conflicts with another file")
)

// Retriever downloads and extracts data archives.
type Retriever struct {
	dl       *download.Client
	reserved []string
}

// NewRetriever builds a Retriever. A nil client falls back to download.DefaultTimeout.
//
// reserved lists file names in the work directory that extraction must never overwrite,
// such as the fetched feed.
func NewRetriever(client *http.Client, userAgent string, reserved ...string) *Retriever {
	return &Retriever{dl: download.New(client, userAgent), reserved: reserved}
}

// Retrieve downloads rawURL into dir and extracts it there.
//
// Behavior:
//   - The archive is saved as dir/<base name of the URL path>.
//   - Every regular entry is extracted into dir under its base name.
//   - Entries colliding with each other, the archive or a reserved name fail with ErrEntryConflict.
//   - Returns the path of the first .xml entry in archive order.
func (r *Retriever) Retrieve(ctx context.Context, rawURL, dir string) (string, error) {
	name, err := FileName(rawURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir %s: %w", dir, err)
	}

	start := time.Now()
	zipPath := filepath.Join(dir, name)
	n, err := r.dl.ToFile(ctx, rawURL, zipPath)
	if err != nil {
		return "", fmt.Errorf("download archive: %w", err)
	}
	logger.L().Info().Str("step", "retrieve").Str("url", rawURL).Str("archive", zipPath).Int64("bytes", n).Dur("elapsed", time.Since(start)).Msg("archive downloaded")

	extracted, err := Extract(zipPath, dir, r.reserved...)
	if err != nil {
		return "", err
	}
	data, err := DataFile(extracted)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	logger.L().Info().Str("step", "retrieve").Int("entries", len(extracted)).Str("data_file", data).Msg("archive extracted")
	return data, nil
}

// FileName derives the local archive name from the last segment of the URL path.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse archive url: %w", err)
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return "", fmt.Errorf("archive url %q has no file name", rawURL)
	}
	return base, nil
}

// Extract unpacks every regular entry of zipPath into dir and returns the written paths in archive order.
//
// Behavior:
//   - Entry names are reduced to their base name so nothing is written outside dir.
//   - The names of all entries are checked before anything is written: two entries sharing a
//     base name, or an entry named like the archive itself or one of reserved, fail with ErrEntryConflict.
func Extract(zipPath, dir string, reserved ...string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", zipPath, err)
	}
	defer func() { _ = zr.Close() }()

	taken := map[string]string{filepath.Base(zipPath): "the archive"}
	for _, name := range reserved {
		taken[name] = "a reserved file"
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(f.Name)
		if owner, ok := taken[base]; ok {
			return nil, fmt.Errorf("%w: %s collides with %s", ErrEntryConflict, f.Name, owner)
		}
		taken[base] = f.Name
	}

	var out []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dest := filepath.Join(dir, filepath.Base(f.Name))
		if err := extractEntry(f, dest); err != nil {
			return out, err
		}
		out = append(out, dest)
	}
	return out, nil
}

func extractEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	outFile, err := os.Create(dest)
	if err != nil {
		_ = rc.Close()
		return fmt.Errorf("create %s: %w", dest, err)
	}

	_, copyErr := io.Copy(outFile, rc)
	if err := errors.Join(copyErr, outFile.Close(), rc.Close()); err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("extract entry %s: %w", f.Name, err)
	}
	return nil
}

// DataFile picks the first .xml path (case-insensitive) from an extraction result.
func DataFile(paths []string) (string, error) {
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".xml") {
			return p, nil
		}
	}
	return "", ErrNoDataFile
}
