// Package export writes flattened collections to tabular files and uploads them to object storage.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/guttosm/firdspulse/internal/domain/models"
	"github.com/guttosm/firdspulse/internal/logger"
)

// ErrorLogName is the collection name of the exported error log.
const ErrorLogName = "error_rows"

const keyDateLayout = "20060102"

// ObjectStore receives the exported files.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// RunConfig carries everything one export needs. It is built per run and passed explicitly.
//
// Fields:
//   - Date: stamp used in object keys (YYYYMMDD).
//   - Bucket: destination bucket.
//   - Prefix: key folder, e.g. "CSVs".
//   - Format: csv or parquet.
//   - Store: upload target.
//   - Dir: local directory where files are written before upload.
type RunConfig struct {
	Date   time.Time
	Bucket string
	Prefix string
	Format Format
	Store  ObjectStore
	Dir    string
}

func (c RunConfig) validate() error {
	var errs []error
	if c.Date.IsZero() {
		errs = append(errs, errors.New("date is required"))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("bucket is required"))
	}
	if c.Store == nil {
		errs = append(errs, errors.New("object store is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid export config: %w", err)
	}
	return nil
}

func (c RunConfig) format() Format {
	if c.Format == "" {
		return FormatCSV
	}
	return c.Format
}

// Object describes one exported and uploaded file.
type Object struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Key  string `json:"key"`
	Rows int    `json:"rows"`
}

// ObjectKey builds "<prefix>/<name>_<YYYYMMDD>.<ext>".
func ObjectKey(prefix, name string, date time.Time, ext string) string {
	return path.Join(prefix, fmt.Sprintf("%s_%s.%s", name, date.Format(keyDateLayout), ext))
}

// Exporter writes and uploads collections.
type Exporter struct{}

// New returns an Exporter.
func New() *Exporter { return &Exporter{} }

// ExportRows writes rows under the instrument header to <Dir>/<name>.<ext> and uploads it.
func (e *Exporter) ExportRows(ctx context.Context, cfg RunConfig, name string, rows []models.InstrumentRow) (Object, error) {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.Values()
	}
	return e.export(ctx, cfg, name, models.InstrumentHeader, records)
}

// ExportErrors writes the error log to <Dir>/error_rows.<ext> and uploads it.
func (e *Exporter) ExportErrors(ctx context.Context, cfg RunConfig, errs []models.RecordError) (Object, error) {
	records := make([][]string, len(errs))
	for i, re := range errs {
		records[i] = re.Values()
	}
	return e.export(ctx, cfg, ErrorLogName, models.RecordErrorHeader, records)
}

// ExportAll exports the new, terminated and modified collections, then the error log.
// The first failure stops the export.
func (e *Exporter) ExportAll(ctx context.Context, cfg RunConfig, res *models.FlattenResult) ([]Object, error) {
	if res == nil {
		res = &models.FlattenResult{}
	}
	objects := make([]Object, 0, len(models.Categories)+1)
	for _, c := range models.Categories {
		obj, err := e.ExportRows(ctx, cfg, c.CollectionName(), res.Rows(c))
		if err != nil {
			return objects, err
		}
		objects = append(objects, obj)
	}
	obj, err := e.ExportErrors(ctx, cfg, res.Errors)
	if err != nil {
		return objects, err
	}
	return append(objects, obj), nil
}

func (e *Exporter) export(ctx context.Context, cfg RunConfig, name string, header []string, records [][]string) (Object, error) {
	if err := cfg.validate(); err != nil {
		return Object{}, err
	}
	f := cfg.format()
	start := time.Now()

	localPath := filepath.Join(cfg.Dir, name+"."+f.Ext())
	if err := writeTable(localPath, f, header, records); err != nil {
		return Object{}, fmt.Errorf("export %s: %w", name, err)
	}

	key := ObjectKey(cfg.Prefix, name, cfg.Date, f.Ext())
	if err := upload(ctx, cfg, localPath, key, f.ContentType()); err != nil {
		return Object{}, fmt.Errorf("export %s: %w", name, err)
	}

	logger.L().Info().Str("step", "export").Str("collection", name).Int("rows", len(records)).
		Str("bucket", cfg.Bucket).Str("key", key).Dur("elapsed", time.Since(start)).Msg("collection uploaded")
	return Object{Name: name, Path: localPath, Key: key, Rows: len(records)}, nil
}

func upload(ctx context.Context, cfg RunConfig, local, key, contentType string) error {
	file, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer func() { _ = file.Close() }()

	if err := cfg.Store.Put(ctx, cfg.Bucket, key, file, contentType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
