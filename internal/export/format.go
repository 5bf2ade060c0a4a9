package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Format is the tabular file format of an export.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts "csv" or "parquet" (case-insensitive). Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// ContentType returns the MIME type sent with uploads.
func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "text/csv"
}

// writeTable writes header and records to path in the given format.
func writeTable(path string, f Format, header []string, records [][]string) error {
	switch f {
	case FormatParquet:
		return writeParquet(path, header, records)
	case FormatCSV, "":
		return writeCSV(path, header, records)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func writeCSV(path string, header []string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		_ = file.Close()
		return fmt.Errorf("write header %s: %w", path, err)
	}
	if err := w.WriteAll(records); err != nil {
		_ = file.Close()
		return fmt.Errorf("write rows %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// writeParquet stores every column as a UTF8 byte array, SNAPPY compressed.
func writeParquet(path string, header []string, records [][]string) error {
	meta := make([]string, len(header))
	for i, h := range header {
		meta[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", h)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet %s: %w", path, err)
	}
	pw, err := writer.NewCSVWriter(meta, fw, 4)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("init parquet writer %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for n, rec := range records {
		vals := make([]*string, len(rec))
		for i := range rec {
			v := rec[i]
			vals[i] = &v
		}
		if err := pw.WriteString(vals); err != nil {
			_ = fw.Close()
			return fmt.Errorf("write parquet row %d: %w", n, err)
		}
	}

	if err := errors.Join(pw.WriteStop(), fw.Close()); err != nil {
		return fmt.Errorf("finalize parquet %s: %w", path, err)
	}
	return nil
}
