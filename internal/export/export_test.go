package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/guttosm/firdspulse/internal/domain/models"
)

type putCall struct {
	bucket, key, contentType string
	body                     []byte
}

type fakeStore struct {
	calls  []putCall
	failOn string
}

func (f *fakeStore) Put(_ context.Context, bucket, key string, body io.Reader, contentType string) error {
	if f.failOn != "" && strings.Contains(key, f.failOn) {
		return errors.New("upload refused")
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.calls = append(f.calls, putCall{bucket: bucket, key: key, contentType: contentType, body: b})
	return nil
}

var runDate = time.Date(2021, 1, 17, 15, 4, 0, 0, time.UTC)

func sampleResult() *models.FlattenResult {
	return &models.FlattenResult{
		New: []models.InstrumentRow{
			{ID: "DE000A1R07V3", FullName: "Kreditanstalt, fuer Wiederaufbau", ClassificationType: "DBFTFB", CommodityDerivativeIndicator: "false", Currency: "EUR", Issuer: "549300GDPG70E3MBBU98"},
			{ID: "DE000A1R07X9", FullName: "X", ClassificationType: "DBFTFB", CommodityDerivativeIndicator: "false", Currency: "EUR", Issuer: "I"},
		},
		Terminated: []models.InstrumentRow{
			{ID: "DE000A1R07C3", FullName: "T", ClassificationType: "DBFTFB", CommodityDerivativeIndicator: "true", Currency: "USD", Issuer: "I"},
		},
		Errors: []models.RecordError{
			{Index: 3, Category: models.CategoryNew, Reason: models.ReasonMissingField, Field: "Issr", Raw: "<FinInstrm><NewRcrd/></FinInstrm>"},
		},
		Total: 4,
	}
}

func TestObjectKey(t *testing.T) {
	cases := []struct {
		prefix, name, ext, want string
	}{
		{"CSVs", "dataNewRcrd", "csv", "CSVs/dataNewRcrd_20210117.csv"},
		{"CSVs/", "error_rows", "parquet", "CSVs/error_rows_20210117.parquet"},
		{"", "dataModfdRcrd", "csv", "dataModfdRcrd_20210117.csv"},
	}
	for _, tc := range cases {
		if got := ObjectKey(tc.prefix, tc.name, runDate, tc.ext); got != tc.want {
			t.Fatalf("ObjectKey(%q,%q) = %q, want %q", tc.prefix, tc.name, got, tc.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatCSV},
		{in: "CSV", want: FormatCSV},
		{in: " parquet ", want: FormatParquet},
		{in: "xlsx", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("ParseFormat(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestExportAll_CSV(t *testing.T) {
	store := &fakeStore{}
	cfg := RunConfig{Date: runDate, Bucket: "steeleyeassessment", Prefix: "CSVs", Format: FormatCSV, Store: store, Dir: t.TempDir()}

	objs, err := New().ExportAll(context.Background(), cfg, sampleResult())
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	wantKeys := []string{
		"CSVs/dataNewRcrd_20210117.csv",
		"CSVs/dataTermntdRcrd_20210117.csv",
		"CSVs/dataModfdRcrd_20210117.csv",
		"CSVs/error_rows_20210117.csv",
	}
	if len(store.calls) != len(wantKeys) || len(objs) != len(wantKeys) {
		t.Fatalf("expected %d uploads, got %d (objects %d)", len(wantKeys), len(store.calls), len(objs))
	}
	for i, k := range wantKeys {
		if store.calls[i].key != k || store.calls[i].bucket != "steeleyeassessment" || store.calls[i].contentType != "text/csv" {
			t.Fatalf("upload %d = %+v", i, store.calls[i])
		}
		if objs[i].Key != k {
			t.Fatalf("object %d key %q", i, objs[i].Key)
		}
	}

	// every exported collection has the fixed header and six fields per row
	for i := 0; i < 3; i++ {
		recs, err := csv.NewReader(bytes.NewReader(store.calls[i].body)).ReadAll()
		if err != nil {
			t.Fatalf("read csv %d: %v", i, err)
		}
		if strings.Join(recs[0], "|") != strings.Join(models.InstrumentHeader, "|") {
			t.Fatalf("header = %v", recs[0])
		}
		for _, r := range recs[1:] {
			if len(r) != 6 {
				t.Fatalf("row width %d: %v", len(r), r)
			}
		}
	}

	newRecs, _ := csv.NewReader(bytes.NewReader(store.calls[0].body)).ReadAll()
	if len(newRecs) != 3 || newRecs[1][1] != "Kreditanstalt, fuer Wiederaufbau" {
		t.Fatalf("unexpected new rows: %v", newRecs)
	}
	modRecs, _ := csv.NewReader(bytes.NewReader(store.calls[2].body)).ReadAll()
	if len(modRecs) != 1 {
		t.Fatalf("empty collection should still carry the header, got %v", modRecs)
	}

	errRecs, _ := csv.NewReader(bytes.NewReader(store.calls[3].body)).ReadAll()
	if len(errRecs) != 2 || strings.Join(errRecs[1], "|") != "3|new|missing_field|Issr|<FinInstrm><NewRcrd/></FinInstrm>" {
		t.Fatalf("unexpected error log: %v", errRecs)
	}

	if _, err := os.Stat(objs[0].Path); err != nil {
		t.Fatalf("local file missing: %v", err)
	}
}

func TestExportAll_UploadFailureStops(t *testing.T) {
	store := &fakeStore{failOn: "dataTermntdRcrd"}
	cfg := RunConfig{Date: runDate, Bucket: "b", Prefix: "CSVs", Store: store, Dir: t.TempDir()}

	objs, err := New().ExportAll(context.Background(), cfg, sampleResult())
	if err == nil || !strings.Contains(err.Error(), "upload refused") {
		t.Fatalf("expected upload error, got %v", err)
	}
	if len(objs) != 1 || len(store.calls) != 1 {
		t.Fatalf("export should stop after failure: objects=%d calls=%d", len(objs), len(store.calls))
	}
}

func TestExportRows_InvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  RunConfig
	}{
		{name: "no date", cfg: RunConfig{Bucket: "b", Store: &fakeStore{}}},
		{name: "no bucket", cfg: RunConfig{Date: runDate, Store: &fakeStore{}}},
		{name: "no store", cfg: RunConfig{Date: runDate, Bucket: "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Dir = t.TempDir()
			if _, err := New().ExportRows(context.Background(), tc.cfg, "dataNewRcrd", nil); err == nil {
				t.Fatalf("expected config error")
			}
		})
	}
}

func TestExportRows_Parquet(t *testing.T) {
	store := &fakeStore{}
	cfg := RunConfig{Date: runDate, Bucket: "b", Prefix: "CSVs", Format: FormatParquet, Store: store, Dir: t.TempDir()}
	rows := sampleResult().New

	obj, err := New().ExportRows(context.Background(), cfg, "dataNewRcrd", rows)
	if err != nil {
		t.Fatalf("export parquet: %v", err)
	}
	if obj.Key != "CSVs/dataNewRcrd_20210117.parquet" || obj.Rows != 2 {
		t.Fatalf("unexpected object %+v", obj)
	}
	body := store.calls[0].body
	if len(body) < 8 || string(body[:4]) != "PAR1" || string(body[len(body)-4:]) != "PAR1" {
		t.Fatalf("upload is not a parquet file (%d bytes)", len(body))
	}
	if store.calls[0].contentType != FormatParquet.ContentType() {
		t.Fatalf("content type %q", store.calls[0].contentType)
	}

	want := make([][]string, len(rows))
	for i, r := range rows {
		want[i] = r.Values()
	}
	assertParquet(t, body, models.InstrumentHeader, want)
}

func TestExportErrors_Parquet(t *testing.T) {
	store := &fakeStore{}
	cfg := RunConfig{Date: runDate, Bucket: "b", Prefix: "CSVs", Format: FormatParquet, Store: store, Dir: t.TempDir()}
	errs := sampleResult().Errors

	obj, err := New().ExportErrors(context.Background(), cfg, errs)
	if err != nil {
		t.Fatalf("export errors: %v", err)
	}
	if !strings.HasSuffix(obj.Key, ".parquet") || obj.Rows != 1 {
		t.Fatalf("unexpected object %+v", obj)
	}

	assertParquet(t, store.calls[0].body, []string{"Index", "Category", "Reason", "Field", "Record"}, [][]string{
		{"3", "new", models.ReasonMissingField, "Issr", "<FinInstrm><NewRcrd/></FinInstrm>"},
	})
}

// assertParquet reads body back and checks column names (in order) and every cell.
func assertParquet(t *testing.T, body []byte, header []string, want [][]string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "readback.parquet")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write readback file: %v", err)
	}
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		t.Fatalf("open readback file: %v", err)
	}
	defer func() { _ = fr.Close() }()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		t.Fatalf("parquet reader: %v", err)
	}
	defer pr.ReadStop()

	// Infos[0] is the root element.
	infos := pr.SchemaHandler.Infos
	if len(infos)-1 != len(header) {
		t.Fatalf("expected %d columns, got %d", len(header), len(infos)-1)
	}
	for i, name := range header {
		if got := infos[i+1].ExName; got != name {
			t.Fatalf("column %d: expected %q, got %q", i, name, got)
		}
	}

	n := pr.GetNumRows()
	if n != int64(len(want)) {
		t.Fatalf("expected %d rows, got %d", len(want), n)
	}
	for col := range header {
		values, _, _, err := pr.ReadColumnByIndex(int64(col), n)
		if err != nil {
			t.Fatalf("read column %d: %v", col, err)
		}
		if len(values) != len(want) {
			t.Fatalf("column %d: expected %d values, got %d", col, len(want), len(values))
		}
		for row, v := range values {
			if got := fmt.Sprint(v); got != want[row][col] {
				t.Fatalf("row %d column %s: expected %q, got %q", row, header[col], want[row][col], got)
			}
		}
	}
}
