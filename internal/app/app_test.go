package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/guttosm/firdspulse/config"
	"github.com/guttosm/firdspulse/internal/export"
	"github.com/guttosm/firdspulse/internal/objectstore"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Server: config.ServerConfig{Port: "8080"},
		Feed: config.FeedConfig{
			BaseURL: config.DefaultFeedBaseURL,
			From:    time.Date(2021, 1, 17, 0, 0, 0, 0, time.UTC),
			To:      time.Date(2021, 1, 19, 0, 0, 0, 0, time.UTC),
			Rows:    100,
			Timeout: 5 * time.Second,
			WorkDir: t.TempDir(),
		},
		Export:  config.ExportConfig{Format: "csv", Prefix: "CSVs"},
		Storage: config.StorageConfig{Backend: "local", Bucket: "steeleyeassessment", LocalRoot: t.TempDir()},
	}
}

func useConfig(t *testing.T, cfg config.Config) {
	t.Helper()
	old := config.AppConfig
	config.AppConfig = cfg
	t.Cleanup(func() { config.AppConfig = old })
}

func TestFeedURL(t *testing.T) {
	cfg := testConfig(t)

	got, err := FeedURL(cfg)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.HasPrefix(got, config.DefaultFeedBaseURL+"?") || !strings.Contains(got, "rows=100") {
		t.Fatalf("unexpected query url %q", got)
	}

	cfg.Feed.URL = "http://feed.local/select"
	if got, _ := FeedURL(cfg); got != cfg.Feed.URL {
		t.Fatalf("explicit FEED_URL not preferred: %q", got)
	}
}

func TestRunOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Format = "parquet"
	date := time.Date(2021, 1, 17, 0, 0, 0, 0, time.UTC)

	opts, err := RunOptions(context.Background(), cfg, date)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if opts.Format != export.FormatParquet || opts.Bucket != "steeleyeassessment" || opts.Prefix != "CSVs" {
		t.Fatalf("unexpected options %+v", opts)
	}
	if !opts.Date.Equal(date) || opts.WorkDir != cfg.Feed.WorkDir {
		t.Fatalf("date or work dir not forwarded: %+v", opts)
	}
	if _, ok := opts.Store.(*objectstore.LocalStore); !ok {
		t.Fatalf("expected local store, got %T", opts.Store)
	}
}

func TestRunOptions_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{name: "bad format", mutate: func(c *config.Config) { c.Export.Format = "xlsx" }},
		{name: "bad backend", mutate: func(c *config.Config) { c.Storage.Backend = "gcs" }},
		{name: "no feed", mutate: func(c *config.Config) { c.Feed.BaseURL = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			if _, err := RunOptions(context.Background(), cfg, time.Time{}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestOpenRunLog(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		db, repo, err := OpenRunLog(context.Background(), testConfig(t))
		if db != nil || repo != nil || err != nil {
			t.Fatalf("expected nils, got %v %v %v", db, repo, err)
		}
	})

	t.Run("open error", func(t *testing.T) {
		old := postgresOpener
		postgresOpener = func(config.Config) (*sql.DB, error) { return nil, errors.New("refused") }
		t.Cleanup(func() { postgresOpener = old })

		cfg := testConfig(t)
		cfg.RunLog.Enabled = true
		if _, _, err := OpenRunLog(context.Background(), cfg); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("migration error closes db", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock new: %v", err)
		}
		mock.ExpectClose()

		oldOpen, oldMigrate := postgresOpener, migrator
		postgresOpener = func(config.Config) (*sql.DB, error) { return db, nil }
		migrator = func(context.Context, *sql.DB) error { return errors.New("bad migration") }
		t.Cleanup(func() { postgresOpener, migrator = oldOpen, oldMigrate })

		cfg := testConfig(t)
		cfg.RunLog.Enabled = true
		if _, _, err := OpenRunLog(context.Background(), cfg); err == nil {
			t.Fatalf("expected error")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})
}

func TestInitializeApp_StorageFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "gcs"
	useConfig(t, cfg)

	r, cleanup, err := InitializeApp(context.Background())
	if err == nil || r != nil || cleanup != nil {
		t.Fatalf("expected error from InitializeApp with unknown storage backend")
	}
}

func TestInitializeApp_RunLogDisabled(t *testing.T) {
	useConfig(t, testConfig(t))

	router, cleanup, err := InitializeApp(context.Background())
	if err != nil {
		t.Fatalf("InitializeApp failed: %v", err)
	}
	defer cleanup()

	cases := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/api/v1/runs/latest", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s status=%d want %d", tc.path, w.Code, tc.want)
		}
	}
}

func TestInitializeApp_HappyPath(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	mock.ExpectPing()
	mock.ExpectQuery("SELECT (.+) FROM runs ORDER BY started_at DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectClose()

	oldOpen, oldMigrate := postgresOpener, migrator
	postgresOpener = func(config.Config) (*sql.DB, error) { return db, nil }
	migrator = func(context.Context, *sql.DB) error { return nil }
	t.Cleanup(func() { postgresOpener, migrator = oldOpen, oldMigrate })

	cfg := testConfig(t)
	cfg.RunLog.Enabled = true
	useConfig(t, cfg)

	router, cleanup, err := InitializeApp(context.Background())
	if err != nil || router == nil || cleanup == nil {
		t.Fatalf("InitializeApp failed: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("latest status=%d body=%s", w.Code, w.Body.String())
	}

	cleanup()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
