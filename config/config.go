package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFeedBaseURL is the ESMA FIRDS Solr endpoint listing published data files.
const DefaultFeedBaseURL = "https://registers.esma.europa.eu/solr/esma_registers_firds_files/select"

// Config holds the full application configuration loaded from environment variables or .env file.
//
// Example ENV equivalent:
//
//	SERVER_PORT=8080
//	FEED_FROM=2021-01-17
//	FEED_TO=2021-01-19
//	WORK_DIR=./data
//	STORAGE_BACKEND=s3
//	STORAGE_BUCKET=steeleyeassessment
//	RUN_LOG_ENABLED=true
//	POSTGRES_HOST=localhost
type Config struct {
	Server   ServerConfig   // HTTP server configuration (serve mode)
	Postgres PostgresConfig // PostgreSQL connection settings (run history)
	Feed     FeedConfig     // Feed and archive download settings
	Export   ExportConfig   // Output format and object keys
	Storage  StorageConfig  // Object storage destination
	RunLog   RunLogConfig   // Run history recording
}

// ServerConfig holds HTTP server settings such as the port to listen on.
type ServerConfig struct {
	Port string
}

// PostgresConfig defines connection details for PostgreSQL.
//
// Fields:
//   - Host: hostname of the database server.
//   - Port: port number of the database server (default 5432).
//   - User: username for authentication.
//   - Password: password for authentication.
//   - DBName: target database name.
//   - SSLMode: SSL mode (e.g., "disable", "require").
//   - URL: computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// FeedConfig controls where the feed is fetched from and how downloads behave.
//
// URL wins when set; otherwise the query URL is built from BaseURL, From, To and Rows.
type FeedConfig struct {
	URL       string
	BaseURL   string
	From      time.Time
	To        time.Time
	Rows      int
	Timeout   time.Duration
	UserAgent string
	WorkDir   string
}

// ExportConfig selects the tabular format and the object key prefix.
type ExportConfig struct {
	Format string // csv | parquet
	Prefix string // object key folder, e.g. "CSVs"
}

// StorageConfig describes the object store receiving the exports.
type StorageConfig struct {
	Backend         string // s3 | local
	Bucket          string
	LocalRoot       string
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// RunLogConfig toggles Postgres run history.
type RunLogConfig struct {
	Enabled bool
}

// AppConfig is the globally accessible configuration instance, populated once via LoadConfig().
var AppConfig Config

// LoadConfig initializes the global AppConfig by reading from .env file
// or directly from environment variables.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//
// Fatal exit:
//   - If required variables are missing, validateConfig() terminates the app.
func LoadConfig() {
	AppConfig = Load()

	validateConfig()
}

// Load reads defaults, the optional .env file and the environment, without validating.
//
// Callers that apply further overrides (command-line flags) use Load and then
// Config.Validate, so an invalid environment value can still be corrected.
func Load() Config {
	setDefaults()

	// Optionally read from .env if present (common in local dev)
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig() // ignore error if no .env

	viper.AutomaticEnv()

	return fromViper()
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "postgres")
	viper.SetDefault("POSTGRES_DB", "firdspulse")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("RUN_LOG_ENABLED", false)

	viper.SetDefault("FEED_URL", "")
	viper.SetDefault("FEED_BASE_URL", DefaultFeedBaseURL)
	viper.SetDefault("FEED_FROM", "2021-01-17")
	viper.SetDefault("FEED_TO", "2021-01-19")
	viper.SetDefault("FEED_ROWS", 100)
	viper.SetDefault("HTTP_TIMEOUT", "120s")
	viper.SetDefault("HTTP_USER_AGENT", "firdspulse/1.0 (Go-client)")
	viper.SetDefault("WORK_DIR", ".")

	viper.SetDefault("EXPORT_FORMAT", "csv")
	viper.SetDefault("EXPORT_PREFIX", "CSVs")

	viper.SetDefault("STORAGE_BACKEND", "s3")
	viper.SetDefault("STORAGE_BUCKET", "steeleyeassessment")
	viper.SetDefault("STORAGE_LOCAL_ROOT", "./objectstore")
	viper.SetDefault("AWS_REGION", "eu-west-1")
	viper.SetDefault("S3_ENDPOINT", "")
	viper.SetDefault("S3_FORCE_PATH_STYLE", false)
}

func fromViper() Config {
	cfg := Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetInt("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
			SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		},
		Feed: FeedConfig{
			URL:       viper.GetString("FEED_URL"),
			BaseURL:   viper.GetString("FEED_BASE_URL"),
			From:      parseDate(viper.GetString("FEED_FROM")),
			To:        parseDate(viper.GetString("FEED_TO")),
			Rows:      viper.GetInt("FEED_ROWS"),
			Timeout:   viper.GetDuration("HTTP_TIMEOUT"),
			UserAgent: viper.GetString("HTTP_USER_AGENT"),
			WorkDir:   viper.GetString("WORK_DIR"),
		},
		Export: ExportConfig{
			Format: strings.ToLower(viper.GetString("EXPORT_FORMAT")),
			Prefix: viper.GetString("EXPORT_PREFIX"),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(viper.GetString("STORAGE_BACKEND")),
			Bucket:          viper.GetString("STORAGE_BUCKET"),
			LocalRoot:       viper.GetString("STORAGE_LOCAL_ROOT"),
			Region:          viper.GetString("AWS_REGION"),
			Endpoint:        viper.GetString("S3_ENDPOINT"),
			ForcePathStyle:  viper.GetBool("S3_FORCE_PATH_STYLE"),
			AccessKeyID:     viper.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: viper.GetString("AWS_SECRET_ACCESS_KEY"),
		},
		RunLog: RunLogConfig{
			Enabled: viper.GetBool("RUN_LOG_ENABLED"),
		},
	}

	cfg.Postgres.URL = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
	return cfg
}

// parseDate accepts YYYY-MM-DD and returns the zero time for anything else.
func parseDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return d
}

// Validate returns the names of required variables that are missing or invalid.
func (c Config) Validate() []string {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if c.Feed.URL == "" {
		if c.Feed.BaseURL == "" {
			missing = append(missing, "FEED_BASE_URL")
		}
		if c.Feed.From.IsZero() {
			missing = append(missing, "FEED_FROM")
		}
		if c.Feed.To.IsZero() {
			missing = append(missing, "FEED_TO")
		}
	}
	if c.Feed.WorkDir == "" {
		missing = append(missing, "WORK_DIR")
	}
	if c.Export.Format != "csv" && c.Export.Format != "parquet" {
		missing = append(missing, "EXPORT_FORMAT")
	}
	if c.Storage.Bucket == "" {
		missing = append(missing, "STORAGE_BUCKET")
	}
	switch c.Storage.Backend {
	case "s3":
		if c.Storage.Region == "" {
			missing = append(missing, "AWS_REGION")
		}
	case "local":
		if c.Storage.LocalRoot == "" {
			missing = append(missing, "STORAGE_LOCAL_ROOT")
		}
	default:
		missing = append(missing, "STORAGE_BACKEND")
	}
	if c.RunLog.Enabled {
		if c.Postgres.Host == "" {
			missing = append(missing, "POSTGRES_HOST")
		}
		if c.Postgres.Port == 0 {
			missing = append(missing, "POSTGRES_PORT")
		}
		if c.Postgres.User == "" {
			missing = append(missing, "POSTGRES_USER")
		}
		if c.Postgres.DBName == "" {
			missing = append(missing, "POSTGRES_DB")
		}
	}
	return missing
}

// validateConfig terminates the application when required variables are missing.
func validateConfig() {
	if missing := AppConfig.Validate(); len(missing) > 0 {
		log.Fatalf("missing or invalid environment variables: %v\n", missing)
	}
}
