// Package config provides environment, file and flag driven configuration
// for a listening-history migration run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/persistorai/listengraph/internal/models"
	"github.com/persistorai/listengraph/internal/transform"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Target backends.
const (
	BackendDocument   = "document"
	BackendRelational = "relational"
)

// Config holds all run configuration values.
type Config struct {
	Backend         string `json:"backend"`
	MongoURI        Secret `json:"mongo_uri"`
	MongoDatabase   string `json:"mongo_database"`
	MongoCollection string `json:"mongo_collection"`
	DatabaseURL     Secret `json:"database_url"`

	InputPath    string `json:"input_path"`
	InputFormat  string `json:"input_format"`
	SQLiteTable  string `json:"sqlite_table"`
	CSVDelimiter string `json:"csv_delimiter"`

	BatchSize         int           `json:"batch_size"`
	WriteMode         string        `json:"write_mode"`
	CreateIndexes     bool          `json:"create_indexes"`
	Parallelism       int           `json:"parallelism"`
	MaxAttempts       int           `json:"max_attempts"`
	RetryBackoff      time.Duration `json:"retry_backoff"`
	BatchTimeout      time.Duration `json:"batch_timeout"`
	CheckpointDir     string        `json:"checkpoint_dir"`
	Resume            bool          `json:"resume"`
	DryRun            bool          `json:"dry_run"`
	MaxReportedErrors int           `json:"max_reported_errors"`
	TrackURIPrefix    string        `json:"track_uri_prefix"`
	TimestampLayouts  []string      `json:"timestamp_layouts"`

	LogLevel   string `json:"log_level"`
	LogFormat  string `json:"log_format"`
	StatusAddr string `json:"status_addr"`
}

// Load reads configuration from environment variables, overlays the YAML
// file at path when path is non-empty, applies overrides in order and
// validates the result.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	return load(path, (*Config).Validate, overrides)
}

// LoadTarget is Load for commands that only touch the target store. The
// input settings are not validated.
func LoadTarget(path string, overrides ...func(*Config)) (*Config, error) {
	return load(path, (*Config).ValidateTarget, overrides)
}

func load(path string, validate func(*Config) error, overrides []func(*Config)) (*Config, error) {
	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	for _, o := range overrides {
		o(cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Backend:          envOrDefault("LISTENGRAPH_BACKEND", BackendDocument),
		MongoURI:         Secret(envOrDefault("MONGO_URI", "")),
		MongoDatabase:    envOrDefault("MONGO_DATABASE", "music_db"),
		MongoCollection:  envOrDefault("MONGO_COLLECTION", "listening_history"),
		DatabaseURL:      Secret(envOrDefault("DATABASE_URL", "")),
		InputPath:        envOrDefault("INPUT_PATH", ""),
		InputFormat:      envOrDefault("INPUT_FORMAT", "csv"),
		SQLiteTable:      envOrDefault("SQLITE_TABLE", "listening_history"),
		CSVDelimiter:     envOrDefault("CSV_DELIMITER", ","),
		WriteMode:        envOrDefault("WRITE_MODE", "upsert"),
		CheckpointDir:    envOrDefault("CHECKPOINT_DIR", ""),
		TrackURIPrefix:   envOrDefault("TRACK_URI_PREFIX", "spotify:track:"),
		TimestampLayouts: append([]string(nil), transform.DefaultTimestampLayouts...),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "text"),
		StatusAddr:       envOrDefault("STATUS_ADDR", ""),
	}

	if v := os.Getenv("TIMESTAMP_LAYOUTS"); v != "" {
		cfg.TimestampLayouts = splitList(v)
	}

	var err error

	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"BATCH_SIZE", 1000, &cfg.BatchSize},
		{"PARALLELISM", 4, &cfg.Parallelism},
		{"MAX_ATTEMPTS", 3, &cfg.MaxAttempts},
		{"MAX_REPORTED_ERRORS", 1000, &cfg.MaxReportedErrors},
	}
	for _, i := range ints {
		if *i.dst, err = envInt(i.key, i.fallback); err != nil {
			return nil, err
		}
	}

	bools := []struct {
		key      string
		fallback bool
		dst      *bool
	}{
		{"CREATE_INDEXES", true, &cfg.CreateIndexes},
		{"RESUME", false, &cfg.Resume},
		{"DRY_RUN", false, &cfg.DryRun},
	}
	for _, b := range bools {
		if *b.dst, err = envBool(b.key, b.fallback); err != nil {
			return nil, err
		}
	}

	if cfg.RetryBackoff, err = envDuration("RETRY_BACKOFF", 500*time.Millisecond); err != nil {
		return nil, err
	}

	if cfg.BatchTimeout, err = envDuration("BATCH_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// fileConfig mirrors Config for YAML files. Nil fields leave the current value.
type fileConfig struct {
	Backend           *string  `yaml:"backend"`
	MongoURI          *string  `yaml:"mongo_uri"`
	MongoDatabase     *string  `yaml:"mongo_database"`
	MongoCollection   *string  `yaml:"mongo_collection"`
	DatabaseURL       *string  `yaml:"database_url"`
	InputPath         *string  `yaml:"input_path"`
	InputFormat       *string  `yaml:"input_format"`
	SQLiteTable       *string  `yaml:"sqlite_table"`
	CSVDelimiter      *string  `yaml:"csv_delimiter"`
	BatchSize         *int     `yaml:"batch_size"`
	WriteMode         *string  `yaml:"write_mode"`
	CreateIndexes     *bool    `yaml:"create_indexes"`
	Parallelism       *int     `yaml:"parallelism"`
	MaxAttempts       *int     `yaml:"max_attempts"`
	RetryBackoff      *string  `yaml:"retry_backoff"`
	BatchTimeout      *string  `yaml:"batch_timeout"`
	CheckpointDir     *string  `yaml:"checkpoint_dir"`
	Resume            *bool    `yaml:"resume"`
	DryRun            *bool    `yaml:"dry_run"`
	MaxReportedErrors *int     `yaml:"max_reported_errors"`
	TrackURIPrefix    *string  `yaml:"track_uri_prefix"`
	TimestampLayouts  []string `yaml:"timestamp_layouts"`
	LogLevel          *string  `yaml:"log_level"`
	LogFormat         *string  `yaml:"log_format"`
	StatusAddr        *string  `yaml:"status_addr"`
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator.
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return c.apply(f)
}

func (c *Config) apply(f fileConfig) error {
	setString(&c.Backend, f.Backend)
	setString(&c.MongoDatabase, f.MongoDatabase)
	setString(&c.MongoCollection, f.MongoCollection)
	setString(&c.InputPath, f.InputPath)
	setString(&c.InputFormat, f.InputFormat)
	setString(&c.SQLiteTable, f.SQLiteTable)
	setString(&c.CSVDelimiter, f.CSVDelimiter)
	setString(&c.WriteMode, f.WriteMode)
	setString(&c.CheckpointDir, f.CheckpointDir)
	setString(&c.TrackURIPrefix, f.TrackURIPrefix)
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.LogFormat, f.LogFormat)
	setString(&c.StatusAddr, f.StatusAddr)

	if f.MongoURI != nil {
		c.MongoURI = Secret(*f.MongoURI)
	}
	if f.DatabaseURL != nil {
		c.DatabaseURL = Secret(*f.DatabaseURL)
	}

	setValue(&c.BatchSize, f.BatchSize)
	setValue(&c.Parallelism, f.Parallelism)
	setValue(&c.MaxAttempts, f.MaxAttempts)
	setValue(&c.MaxReportedErrors, f.MaxReportedErrors)
	setValue(&c.CreateIndexes, f.CreateIndexes)
	setValue(&c.Resume, f.Resume)
	setValue(&c.DryRun, f.DryRun)

	if len(f.TimestampLayouts) > 0 {
		c.TimestampLayouts = f.TimestampLayouts
	}

	if f.RetryBackoff != nil {
		d, err := time.ParseDuration(*f.RetryBackoff)
		if err != nil {
			return fmt.Errorf("retry_backoff must be a duration: %w", err)
		}
		c.RetryBackoff = d
	}

	if f.BatchTimeout != nil {
		d, err := time.ParseDuration(*f.BatchTimeout)
		if err != nil {
			return fmt.Errorf("batch_timeout must be a duration: %w", err)
		}
		c.BatchTimeout = d
	}

	return nil
}

// Mode returns the parsed write mode. Validate guarantees it parses.
func (c *Config) Mode() models.WriteMode {
	m, _ := models.ParseWriteMode(c.WriteMode)

	return m
}

// Delimiter returns the CSV delimiter rune.
func (c *Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)

	return r
}

// TargetURI returns the connection URI of the configured backend.
func (c *Config) TargetURI() Secret {
	if c.Backend == BackendRelational {
		return c.DatabaseURL
	}

	return c.MongoURI
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setValue[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}

	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false, got %q", key, v)
	}

	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 500ms or 1m, got %q", key, v)
	}

	return d, nil
}
