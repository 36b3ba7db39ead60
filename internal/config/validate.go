package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/models"
)

const (
	maxBatchSize   = 100000
	maxParallelism = 64
	maxAttempts    = 10
)

// Validate checks every setting and returns the first violation.
func (c *Config) Validate() error {
	return runChecks(
		c.validateTarget,
		c.validateInput,
		c.validateBatching,
		c.validateRetry,
		c.validateCheckpoint,
		c.validateTransform,
		c.validateLogging,
		c.validateStatus,
	)
}

// ValidateTarget checks the settings needed to connect the target store.
func (c *Config) ValidateTarget() error {
	return runChecks(
		c.validateTarget,
		c.validateBatching,
		c.validateRetry,
		c.validateLogging,
	)
}

func runChecks(checks ...func() error) error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateTarget() error {
	switch c.Backend {
	case BackendDocument:
		if c.MongoDatabase == "" || c.MongoCollection == "" {
			return fmt.Errorf("MONGO_DATABASE and MONGO_COLLECTION must not be empty")
		}
		if c.DryRun {
			return nil
		}

		return validateMongoURI(c.MongoURI.Value())
	case BackendRelational:
		if c.DryRun {
			return nil
		}

		return validateDatabaseURL(c.DatabaseURL.Value())
	default:
		return fmt.Errorf("LISTENGRAPH_BACKEND must be 'document' or 'relational', got %q", c.Backend)
	}
}

func validateMongoURI(raw string) error {
	if raw == "" {
		return fmt.Errorf("MONGO_URI is required for the document backend")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("MONGO_URI is not a valid URL: %w", err)
	}

	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return fmt.Errorf("MONGO_URI scheme must be mongodb:// or mongodb+srv://")
	}

	if u.Host == "" {
		return fmt.Errorf("MONGO_URI must include a host")
	}

	return nil
}

func validateDatabaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("DATABASE_URL is required for the relational backend")
	}

	dbURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	dbHost := dbURL.Hostname()
	if dbHost == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	if !isLoopback(dbHost) && dbURL.Query().Get("sslmode") == "disable" {
		return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
	}

	return nil
}

func (c *Config) validateInput() error {
	if c.InputPath == "" {
		return fmt.Errorf("INPUT_PATH is required")
	}

	switch c.InputFormat {
	case "csv":
		if utf8.RuneCountInString(c.CSVDelimiter) != 1 {
			return fmt.Errorf("CSV_DELIMITER must be a single character, got %q", c.CSVDelimiter)
		}
		if r := c.Delimiter(); r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
			return fmt.Errorf("CSV_DELIMITER must not be a quote or line break")
		}
	case "sqlite":
		if c.SQLiteTable == "" {
			return fmt.Errorf("SQLITE_TABLE is required when INPUT_FORMAT is sqlite")
		}
	default:
		return fmt.Errorf("INPUT_FORMAT must be 'csv' or 'sqlite', got %q", c.InputFormat)
	}

	return nil
}

func (c *Config) validateBatching() error {
	if c.BatchSize < 1 || c.BatchSize > maxBatchSize {
		return fmt.Errorf("BATCH_SIZE must be between 1 and %d, got %d", maxBatchSize, c.BatchSize)
	}

	if c.Parallelism < 1 || c.Parallelism > maxParallelism {
		return fmt.Errorf("PARALLELISM must be between 1 and %d, got %d", maxParallelism, c.Parallelism)
	}

	if _, err := models.ParseWriteMode(c.WriteMode); err != nil {
		return fmt.Errorf("WRITE_MODE: %w", err)
	}

	if c.MaxReportedErrors < 0 {
		return fmt.Errorf("MAX_REPORTED_ERRORS must not be negative")
	}

	return nil
}

func (c *Config) validateRetry() error {
	if c.MaxAttempts < 1 || c.MaxAttempts > maxAttempts {
		return fmt.Errorf("MAX_ATTEMPTS must be between 1 and %d, got %d", maxAttempts, c.MaxAttempts)
	}

	if c.RetryBackoff <= 0 {
		return fmt.Errorf("RETRY_BACKOFF must be positive")
	}

	if c.BatchTimeout <= 0 {
		return fmt.Errorf("BATCH_TIMEOUT must be positive")
	}

	return nil
}

func (c *Config) validateCheckpoint() error {
	if c.Resume && c.CheckpointDir == "" {
		return fmt.Errorf("RESUME requires CHECKPOINT_DIR")
	}

	return nil
}

func (c *Config) validateTransform() error {
	if len(c.TimestampLayouts) == 0 {
		return fmt.Errorf("TIMESTAMP_LAYOUTS must list at least one layout")
	}

	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be 'text' or 'json', got %q", c.LogFormat)
	}

	return nil
}

func (c *Config) validateStatus() error {
	if c.StatusAddr == "" {
		return nil
	}

	host, portStr, err := net.SplitHostPort(c.StatusAddr)
	if err != nil {
		return fmt.Errorf("STATUS_ADDR must be host:port: %w", err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("STATUS_ADDR port must be between 1 and 65535")
	}

	// Loopback for local runs, any-address for containers where the network
	// boundary is enforced externally.
	validHosts := map[string]bool{
		"":        true,
		"0.0.0.0": true,
		"::":      true,
	}
	if !validHosts[host] && !isLoopback(host) {
		return fmt.Errorf("STATUS_ADDR host must be a loopback address or 0.0.0.0/:: for containers (got %q)", host)
	}

	return nil
}

// isLoopback returns true if host names a loopback address.
func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}

	ip := net.ParseIP(host)

	return ip != nil && ip.IsLoopback()
}
