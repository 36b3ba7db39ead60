// Package source streams raw listening-history rows from a delimited text
// file or a SQLite table.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/persistorai/listengraph/internal/models"
)

// Supported input formats.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Source yields rows in source order. Next returns io.EOF after the last row.
// A *RowError from Next reports one unreadable record; reading may continue.
type Source interface {
	Header() *models.Header
	Next(ctx context.Context) (models.RawRow, error)
	Close() error
}

// RowError is a record the source could not decode.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// IsRowError reports whether err only affects a single record.
func IsRowError(err error) (*RowError, bool) {
	var re *RowError
	ok := errors.As(err, &re)

	return re, ok
}

// Config selects and parameterizes the input.
type Config struct {
	Path      string
	Format    string
	Delimiter rune
	// Table is the SQLite table to read.
	Table string
}

// Open opens the configured source and reads its header.
func Open(ctx context.Context, cfg Config) (Source, error) {
	switch cfg.Format {
	case FormatCSV, "":
		return OpenCSV(cfg.Path, cfg.Delimiter)
	case FormatSQLite:
		return OpenSQLite(ctx, cfg.Path, cfg.Table)
	default:
		return nil, fmt.Errorf("unsupported input format %q", cfg.Format)
	}
}
