package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"

	_ "modernc.org/sqlite" // register the sqlite driver

	"github.com/persistorai/listengraph/internal/models"
)

// SQLite reads every row of one table, opened read-only.
type SQLite struct {
	db     *sql.DB
	rows   *sql.Rows
	header *models.Header
	line   int
}

// OpenSQLite opens the database at path and starts a scan of table. Line
// numbers are 1-based row positions.
func OpenSQLite(ctx context.Context, path, table string) (*SQLite, error) {
	if table == "" {
		return nil, fmt.Errorf("sqlite table is required")
	}

	dsn := "file:" + path + "?" + url.Values{"mode": {"ro"}}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table)) //nolint:gosec // identifier is quoted.
	if err != nil {
		db.Close() //nolint:errcheck // best-effort close after query failure.

		return nil, fmt.Errorf("query table %s: %w", table, err)
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close() //nolint:errcheck // best-effort close.
		db.Close()   //nolint:errcheck // best-effort close.

		return nil, fmt.Errorf("read columns: %w", err)
	}

	return &SQLite{db: db, rows: rows, header: models.NewHeader(cols)}, nil
}

// Header implements Source.
func (s *SQLite) Header() *models.Header { return s.header }

// Next implements Source.
func (s *SQLite) Next(ctx context.Context) (models.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return models.RawRow{}, err
	}

	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return models.RawRow{}, fmt.Errorf("scan table: %w", err)
		}

		return models.RawRow{}, io.EOF
	}

	values := make([]any, s.header.Len())
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}

	s.line++
	if err := s.rows.Scan(dest...); err != nil {
		return models.RawRow{}, &RowError{Line: s.line, Err: err}
	}

	return models.NewRawRow(s.header, s.line, values), nil
}

// Close implements Source.
func (s *SQLite) Close() error {
	s.rows.Close() //nolint:errcheck // closing the db reports the meaningful error.

	return s.db.Close()
}

func quoteIdent(name string) string {
	out := []byte{'"'}
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, name[i])
	}

	return string(append(out, '"'))
}
