package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/persistorai/listengraph/internal/models"
)

// CSV reads a delimited text file with a header line.
type CSV struct {
	f      io.Closer
	r      *csv.Reader
	header *models.Header
}

// OpenCSV opens path and reads the header. UTF-8 input with or without a BOM
// and UTF-16 input with a BOM are decoded transparently.
func OpenCSV(path string, delimiter rune) (*CSV, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config.
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}

	c, err := NewCSV(f, delimiter)
	if err != nil {
		f.Close() //nolint:errcheck // best-effort close after header failure.

		return nil, err
	}

	return c, nil
}

// NewCSV wraps rc, which is closed by Close.
func NewCSV(rc io.ReadCloser, delimiter rune) (*CSV, error) {
	if delimiter == 0 {
		delimiter = ','
	}

	decoded := transform.NewReader(rc, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	r := csv.NewReader(decoded)
	r.Comma = delimiter
	r.FieldsPerRecord = -1 // sparse rows are padded by the header lookup

	cols, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("reading header: input is empty")
		}

		return nil, fmt.Errorf("reading header: %w", err)
	}

	for i, c := range cols {
		cols[i] = strings.TrimSpace(c)
	}

	return &CSV{f: rc, r: r, header: models.NewHeader(cols)}, nil
}

// Header implements Source.
func (c *CSV) Header() *models.Header { return c.header }

// Next implements Source. Line numbers count physical lines, so the first
// data row after a single-line header is line 2.
func (c *CSV) Next(ctx context.Context) (models.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return models.RawRow{}, err
	}

	cells, err := c.r.Read()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return models.RawRow{}, &RowError{Line: pe.StartLine, Err: pe.Err}
		}

		return models.RawRow{}, err
	}

	line, _ := c.r.FieldPos(0)

	return models.NewRawRow(c.header, line, models.StringRow(cells)), nil
}

// Close implements Source.
func (c *CSV) Close() error {
	return c.f.Close()
}
