// Package store is the PostgreSQL side of the migration: dimension tables,
// graph edges, listening-history facts and audio features.
//
// Every write is a parameterized multi-row statement, chunked to stay under
// PostgreSQL's bind parameter limit. Errors leaving this package are mapped
// onto the sentinels and transient marking in internal/models.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/dbpool"
)

const defaultQueryTimeout = 30 * time.Second

// maxBulkBatchSize limits the number of rows per INSERT statement to avoid
// exceeding PostgreSQL's parameter limit (65535 params).
const maxBulkBatchSize = 500

// Base contains shared dependencies for the stores in this package.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// Store implements the relational writer backend.
type Store struct {
	Base
}

// New creates a Store with the given shared base.
func New(base Base) *Store {
	return &Store{Base: base}
}

// withTimeout applies the default query timeout unless the caller already
// set a deadline, which the batch writer does per attempt.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// bulkInsert describes one multi-row INSERT. Suffix follows the VALUES list
// and carries the ON CONFLICT and RETURNING clauses.
type bulkInsert struct {
	Table   string
	Columns []string
	Suffix  string
}

// build renders the statement for rows. Every row must have len(Columns) values.
func (b bulkInsert) build(rows [][]any) (string, []any) {
	width := len(b.Columns)
	valueParts := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*width)

	placeholders := make([]string, width)
	for i, row := range rows {
		base := i*width + 1
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j)
		}
		valueParts = append(valueParts, "("+strings.Join(placeholders, ", ")+")")
		args = append(args, row...)
	}

	sql := "INSERT INTO " + b.Table + " (" + strings.Join(b.Columns, ", ") + ")\n\t\tVALUES " +
		strings.Join(valueParts, ", ")
	if b.Suffix != "" {
		sql += "\n\t\t" + b.Suffix
	}

	return sql, args
}

// chunks splits n rows into [start, end) ranges of at most maxBulkBatchSize.
func chunks(n int) [][2]int {
	var out [][2]int
	for i := 0; i < n; i += maxBulkBatchSize {
		end := i + maxBulkBatchSize
		if end > n {
			end = n
		}
		out = append(out, [2]int{i, end})
	}

	return out
}

// execBulk runs b over rows in chunks inside tx and returns the total rows affected.
func execBulk(ctx context.Context, tx pgx.Tx, b bulkInsert, rows [][]any) (int, error) {
	total := 0

	for _, c := range chunks(len(rows)) {
		sql, args := b.build(rows[c[0]:c[1]])

		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, fmt.Errorf("inserting into %s: %w", b.Table, err)
		}

		total += int(tag.RowsAffected())
	}

	return total, nil
}
