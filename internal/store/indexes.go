package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/listengraph/internal/indexes"
)

// IndexCreator creates relational indexes from index specs.
type IndexCreator struct {
	Base
}

// NewIndexCreator creates an IndexCreator with the given shared base.
func NewIndexCreator(base Base) *IndexCreator {
	return &IndexCreator{Base: base}
}

// CreateIndex implements indexes.Creator.
func (c *IndexCreator) CreateIndex(ctx context.Context, spec indexes.Spec) error {
	ddl, err := indexDDL(spec)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := c.Pool.Exec(ctx, ddl); err != nil {
		return mapError(fmt.Errorf("creating index %s: %w", spec.Name, err))
	}

	return nil
}

// indexDDL renders spec as an idempotent CREATE INDEX statement. Text indexes
// cover the english tsvector of their fields; array indexes use GIN.
func indexDDL(spec indexes.Spec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	if spec.Name == "" {
		return "", fmt.Errorf("index %s: relational indexes need an explicit name", spec.IndexName())
	}

	var b strings.Builder

	b.WriteString("CREATE ")
	if spec.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX IF NOT EXISTS ")
	b.WriteString(ident(spec.Name))
	b.WriteString(" ON ")
	b.WriteString(ident(spec.Target))

	switch spec.Kind {
	case indexes.KindText:
		parts := make([]string, len(spec.Fields))
		for i, f := range spec.Fields {
			parts[i] = "coalesce(" + ident(f.Path) + ", '')"
		}
		b.WriteString(" USING GIN (to_tsvector('english', ")
		b.WriteString(strings.Join(parts, " || ' ' || "))
		b.WriteString("))")
	case indexes.KindArray:
		cols := make([]string, len(spec.Fields))
		for i, f := range spec.Fields {
			cols[i] = ident(f.Path)
		}
		b.WriteString(" USING GIN (")
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString(")")
	default:
		cols := make([]string, len(spec.Fields))
		for i, f := range spec.Fields {
			cols[i] = ident(f.Path)
			if f.Descending {
				cols[i] += " DESC"
			}
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString(")")
	}

	if spec.Sparse {
		b.WriteString(" WHERE ")
		b.WriteString(ident(spec.Fields[0].Path))
		b.WriteString(" IS NOT NULL")
	}

	return b.String(), nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
