// Package models defines the data types that flow through a listening-history migration.
package models

// Header holds the column names shared by every row read from one source.
type Header struct {
	columns []string
	index   map[string]int
}

// NewHeader builds a Header. When a column name repeats, the first occurrence wins.
func NewHeader(columns []string) *Header {
	h := &Header{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}

	for i, c := range columns {
		if _, ok := h.index[c]; !ok {
			h.index[c] = i
		}
	}

	return h
}

// Columns returns a copy of the column names in source order.
func (h *Header) Columns() []string {
	return append([]string(nil), h.columns...)
}

// Len returns the number of columns.
func (h *Header) Len() int { return len(h.columns) }

// RawRow is one tabular record as read from a source. Values are primitive:
// string, int64, float64, bool, []byte or nil.
type RawRow struct {
	line   int
	header *Header
	values []any
}

// NewRawRow creates a row. Values beyond the header width are ignored and
// missing trailing values read as nil.
func NewRawRow(header *Header, line int, values []any) RawRow {
	return RawRow{line: line, header: header, values: values}
}

// Line returns the 1-based source line number of the row.
func (r RawRow) Line() int { return r.line }

// Get returns the value of the named column. The bool is false when the
// column is not part of the source at all.
func (r RawRow) Get(column string) (any, bool) {
	if r.header == nil {
		return nil, false
	}

	i, ok := r.header.index[column]
	if !ok {
		return nil, false
	}

	if i >= len(r.values) {
		return nil, true
	}

	return r.values[i], true
}

// StringRow converts CSV cells into a value slice.
func StringRow(cells []string) []any {
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}

	return values
}
