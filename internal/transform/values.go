package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/persistorai/listengraph/internal/models"
)

// FieldIssue records a present but malformed source value that was dropped.
type FieldIssue struct {
	Column string
	Value  string
	Reason string
}

// String implements fmt.Stringer.
func (f FieldIssue) String() string {
	return fmt.Sprintf("%s=%q: %s", f.Column, f.Value, f.Reason)
}

// fields reads typed, cleaned values out of one row and collects issues.
type fields struct {
	row    models.RawRow
	issues []FieldIssue
}

func (f *fields) issue(column, value, reason string) {
	f.issues = append(f.issues, FieldIssue{Column: column, Value: value, Reason: reason})
}

// text returns the trimmed value of column, or "" when blank or missing.
func (f *fields) text(column string) string {
	v, ok := f.row.Get(column)
	if !ok {
		return ""
	}

	return clean(v)
}

func (f *fields) str(column string) *string {
	s := f.text(column)
	if s == "" {
		return nil
	}

	return &s
}

func (f *fields) int(column string) *int64 {
	v, ok := f.row.Get(column)
	if !ok {
		return nil
	}

	switch n := v.(type) {
	case int64:
		return &n
	case int:
		i := int64(n)
		return &i
	case float64:
		if i, ok := integral(n); ok {
			return &i
		}
		if !math.IsNaN(n) {
			f.issue(column, strconv.FormatFloat(n, 'f', -1, 64), "not an integer")
		}
		return nil
	}

	s := clean(v)
	if s == "" {
		return nil
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &i
	}

	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		if i, ok := integral(fl); ok {
			return &i
		}
	}

	f.issue(column, s, "not an integer")

	return nil
}

func (f *fields) float(column string) *float64 {
	v, ok := f.row.Get(column)
	if !ok {
		return nil
	}

	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		return &n
	case int64:
		fl := float64(n)
		return &fl
	}

	s := clean(v)
	if s == "" {
		return nil
	}

	fl, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(fl) || math.IsInf(fl, 0) {
		f.issue(column, s, "not a number")
		return nil
	}

	return &fl
}

func (f *fields) bool(column string) *bool {
	v, ok := f.row.Get(column)
	if !ok {
		return nil
	}

	switch b := v.(type) {
	case bool:
		return &b
	case int64:
		out := b != 0
		return &out
	}

	s := clean(v)
	if s == "" {
		return nil
	}

	var out bool
	switch strings.ToLower(s) {
	case "true", "t", "1", "1.0", "yes", "y":
		out = true
	case "false", "f", "0", "0.0", "no", "n":
		out = false
	default:
		f.issue(column, s, "not a boolean")
		return nil
	}

	return &out
}

// list splits a comma-separated value, trimming tokens and dropping empty ones.
func (f *fields) list(column string) []string {
	s := f.text(column)
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" && !isNaN(p) {
			out = append(out, p)
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// timestamp parses column against layouts. It returns the parsed instant
// (nil when blank or unparsable) and the cleaned raw text.
func (f *fields) timestamp(column string, layouts []string) (*time.Time, string) {
	v, ok := f.row.Get(column)
	if !ok {
		return nil, ""
	}

	if t, ok := v.(time.Time); ok {
		utc := t.UTC()
		return &utc, t.Format(time.RFC3339Nano)
	}

	s := clean(v)
	if s == "" {
		return nil, ""
	}

	if t, ok := parseTime(s, layouts); ok {
		return &t, s
	}

	f.issue(column, s, "unrecognized timestamp")

	return nil, s
}

func parseTime(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// clean renders a primitive value as trimmed text, mapping blanks to "".
func clean(v any) string {
	var s string

	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case []byte:
		s = string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		s = fmt.Sprint(x)
	}

	s = strings.TrimSpace(s)
	if isNaN(s) {
		return ""
	}

	return s
}

func isNaN(s string) bool {
	return strings.EqualFold(s, "nan")
}

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}

	return int64(f), true
}
