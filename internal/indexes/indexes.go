// Package indexes declares the secondary indexes each backend needs and
// creates them idempotently.
package indexes

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/metrics"
)

// Kind selects the index structure.
type Kind int

// Index kinds.
const (
	// KindStandard is an ordered single-field or compound index.
	KindStandard Kind = iota
	// KindText is a full-text index over one or more string fields.
	KindText
	// KindArray indexes the elements of a list-valued field.
	KindArray
)

// Field is one indexed path. For the document backend Path is a dotted
// document path; for the relational backend it is a column name.
type Field struct {
	Path       string
	Descending bool
}

// Spec declares one index.
type Spec struct {
	// Name may be left empty for the document backend, which then derives
	// the driver's default name from the keys.
	Name   string
	Target string
	Fields []Field
	Kind   Kind
	// Sparse indexes skip entries where the first field is absent.
	Sparse bool
	Unique bool
}

// Validate checks that the spec can be created.
func (s Spec) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("index %s: at least one field is required", s.IndexName())
	}
	if s.Target == "" {
		return fmt.Errorf("index %s: target is required", s.IndexName())
	}

	return nil
}

// IndexName returns Name, or the name mongo derives for an unnamed index:
// each key and its direction or type joined by underscores.
func (s Spec) IndexName() string {
	if s.Name != "" {
		return s.Name
	}

	parts := make([]string, 0, 2*len(s.Fields))
	for _, f := range s.Fields {
		v := "1"
		switch {
		case s.Kind == KindText:
			v = "text"
		case f.Descending:
			v = "-1"
		}
		parts = append(parts, f.Path, v)
	}

	return strings.Join(parts, "_")
}

// String renders the spec for logs.
func (s Spec) String() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.Path
		if f.Descending {
			parts[i] += " desc"
		}
	}

	return fmt.Sprintf("%s on %s(%s)", s.IndexName(), s.Target, strings.Join(parts, ", "))
}

// Creator creates one index in a backend. Creating an index that already
// exists must succeed without changes.
type Creator interface {
	CreateIndex(ctx context.Context, spec Spec) error
}

// Report summarises an Ensure call.
type Report struct {
	Created int      `json:"created"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Ensure creates every index in plan. A failure is logged and recorded, and
// the remaining indexes are still attempted.
func Ensure(ctx context.Context, c Creator, plan []Spec, log *logrus.Logger) Report {
	var r Report

	for _, spec := range plan {
		if ctx.Err() != nil {
			r.Failed++
			r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", spec.IndexName(), ctx.Err()))
			continue
		}

		err := spec.Validate()
		if err == nil {
			err = c.CreateIndex(ctx, spec)
		}

		if err != nil {
			r.Failed++
			r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", spec.IndexName(), err))
			metrics.IndexCreations.WithLabelValues("failed").Inc()
			log.WithField("index", spec.String()).WithError(err).Warn("index creation failed, skipping")
			continue
		}

		r.Created++
		metrics.IndexCreations.WithLabelValues("ok").Inc()
		log.WithField("index", spec.IndexName()).Debug("index ensured")
	}

	log.WithFields(logrus.Fields{
		"created": r.Created,
		"failed":  r.Failed,
	}).Info("indexes ensured")

	return r
}

func asc(path string) Field  { return Field{Path: path} }
func desc(path string) Field { return Field{Path: path, Descending: true} }
