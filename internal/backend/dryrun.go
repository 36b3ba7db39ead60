package backend

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/config"
	"github.com/persistorai/listengraph/internal/indexes"
	"github.com/persistorai/listengraph/internal/writer"
)

// dryRun runs the whole pipeline without a store. Index creation only
// validates and logs the plan of the configured backend.
type dryRun struct {
	target string
	plan   []indexes.Spec
	w      *writer.DryRunWriter
	log    *logrus.Logger
}

func newDryRun(cfg *config.Config, base writer.Base, log *logrus.Logger) *dryRun {
	return &dryRun{
		target: cfg.Backend,
		plan:   Plan(cfg),
		w:      writer.NewDryRunWriter(base),
		log:    log,
	}
}

func (d *dryRun) Name() string                  { return d.target + " (dry run)" }
func (d *dryRun) Prepare(context.Context) error { return nil }
func (d *dryRun) Writer() writer.Writer         { return d.w }
func (d *dryRun) IndexCreator() indexes.Creator { return d }
func (d *dryRun) IndexPlan() []indexes.Spec     { return d.plan }
func (d *dryRun) Close(context.Context) error   { return nil }

// CreateIndex implements indexes.Creator.
func (d *dryRun) CreateIndex(_ context.Context, spec indexes.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	d.log.WithField("index", spec.String()).Info("dry run: would create index")

	return nil
}
