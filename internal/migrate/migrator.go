// Package migrate runs one migration: it connects the backend, streams the
// input through transform, resolve and write in concurrent batches, creates
// indexes and reports the totals.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/checkpoint"
	"github.com/persistorai/listengraph/internal/indexes"
	"github.com/persistorai/listengraph/internal/models"
	"github.com/persistorai/listengraph/internal/resolve"
	"github.com/persistorai/listengraph/internal/source"
	"github.com/persistorai/listengraph/internal/transform"
	"github.com/persistorai/listengraph/internal/writer"
)

// Run defaults.
const (
	DefaultBatchSize   = 1000
	DefaultParallelism = 4
)

const closeTimeout = 10 * time.Second

// Backend is one target store, connected and ready to write.
type Backend interface {
	Name() string
	// Prepare creates whatever schema the backend needs before loading.
	Prepare(ctx context.Context) error
	Writer() writer.Writer
	IndexCreator() indexes.Creator
	IndexPlan() []indexes.Spec
	Close(ctx context.Context) error
}

// Deps opens the resources of a run. Connect and OpenSource are required;
// a nil OpenCheckpoints disables checkpointing.
type Deps struct {
	Connect         func(ctx context.Context) (Backend, error)
	OpenSource      func(ctx context.Context) (source.Source, error)
	OpenCheckpoints func() (checkpoint.Store, error)

	Transformer *transform.Transformer
	Resolver    *resolve.Resolver
	Log         *logrus.Logger
}

// Options tune a run.
type Options struct {
	BatchSize         int
	Parallelism       int
	Mode              models.WriteMode
	CreateIndexes     bool
	Resume            bool
	DryRun            bool
	MaxReportedErrors int
}

// Migrator drives a single run through its states. State and Snapshot may
// be called from other goroutines while Run is in progress.
type Migrator struct {
	deps        Deps
	opts        Options
	log         *logrus.Logger
	transformer *transform.Transformer
	resolver    *resolve.Resolver
	stats       *statsAccumulator

	mu          sync.RWMutex
	state       State
	started     bool
	backendName string
}

// New creates a Migrator in the idle state.
func New(deps Deps, opts Options) *Migrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.Mode == "" {
		opts.Mode = models.ModeUpsert
	}

	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	t := deps.Transformer
	if t == nil {
		t = transform.New(nil)
	}

	r := deps.Resolver
	if r == nil {
		r = resolve.New("")
	}

	return &Migrator{
		deps:        deps,
		opts:        opts,
		log:         log,
		transformer: t,
		resolver:    r,
		stats:       newStatsAccumulator(opts.MaxReportedErrors),
		state:       StateIdle,
	}
}

// State returns the current state.
func (m *Migrator) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// Snapshot returns a copy of the counters so far.
func (m *Migrator) Snapshot() Stats {
	return m.stats.snapshot()
}

// Run performs the migration. It returns an error only when the backend,
// checkpoint store or input could not be opened; every later problem is
// counted in the report instead. Cancelling ctx stops dispatching new
// batches and lets in-flight ones finish.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil, errors.New("migration already started")
	}
	m.started = true
	m.mu.Unlock()

	start := time.Now()
	m.transition(StateConnecting)

	res, err := m.connect(ctx)
	if err != nil {
		m.log.WithError(err).Error("connecting failed")
		m.transition(StateFailed)

		return nil, err
	}
	defer res.close(m.log)

	m.transition(StateSchemaReady)
	m.transition(StateMigrating)

	canceled := m.migrate(ctx, res)

	m.transition(StateIndexing)
	idx := m.ensureIndexes(ctx, res.backend, canceled)

	m.transition(StateReporting)
	report := m.buildReport(idx, canceled, time.Since(start))
	m.logReport(report)

	m.transition(StateDone)

	return report, nil
}

// resources are what a run opens while connecting.
type resources struct {
	backend     Backend
	src         source.Source
	checkpoints checkpoint.Store
}

func (r *resources) close(log *logrus.Logger) {
	if r.src != nil {
		if err := r.src.Close(); err != nil {
			log.WithError(err).Warn("closing input")
		}
	}

	if r.checkpoints != nil {
		if err := r.checkpoints.Close(); err != nil {
			log.WithError(err).Warn("closing checkpoint store")
		}
	}

	if r.backend != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		if err := r.backend.Close(ctx); err != nil {
			log.WithError(err).Warn("closing backend")
		}
	}
}

func (m *Migrator) connect(ctx context.Context) (*resources, error) {
	if m.deps.Connect == nil || m.deps.OpenSource == nil {
		return nil, errors.New("migration needs a backend and an input")
	}

	res := &resources{}

	backend, err := m.deps.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to backend: %w", err)
	}
	res.backend = backend

	m.mu.Lock()
	m.backendName = backend.Name()
	m.mu.Unlock()

	if err := backend.Prepare(ctx); err != nil {
		res.close(m.log)
		return nil, fmt.Errorf("preparing %s schema: %w", backend.Name(), err)
	}

	if m.deps.OpenCheckpoints != nil {
		cp, err := m.deps.OpenCheckpoints()
		if err != nil {
			res.close(m.log)
			return nil, fmt.Errorf("opening checkpoint store: %w", err)
		}
		res.checkpoints = cp

		if !m.opts.Resume {
			if err := cp.Clear(ctx); err != nil {
				res.close(m.log)
				return nil, fmt.Errorf("clearing checkpoints: %w", err)
			}
		}
	}

	src, err := m.deps.OpenSource(ctx)
	if err != nil {
		res.close(m.log)
		return nil, fmt.Errorf("opening input: %w", err)
	}
	res.src = src

	m.log.WithFields(logrus.Fields{
		"backend": backend.Name(),
		"columns": src.Header().Len(),
		"resume":  m.opts.Resume,
	}).Info("connected")

	return res, nil
}

func (m *Migrator) ensureIndexes(ctx context.Context, b Backend, canceled bool) *indexes.Report {
	if !m.opts.CreateIndexes {
		m.log.Info("index creation disabled")
		return nil
	}

	if canceled {
		m.log.Warn("run canceled, skipping index creation")
		return nil
	}

	r := indexes.Ensure(ctx, b.IndexCreator(), b.IndexPlan(), m.log)

	return &r
}

func (m *Migrator) logReport(r *Report) {
	entry := m.log.WithFields(logrus.Fields{
		"backend":            r.Backend,
		"total_records":      r.TotalRecords,
		"processed":          r.Processed,
		"inserted":           r.Inserted,
		"updated":            r.Updated,
		"failed":             r.Failed,
		"resumed":            r.Resumed,
		"success_rate":       fmt.Sprintf("%.2f", r.SuccessRatePercent),
		"records_per_second": fmt.Sprintf("%.1f", r.RecordsPerSecond),
		"duration":           r.Duration.Round(time.Millisecond).String(),
	})

	if r.Canceled {
		entry.Warn("migration canceled")
		return
	}

	entry.Info("migration completed")
}
