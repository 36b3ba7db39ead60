// Package backend selects and connects the target store of a run.
package backend

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/checkpoint"
	"github.com/persistorai/listengraph/internal/config"
	"github.com/persistorai/listengraph/internal/db"
	"github.com/persistorai/listengraph/internal/db/migrations"
	"github.com/persistorai/listengraph/internal/dbpool"
	"github.com/persistorai/listengraph/internal/docstore"
	"github.com/persistorai/listengraph/internal/indexes"
	"github.com/persistorai/listengraph/internal/migrate"
	"github.com/persistorai/listengraph/internal/resolve"
	"github.com/persistorai/listengraph/internal/store"
	"github.com/persistorai/listengraph/internal/writer"
)

// Open connects the backend cfg selects. The relational backend resolves
// entity IDs through ids. A dry run never connects.
func Open(ctx context.Context, cfg *config.Config, ids *resolve.Resolver, log *logrus.Logger) (migrate.Backend, error) {
	base := writer.Base{Mode: cfg.Mode(), Retry: RetryPolicy(cfg), Log: log}

	if cfg.DryRun {
		return newDryRun(cfg, base, log), nil
	}

	switch cfg.Backend {
	case config.BackendDocument:
		return openDocument(ctx, cfg, base, log)
	case config.BackendRelational:
		return openRelational(ctx, cfg, ids, base, log)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// RetryPolicy maps the retry settings of cfg onto the writer policy.
func RetryPolicy(cfg *config.Config) writer.RetryPolicy {
	return writer.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.RetryBackoff,
		Timeout:     cfg.BatchTimeout,
	}
}

// Plan returns the index plan of the configured backend.
func Plan(cfg *config.Config) []indexes.Spec {
	if cfg.Backend == config.BackendRelational {
		return indexes.RelationalPlan()
	}

	return indexes.DocumentPlan(cfg.MongoCollection)
}

// CheckpointScope identifies the input and target whose progress a
// checkpoint store records. Batch numbering depends on the batch size, so
// it is part of the scope.
func CheckpointScope(cfg *config.Config) string {
	return checkpoint.Scope(
		cfg.Backend,
		cfg.TargetURI().Value(),
		cfg.MongoDatabase,
		cfg.MongoCollection,
		cfg.InputFormat,
		cfg.InputPath,
		cfg.SQLiteTable,
		string(cfg.Mode()),
		strconv.Itoa(cfg.BatchSize),
	)
}

// Checkpoints returns the opener of the checkpoint store, or nil when
// checkpointing is disabled. Dry runs write nothing, so they record nothing.
func Checkpoints(cfg *config.Config, log *logrus.Logger) func() (checkpoint.Store, error) {
	if cfg.CheckpointDir == "" || cfg.DryRun {
		return nil
	}

	return func() (checkpoint.Store, error) {
		return checkpoint.OpenBadger(cfg.CheckpointDir, CheckpointScope(cfg), log)
	}
}

// document writes nested documents to MongoDB.
type document struct {
	store *docstore.Store
	w     *writer.DocumentWriter
}

func openDocument(ctx context.Context, cfg *config.Config, base writer.Base, log *logrus.Logger) (*document, error) {
	s, err := docstore.Connect(ctx, docstore.Config{
		URI:         cfg.MongoURI.Value(),
		Database:    cfg.MongoDatabase,
		Collection:  cfg.MongoCollection,
		MaxPoolSize: uint64(cfg.Parallelism) * 2,
	}, log)
	if err != nil {
		return nil, err
	}

	return &document{store: s, w: writer.NewDocumentWriter(s, base)}, nil
}

func (d *document) Name() string                      { return config.BackendDocument }
func (d *document) Prepare(ctx context.Context) error { return d.store.Ping(ctx) }
func (d *document) Writer() writer.Writer             { return d.w }
func (d *document) IndexCreator() indexes.Creator     { return d.store }
func (d *document) IndexPlan() []indexes.Spec         { return indexes.DocumentPlan(d.store.Collection()) }
func (d *document) Close(ctx context.Context) error   { return d.store.Close(ctx) }

// relational decomposes records into the normalized PostgreSQL schema.
type relational struct {
	pool *dbpool.Pool
	log  *logrus.Logger
	idx  *store.IndexCreator
	w    *writer.RelationalWriter
}

func openRelational(ctx context.Context, cfg *config.Config, ids *resolve.Resolver, base writer.Base, log *logrus.Logger) (*relational, error) {
	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), cfg.Parallelism)
	if err != nil {
		return nil, err
	}

	sb := store.Base{Pool: pool, Log: log}

	return &relational{
		pool: pool,
		log:  log,
		idx:  store.NewIndexCreator(sb),
		w:    writer.NewRelationalWriter(store.New(sb), ids, base),
	}, nil
}

func (r *relational) Name() string { return config.BackendRelational }

// Prepare applies the embedded goose migrations.
func (r *relational) Prepare(ctx context.Context) error {
	if err := r.pool.HealthCheck(ctx); err != nil {
		return err
	}

	return db.RunMigrations(ctx, r.pool, r.log, migrations.FS)
}

func (r *relational) Writer() writer.Writer         { return r.w }
func (r *relational) IndexCreator() indexes.Creator { return r.idx }
func (r *relational) IndexPlan() []indexes.Spec     { return indexes.RelationalPlan() }

func (r *relational) Close(context.Context) error {
	r.pool.Close()

	return nil
}
