package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/listengraph/internal/api"
	"github.com/persistorai/listengraph/internal/backend"
	"github.com/persistorai/listengraph/internal/config"
	"github.com/persistorai/listengraph/internal/migrate"
	"github.com/persistorai/listengraph/internal/resolve"
	"github.com/persistorai/listengraph/internal/source"
	"github.com/persistorai/listengraph/internal/transform"
)

// runFlags are the run settings that can be given on the command line.
type runFlags struct {
	input         string
	inputFormat   string
	backend       string
	mode          string
	checkpointDir string
	statusAddr    string
	batchSize     int
	parallelism   int
	createIndexes bool
	resume        bool
	dryRun        bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.input, "input", "i", "", "Input file (env: INPUT_PATH)")
	fs.StringVar(&f.inputFormat, "input-format", "", "Input format: csv|sqlite (env: INPUT_FORMAT)")
	fs.StringVarP(&f.backend, "backend", "b", "", "Target: document|relational (env: LISTENGRAPH_BACKEND)")
	fs.StringVar(&f.mode, "mode", "", "Write mode: insert|upsert (env: WRITE_MODE)")
	fs.StringVar(&f.checkpointDir, "checkpoint-dir", "", "Checkpoint directory (env: CHECKPOINT_DIR)")
	fs.StringVar(&f.statusAddr, "status-addr", "", "Serve /healthz, /status and /metrics on host:port (env: STATUS_ADDR)")
	fs.IntVar(&f.batchSize, "batch-size", 0, "Rows per batch (env: BATCH_SIZE)")
	fs.IntVar(&f.parallelism, "parallelism", 0, "Concurrent batches (env: PARALLELISM)")
	fs.BoolVar(&f.createIndexes, "create-indexes", true, "Create indexes after loading (env: CREATE_INDEXES)")
	fs.BoolVar(&f.resume, "resume", false, "Skip batches completed by an earlier run (env: RESUME)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Transform and resolve without writing (env: DRY_RUN)")
}

// overrides applies only the flags the user set, so env and file values
// survive otherwise.
func (f *runFlags) overrides(cmd *cobra.Command) func(*config.Config) {
	changed := cmd.Flags().Changed

	return func(c *config.Config) {
		if changed("input") {
			c.InputPath = f.input
		}
		if changed("input-format") {
			c.InputFormat = f.inputFormat
		}
		if changed("backend") {
			c.Backend = f.backend
		}
		if changed("mode") {
			c.WriteMode = f.mode
		}
		if changed("checkpoint-dir") {
			c.CheckpointDir = f.checkpointDir
		}
		if changed("status-addr") {
			c.StatusAddr = f.statusAddr
		}
		if changed("batch-size") {
			c.BatchSize = f.batchSize
		}
		if changed("parallelism") {
			c.Parallelism = f.parallelism
		}
		if changed("create-indexes") {
			c.CreateIndexes = f.createIndexes
		}
		if changed("resume") {
			c.Resume = f.resume
		}
		if changed("dry-run") {
			c.DryRun = f.dryRun
		}
	}
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Migrate the input into the target store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(); err != nil {
				return err
			}

			cfg, err := config.Load(flagConfig, globalOverrides(cmd), flags.overrides(cmd))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := runMigration(ctx, cfg, newLogger(cfg))
			if err != nil {
				return err
			}

			return printReport(cmd.OutOrStdout(), report, flagFmt)
		},
	}

	flags.register(cmd)

	return cmd
}

// newMigrator wires a Migrator for cfg.
func newMigrator(cfg *config.Config, log *logrus.Logger) *migrate.Migrator {
	ids := resolve.New(cfg.TrackURIPrefix)

	return migrate.New(migrate.Deps{
		Connect: func(ctx context.Context) (migrate.Backend, error) {
			return backend.Open(ctx, cfg, ids, log)
		},
		OpenSource: func(ctx context.Context) (source.Source, error) {
			return source.Open(ctx, source.Config{
				Path:      cfg.InputPath,
				Format:    cfg.InputFormat,
				Delimiter: cfg.Delimiter(),
				Table:     cfg.SQLiteTable,
			})
		},
		OpenCheckpoints: backend.Checkpoints(cfg, log),
		Transformer:     transform.New(cfg.TimestampLayouts),
		Resolver:        ids,
		Log:             log,
	}, migrate.Options{
		BatchSize:         cfg.BatchSize,
		Parallelism:       cfg.Parallelism,
		Mode:              cfg.Mode(),
		CreateIndexes:     cfg.CreateIndexes,
		Resume:            cfg.Resume,
		DryRun:            cfg.DryRun,
		MaxReportedErrors: cfg.MaxReportedErrors,
	})
}

// runMigration runs one migration, with the status server alongside it
// when configured. The server stops once the run is over.
func runMigration(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*migrate.Report, error) {
	m := newMigrator(cfg, log)

	if cfg.StatusAddr == "" {
		return m.Run(ctx)
	}

	srv, err := api.Listen(cfg.StatusAddr, api.NewRouter(api.RouterDeps{
		Log:      log,
		Progress: m,
		Version:  config.Version,
	}), log)
	if err != nil {
		return nil, err
	}

	serveCtx, stopServer := context.WithCancel(context.WithoutCancel(ctx))

	var g errgroup.Group
	g.Go(func() error { return srv.Serve(serveCtx) })

	report, runErr := m.Run(ctx)
	stopServer()

	if err := g.Wait(); err != nil {
		log.WithError(err).Warn("status server stopped with error")
	}

	return report, runErr
}
