package backend_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/backend"
	"github.com/persistorai/listengraph/internal/checkpoint"
	"github.com/persistorai/listengraph/internal/config"
	"github.com/persistorai/listengraph/internal/indexes"
	"github.com/persistorai/listengraph/internal/models"
	"github.com/persistorai/listengraph/internal/resolve"
	"github.com/persistorai/listengraph/internal/transform"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func baseConfig() *config.Config {
	return &config.Config{
		Backend:         config.BackendDocument,
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "music_db",
		MongoCollection: "listening_history",
		InputPath:       "history.csv",
		InputFormat:     "csv",
		BatchSize:       1000,
		WriteMode:       "upsert",
		Parallelism:     4,
		MaxAttempts:     3,
		RetryBackoff:    500 * time.Millisecond,
		BatchTimeout:    time.Minute,
	}
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	p := backend.RetryPolicy(baseConfig())
	if p.MaxAttempts != 3 || p.Backoff != 500*time.Millisecond || p.Timeout != time.Minute {
		t.Errorf("unexpected policy %+v", p)
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	for _, s := range backend.Plan(cfg) {
		if s.Target != "listening_history" {
			t.Errorf("document index %s targets %s", s.IndexName(), s.Target)
		}
	}

	cfg.Backend = config.BackendRelational
	if got, want := len(backend.Plan(cfg)), len(indexes.RelationalPlan()); got != want {
		t.Errorf("relational plan has %d specs, want %d", got, want)
	}
}

func TestCheckpointScope(t *testing.T) {
	t.Parallel()

	a := baseConfig()
	b := baseConfig()

	if backend.CheckpointScope(a) != backend.CheckpointScope(b) {
		t.Error("equal configs must share a scope")
	}

	b.BatchSize = 500
	if backend.CheckpointScope(a) == backend.CheckpointScope(b) {
		t.Error("batch size must change the scope")
	}

	c := baseConfig()
	c.InputPath = "other.csv"
	if backend.CheckpointScope(a) == backend.CheckpointScope(c) {
		t.Error("input path must change the scope")
	}
}

func TestCheckpoints(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	if backend.Checkpoints(cfg, quietLogger()) != nil {
		t.Error("expected checkpointing disabled without a directory")
	}

	cfg.CheckpointDir = t.TempDir()
	cfg.DryRun = true
	if backend.Checkpoints(cfg, quietLogger()) != nil {
		t.Error("expected checkpointing disabled for dry runs")
	}

	cfg.DryRun = false
	open := backend.Checkpoints(cfg, quietLogger())
	if open == nil {
		t.Fatal("expected checkpoint opener")
	}

	s, err := open()
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	defer s.Close()

	if err := s.Put(context.Background(), checkpoint.Entry{Batch: 1, Fingerprint: 9}); err != nil {
		t.Fatalf("put: %v", err)
	}
}

func TestOpen_DryRun(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.DryRun = true
	cfg.Backend = config.BackendRelational

	b, err := backend.Open(context.Background(), cfg, resolve.New(""), quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close(context.Background())

	if err := b.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	rec, _ := transform.New(nil).Transform(models.NewRawRow(models.NewHeader([]string{"username"}), 2, []any{"alice"}))
	res := b.Writer().WriteBatch(context.Background(), []models.BatchOperation{{Line: 2, Kind: models.ModeUpsert, Record: &rec}})
	if res.Inserted != 1 {
		t.Errorf("expected dry run insert, got %+v", res)
	}

	r := indexes.Ensure(context.Background(), b.IndexCreator(), b.IndexPlan(), quietLogger())
	if r.Failed != 0 || r.Created != len(indexes.RelationalPlan()) {
		t.Errorf("unexpected index report %+v", r)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Backend = "graph"

	if _, err := backend.Open(context.Background(), cfg, resolve.New(""), quietLogger()); err == nil {
		t.Error("expected error for unknown backend")
	}
}
