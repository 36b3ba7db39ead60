package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/persistorai/listengraph/internal/indexes"
	"github.com/persistorai/listengraph/internal/models"
)

func TestIndexDDL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec indexes.Spec
		want string
	}{
		{
			name: "compound with descending field",
			spec: indexes.Spec{
				Name:   "idx_listening_history_user_played",
				Target: "listening_history",
				Fields: []indexes.Field{{Path: "user_id"}, {Path: "played_at", Descending: true}},
			},
			want: `CREATE INDEX IF NOT EXISTS "idx_listening_history_user_played" ON "listening_history" ("user_id", "played_at" DESC)`,
		},
		{
			name: "sparse",
			spec: indexes.Spec{
				Name:   "idx_listening_history_completion",
				Target: "listening_history",
				Fields: []indexes.Field{{Path: "completion_rate"}},
				Sparse: true,
			},
			want: `CREATE INDEX IF NOT EXISTS "idx_listening_history_completion" ON "listening_history" ("completion_rate") WHERE "completion_rate" IS NOT NULL`,
		},
		{
			name: "array",
			spec: indexes.Spec{
				Name:   "idx_artists_genres",
				Target: "artists",
				Fields: []indexes.Field{{Path: "genres"}},
				Kind:   indexes.KindArray,
			},
			want: `CREATE INDEX IF NOT EXISTS "idx_artists_genres" ON "artists" USING GIN ("genres")`,
		},
		{
			name: "text over two fields",
			spec: indexes.Spec{
				Name:   "idx_tracks_fts",
				Target: "tracks",
				Fields: []indexes.Field{{Path: "name"}, {Path: "isrc"}},
				Kind:   indexes.KindText,
			},
			want: `CREATE INDEX IF NOT EXISTS "idx_tracks_fts" ON "tracks" USING GIN (to_tsvector('english', coalesce("name", '') || ' ' || coalesce("isrc", '')))`,
		},
		{
			name: "unique",
			spec: indexes.Spec{
				Name:   "idx_u",
				Target: "users",
				Fields: []indexes.Field{{Path: "username"}},
				Unique: true,
			},
			want: `CREATE UNIQUE INDEX IF NOT EXISTS "idx_u" ON "users" ("username")`,
		},
		{
			name: "identifiers are quoted",
			spec: indexes.Spec{
				Name:   `bad"name`,
				Target: "users",
				Fields: []indexes.Field{{Path: "username"}},
			},
			want: `CREATE INDEX IF NOT EXISTS "bad""name" ON "users" ("username")`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := indexDDL(tc.spec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tc.want {
				t.Errorf("got  %s\nwant %s", got, tc.want)
			}
		})
	}
}

func TestIndexDDL_RelationalPlanRenders(t *testing.T) {
	t.Parallel()

	for _, spec := range indexes.RelationalPlan() {
		ddl, err := indexDDL(spec)
		if err != nil {
			t.Errorf("%s: %v", spec.Name, err)
			continue
		}

		if !strings.HasPrefix(ddl, "CREATE INDEX IF NOT EXISTS") {
			t.Errorf("%s: not idempotent: %s", spec.Name, ddl)
		}
	}
}

func TestIndexDDL_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := indexDDL(indexes.Spec{Name: "x", Target: "t"}); err == nil {
		t.Error("expected error for spec without fields")
	}

	if _, err := indexDDL(indexes.Spec{Target: "t", Fields: []indexes.Field{{Path: "a"}}}); err == nil {
		t.Error("expected error for unnamed relational index")
	}
}

func TestBulkInsertBuild(t *testing.T) {
	t.Parallel()

	b := bulkInsert{Table: "t", Columns: []string{"a", "b"}, Suffix: "ON CONFLICT DO NOTHING"}
	sql, args := b.build([][]any{{1, "x"}, {2, "y"}})

	want := "INSERT INTO t (a, b)\n\t\tVALUES ($1, $2), ($3, $4)\n\t\tON CONFLICT DO NOTHING"
	if sql != want {
		t.Errorf("got  %q\nwant %q", sql, want)
	}

	if len(args) != 4 || args[0] != 1 || args[3] != "y" {
		t.Errorf("unexpected args %v", args)
	}
}

func TestChunks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int
		want int
		last [2]int
	}{
		{n: 1, want: 1, last: [2]int{0, 1}},
		{n: maxBulkBatchSize, want: 1, last: [2]int{0, maxBulkBatchSize}},
		{n: maxBulkBatchSize + 1, want: 2, last: [2]int{maxBulkBatchSize, maxBulkBatchSize + 1}},
	}

	for _, tc := range tests {
		got := chunks(tc.n)
		if len(got) != tc.want || got[len(got)-1] != tc.last {
			t.Errorf("chunks(%d) = %v", tc.n, got)
		}
	}

	if len(chunks(0)) != 0 {
		t.Error("expected no chunks for zero rows")
	}
}

func TestListenStatementParams(t *testing.T) {
	t.Parallel()

	// Fourteen columns at five hundred rows stays far below the bind limit.
	if len(listenColumns)*maxBulkBatchSize > 65535 {
		t.Fatalf("listen chunk exceeds parameter limit")
	}

	up := listensInsert(models.ModeUpsert).Suffix
	if !strings.Contains(up, "DO UPDATE") || !strings.Contains(up, "xmax = 0") {
		t.Errorf("upsert must update and report inserts: %s", up)
	}

	ins := listensInsert(models.ModeInsert).Suffix
	if !strings.Contains(ins, "DO NOTHING") || !strings.Contains(ins, "RETURNING record_key") {
		t.Errorf("insert must skip conflicts and report writes: %s", ins)
	}
}

func TestListenOutcomes(t *testing.T) {
	t.Parallel()

	rows := []models.ListenRow{{RecordKey: "a"}, {RecordKey: "b"}, {RecordKey: "c"}}
	out := listenOutcomes(rows, map[string]bool{"a": true, "c": false})

	if out[0].Status != models.OutcomeInserted {
		t.Errorf("a: expected inserted, got %+v", out[0])
	}

	if out[1].Status != models.OutcomeFailed || !errors.Is(out[1].Err, models.ErrDuplicateKey) {
		t.Errorf("b: expected duplicate failure, got %+v", out[1])
	}

	if out[2].Status != models.OutcomeUpdated {
		t.Errorf("c: expected updated, got %+v", out[2])
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		dup       bool
		transient bool
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, dup: true},
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, transient: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, transient: true},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, transient: true},
		{name: "too many connections", err: &pgconn.PgError{Code: "53300"}, transient: true},
		{name: "foreign key", err: &pgconn.PgError{Code: "23503"}},
		{name: "wrapped unique", err: fmt.Errorf("inserting: %w", &pgconn.PgError{Code: "23505"}), dup: true},
		{name: "deadline", err: context.DeadlineExceeded, transient: true},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := mapError(tc.err)

			if errors.Is(got, models.ErrDuplicateKey) != tc.dup {
				t.Errorf("duplicate = %v, want %v", !tc.dup, tc.dup)
			}

			if models.IsTransient(got) != tc.transient {
				t.Errorf("transient = %v, want %v", !tc.transient, tc.transient)
			}
		})
	}

	if mapError(nil) != nil {
		t.Error("nil must stay nil")
	}
}
