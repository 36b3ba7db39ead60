package db_test

import (
	"testing"
	"testing/fstest"

	"github.com/persistorai/listengraph/internal/db"
	"github.com/persistorai/listengraph/internal/db/migrations"
)

func TestSchemaVersion_HighestMigration(t *testing.T) {
	fsys := fstest.MapFS{
		"001_listening_schema.sql": {Data: []byte("-- +goose Up")},
		"010_partitions.sql":       {Data: []byte("-- +goose Up")},
		"002_indexes.sql":          {Data: []byte("-- +goose Up")},
		"embed.go":                 {Data: []byte("package migrations")},
		"notes.sql":                {Data: []byte("not a migration")},
	}

	if got := db.SchemaVersion(fsys); got != 10 {
		t.Errorf("expected version 10, got %d", got)
	}
}

func TestSchemaVersion_EmbeddedMigrations(t *testing.T) {
	if got := db.SchemaVersion(migrations.FS); got != 1 {
		t.Errorf("expected embedded schema version 1, got %d", got)
	}
}

func TestSchemaVersion_Empty(t *testing.T) {
	if got := db.SchemaVersion(fstest.MapFS{}); got != 0 {
		t.Errorf("expected 0 for no migrations, got %d", got)
	}
}
