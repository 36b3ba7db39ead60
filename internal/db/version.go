package db

import (
	"io/fs"
	"path"

	"github.com/pressly/goose/v3"
)

// SchemaVersion returns the highest goose version among the SQL migrations
// in fsys, which is the version the database reports once they are applied.
func SchemaVersion(fsys fs.FS) int64 {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0
	}

	var latest int64
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}

		v, err := goose.NumericComponent(e.Name())
		if err == nil && v > latest {
			latest = v
		}
	}

	return latest
}
