package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var envKeys = []string{
	"LISTENGRAPH_BACKEND", "MONGO_URI", "MONGO_DATABASE", "MONGO_COLLECTION", "DATABASE_URL",
	"INPUT_PATH", "INPUT_FORMAT", "SQLITE_TABLE", "CSV_DELIMITER", "BATCH_SIZE", "WRITE_MODE",
	"CREATE_INDEXES", "PARALLELISM", "MAX_ATTEMPTS", "RETRY_BACKOFF", "BATCH_TIMEOUT",
	"CHECKPOINT_DIR", "RESUME", "DRY_RUN", "MAX_REPORTED_ERRORS", "TRACK_URI_PREFIX",
	"TIMESTAMP_LAYOUTS", "LOG_LEVEL", "LOG_FORMAT", "STATUS_ADDR",
}

// cleanEnv blanks every config variable for the duration of the test.
func cleanEnv(t *testing.T) {
	t.Helper()

	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")
}

// execute runs a fresh root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()

	var out strings.Builder
	root.SetOut(&out)
	root.SetErr(&strings.Builder{})
	root.SetArgs(args)

	_, err := root.ExecuteC()

	return out.String(), err
}

// writeCSV writes a listening-history file with the given data lines.
func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history.csv")
	content := "spotify_track_uri,ts_x,username,ms_played_x,Track Duration (ms)_releases,master_metadata_album_artist_name_x\n" +
		strings.Join(lines, "\n") + "\n"

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing csv: %v", err)
	}

	return path
}
