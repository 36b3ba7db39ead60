// Package checkpoint records completed batches so an interrupted migration
// can skip work it already wrote.
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"
)

// Entry describes one completed batch.
type Entry struct {
	Batch       int       `json:"batch"`
	Fingerprint uint64    `json:"fingerprint"`
	Rows        int       `json:"rows"`
	Inserted    int       `json:"inserted"`
	Updated     int       `json:"updated"`
	Failed      int       `json:"failed"`
	CompletedAt time.Time `json:"completed_at"`
}

// Store persists entries per batch sequence number.
type Store interface {
	// Get returns the entry for batch, or nil when none was recorded.
	Get(ctx context.Context, batch int) (*Entry, error)
	Put(ctx context.Context, e Entry) error
	// Clear removes every entry in the store's scope.
	Clear(ctx context.Context) error
	Close() error
}

// Fingerprint hashes the record keys of a batch in order. A batch is only
// skipped on resume when the input still yields the same keys.
func Fingerprint(keys []string) uint64 {
	h := xxh3.New()
	for _, k := range keys {
		_, _ = h.WriteString(k)
		_, _ = h.WriteString("\n")
	}

	return h.Sum64()
}

// Scope derives the key prefix that separates checkpoints of different
// inputs and targets sharing one directory.
func Scope(parts ...string) string {
	h := xxh3.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.WriteString("\x00")
	}

	return fmt.Sprintf("checkpoint:%016x:", h.Sum64())
}

// Matches reports whether e records a fully written batch with the given
// fingerprint. A batch with failed rows is never considered done.
func (e *Entry) Matches(fingerprint uint64) bool {
	return e != nil && e.Failed == 0 && e.Fingerprint == fingerprint
}
