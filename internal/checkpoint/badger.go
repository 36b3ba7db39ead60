package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// BadgerStore implements Store using BadgerDB for persistence across restarts.
type BadgerStore struct {
	db     *badger.DB
	prefix string
	owned  bool
}

// OpenBadger opens (or creates) a checkpoint database in dir. Badger's own
// log lines go to log at warning level and above.
func OpenBadger(dir, scope string, log *logrus.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if log != nil {
		opts = opts.WithLogger(log).WithLoggingLevel(badger.WARNING)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint store: %w", err)
	}

	s := NewBadgerStore(db, scope)
	s.owned = true

	return s, nil
}

// NewBadgerStore wraps an open database. Close leaves db open.
func NewBadgerStore(db *badger.DB, scope string) *BadgerStore {
	return &BadgerStore{db: db, prefix: scope}
}

func (s *BadgerStore) key(batch int) []byte {
	return []byte(fmt.Sprintf("%sbatch:%010d", s.prefix, batch))
}

// Get implements Store.
func (s *BadgerStore) Get(_ context.Context, batch int) (*Entry, error) {
	var e *Entry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(batch))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			e = &Entry{}
			return json.Unmarshal(val, e)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %d: %w", batch, err)
	}

	return e, nil
}

// Put implements Store.
func (s *BadgerStore) Put(_ context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(e.Batch), data)
	})
	if err != nil {
		return fmt.Errorf("save checkpoint %d: %w", e.Batch, err)
	}

	return nil
}

// Clear implements Store.
func (s *BadgerStore) Clear(_ context.Context) error {
	if err := s.db.DropPrefix([]byte(s.prefix)); err != nil {
		return fmt.Errorf("clear checkpoints: %w", err)
	}

	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	if !s.owned {
		return nil
	}

	return s.db.Close()
}
