package migrate_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/indexes"
	"github.com/persistorai/listengraph/internal/models"
	"github.com/persistorai/listengraph/internal/source"
	"github.com/persistorai/listengraph/internal/writer"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

// memDocStore is an in-memory DocumentStore. Records whose key is in reject
// fail; failCalls makes the listed call numbers (1-based) fail as a whole.
type memDocStore struct {
	mu        sync.Mutex
	docs      map[string]models.CanonicalRecord
	calls     int
	reject    map[string]error
	failCalls map[int]error
}

func newMemDocStore() *memDocStore {
	return &memDocStore{
		docs:      make(map[string]models.CanonicalRecord),
		reject:    make(map[string]error),
		failCalls: make(map[int]error),
	}
}

func (m *memDocStore) WriteDocuments(_ context.Context, ops []models.BatchOperation, mode models.WriteMode) ([]models.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if err, ok := m.failCalls[m.calls]; ok {
		return nil, err
	}

	out := make([]models.Outcome, len(ops))
	for i, op := range ops {
		key := op.Record.RecordKey
		if err, ok := m.reject[key]; ok {
			out[i] = models.Outcome{Status: models.OutcomeFailed, Err: err}
			continue
		}

		_, exists := m.docs[key]
		switch {
		case exists && mode == models.ModeInsert:
			out[i] = models.Outcome{Status: models.OutcomeFailed, Err: models.ErrDuplicateKey}
		case exists:
			m.docs[key] = *op.Record
			out[i] = models.Outcome{Status: models.OutcomeUpdated}
		default:
			m.docs[key] = *op.Record
			out[i] = models.Outcome{Status: models.OutcomeInserted}
		}
	}

	return out, nil
}

func (m *memDocStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

func (m *memDocStore) doc(key string) (models.CanonicalRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[key]

	return d, ok
}

func (m *memDocStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.docs)
}

// mockCreator records the indexes it was asked to create.
type mockCreator struct {
	mu      sync.Mutex
	created []string
	fail    map[string]error
}

func (c *mockCreator) CreateIndex(_ context.Context, spec indexes.Spec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.fail[spec.Name]; ok {
		return err
	}
	c.created = append(c.created, spec.Name)

	return nil
}

// mockBackend wires a writer and an index creator into migrate.Backend.
type mockBackend struct {
	w          writer.Writer
	creator    *mockCreator
	plan       []indexes.Spec
	prepareErr error

	mu     sync.Mutex
	closed bool
}

func (b *mockBackend) Name() string                  { return "mock" }
func (b *mockBackend) Prepare(context.Context) error { return b.prepareErr }
func (b *mockBackend) Writer() writer.Writer         { return b.w }
func (b *mockBackend) IndexCreator() indexes.Creator { return b.creator }
func (b *mockBackend) IndexPlan() []indexes.Spec     { return b.plan }

func (b *mockBackend) Close(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	return nil
}

func (b *mockBackend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closed
}

// sliceSource serves prepared rows. An entry in rowErrs turns that 0-based
// position into an undecodable record; cancelAt cancels the run when the
// row at that position is requested.
type sliceSource struct {
	header   *models.Header
	rows     [][]any
	rowErrs  map[int]error
	fatalAt  int
	cancelAt int
	cancel   context.CancelFunc

	pos    int
	closed bool
}

func newSliceSource(columns []string, rows [][]any) *sliceSource {
	return &sliceSource{header: models.NewHeader(columns), rows: rows, rowErrs: map[int]error{}, fatalAt: -1, cancelAt: -1}
}

func (s *sliceSource) Header() *models.Header { return s.header }

func (s *sliceSource) Next(ctx context.Context) (models.RawRow, error) {
	if s.pos == s.cancelAt && s.cancel != nil {
		s.cancel()
	}
	if err := ctx.Err(); err != nil {
		return models.RawRow{}, err
	}

	if s.pos == s.fatalAt {
		return models.RawRow{}, errors.New("disk read error")
	}

	if s.pos >= len(s.rows) {
		return models.RawRow{}, io.EOF
	}

	i := s.pos
	s.pos++
	line := i + 2

	if err, ok := s.rowErrs[i]; ok {
		return models.RawRow{}, &source.RowError{Line: line, Err: err}
	}

	return models.NewRawRow(s.header, line, s.rows[i]), nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}
