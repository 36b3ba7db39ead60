package writer

import (
	"context"

	"github.com/persistorai/listengraph/internal/models"
)

// DocumentStore writes one nested document per operation in a single
// unordered bulk call. It reports an outcome per operation, in order, and
// returns an error only when the call as a whole failed.
type DocumentStore interface {
	WriteDocuments(ctx context.Context, ops []models.BatchOperation, mode models.WriteMode) ([]models.Outcome, error)
}

// DocumentWriter embeds every record as a self-contained document keyed by its record key.
type DocumentWriter struct {
	Base
	store DocumentStore
}

// NewDocumentWriter creates a DocumentWriter.
func NewDocumentWriter(store DocumentStore, base Base) *DocumentWriter {
	return &DocumentWriter{Base: base, store: store}
}

// WriteBatch implements Writer.
func (w *DocumentWriter) WriteBatch(ctx context.Context, ops []models.BatchOperation) models.BatchResult {
	kept, res := collapse(ops, w.Mode)
	if len(kept) == 0 {
		return res
	}

	var outcomes []models.Outcome
	err := w.Retry.Do(ctx, w.Log, "write_documents", func(ctx context.Context) error {
		out, err := w.store.WriteDocuments(ctx, kept, w.Mode)
		if err != nil {
			return err
		}
		outcomes = out
		return nil
	})
	if err != nil {
		w.logBatchFailure(kept, err)
		res.Merge(failAll(kept, err))
		return res
	}

	res.Merge(tally(kept, outcomes))

	return res
}
