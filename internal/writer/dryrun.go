package writer

import (
	"context"

	"github.com/persistorai/listengraph/internal/models"
)

// DryRunWriter applies duplicate collapse and reports every remaining
// operation as inserted without touching a store.
type DryRunWriter struct {
	Base
}

// NewDryRunWriter creates a DryRunWriter.
func NewDryRunWriter(base Base) *DryRunWriter {
	return &DryRunWriter{Base: base}
}

// WriteBatch implements Writer.
func (w *DryRunWriter) WriteBatch(_ context.Context, ops []models.BatchOperation) models.BatchResult {
	kept, res := collapse(ops, w.Mode)
	res.Inserted += len(kept)

	return res
}
