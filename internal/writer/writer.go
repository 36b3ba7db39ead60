// Package writer persists batches of canonical records through a pluggable store strategy.
package writer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/models"
)

// Writer persists one batch. It never returns an error: every operation is
// accounted for as inserted, updated or failed in the result.
type Writer interface {
	WriteBatch(ctx context.Context, ops []models.BatchOperation) models.BatchResult
}

// Base holds what every strategy shares.
type Base struct {
	Mode  models.WriteMode
	Retry RetryPolicy
	Log   *logrus.Logger
}

// collapse removes repeated record keys from ops before they reach the store.
// In upsert mode the last operation for a key replaces earlier ones, which
// are counted as updated. In insert mode the first one is kept and later ones
// fail as duplicates.
func collapse(ops []models.BatchOperation, mode models.WriteMode) ([]models.BatchOperation, models.BatchResult) {
	var res models.BatchResult

	kept := make([]models.BatchOperation, 0, len(ops))
	seen := make(map[string]int, len(ops))

	for _, op := range ops {
		if op.Record == nil {
			res.Fail(op, errors.New("operation has no record"))
			continue
		}

		i, dup := seen[op.Record.RecordKey]
		if !dup {
			seen[op.Record.RecordKey] = len(kept)
			kept = append(kept, op)
			continue
		}

		if mode == models.ModeUpsert {
			kept[i] = op
			res.Updated++
			continue
		}

		res.Fail(op, fmt.Errorf("%w: record key repeated in batch", models.ErrDuplicateKey))
	}

	return kept, res
}

// failAll marks every op as failed by one batch-level error.
func failAll(ops []models.BatchOperation, err error) models.BatchResult {
	var res models.BatchResult

	wrapped := fmt.Errorf("%w: %w", models.ErrBatchFailed, err)
	for _, op := range ops {
		res.Fail(op, wrapped)
	}

	return res
}

// tally folds per-op store outcomes into a result. Missing outcomes count as failures.
func tally(ops []models.BatchOperation, outcomes []models.Outcome) models.BatchResult {
	var res models.BatchResult

	for i, op := range ops {
		if i >= len(outcomes) {
			res.Fail(op, errors.New("store reported no outcome"))
			continue
		}

		switch o := outcomes[i]; o.Status {
		case models.OutcomeInserted:
			res.Inserted++
		case models.OutcomeUpdated:
			res.Updated++
		default:
			err := o.Err
			if err == nil {
				err = errors.New("write rejected")
			}
			res.Fail(op, err)
		}
	}

	return res
}

func (b *Base) logBatchFailure(ops []models.BatchOperation, err error) {
	if b.Log == nil || len(ops) == 0 {
		return
	}

	b.Log.WithFields(logrus.Fields{
		"rows":       len(ops),
		"first_line": ops[0].Line,
		"mode":       b.Mode,
	}).WithError(err).Error("batch write failed")
}
