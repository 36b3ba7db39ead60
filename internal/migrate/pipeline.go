package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/listengraph/internal/checkpoint"
	"github.com/persistorai/listengraph/internal/metrics"
	"github.com/persistorai/listengraph/internal/models"
	"github.com/persistorai/listengraph/internal/source"
	"github.com/persistorai/listengraph/internal/transform"
	"github.com/persistorai/listengraph/internal/writer"
)

// item is one input record: a row, or the line a source could not decode.
type item struct {
	row models.RawRow
	err *source.RowError
}

type batch struct {
	seq   int
	items []item
}

// migrate reads the input and writes it in batches until the input ends,
// reading fails, or ctx is canceled. It reports whether the run was canceled.
func (m *Migrator) migrate(ctx context.Context, res *resources) bool {
	w := res.backend.Writer()

	// Dispatched batches run to completion even after cancellation.
	writeCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(m.opts.Parallelism)

	seq := 0
	pending := make([]item, 0, m.opts.BatchSize)

	dispatch := func() {
		b := batch{seq: seq, items: pending}
		seq++
		pending = make([]item, 0, m.opts.BatchSize)

		g.Go(func() error {
			m.processBatch(writeCtx, w, res.checkpoints, b)
			return nil
		})
	}

	for ctx.Err() == nil {
		row, err := res.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			if re, ok := source.IsRowError(err); ok {
				pending = append(pending, item{err: re})
			} else {
				if ctx.Err() == nil {
					m.stats.sourceFailed(err)
					m.log.WithError(err).Error("reading input failed, stopping")
				}
				break
			}
		} else {
			pending = append(pending, item{row: row})
		}

		if len(pending) >= m.opts.BatchSize && ctx.Err() == nil {
			dispatch()
		}
	}

	if ctx.Err() == nil && len(pending) > 0 {
		dispatch()
	}

	if err := g.Wait(); err != nil {
		m.log.WithError(err).Error("batch worker failed")
	}

	canceled := ctx.Err() != nil
	if canceled && len(pending) > 0 {
		m.log.WithField("rows", len(pending)).Warn("run canceled, dropping undispatched rows")
	}

	return canceled
}

// processBatch transforms, resolves and writes one batch, then records it
// as a checkpoint when no row failed. With resume enabled a batch whose
// checkpoint fingerprint matches is skipped.
func (m *Migrator) processBatch(ctx context.Context, w writer.Writer, cp checkpoint.Store, b batch) {
	start := time.Now()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	ops, keys, unreadable := m.buildOperations(b)
	fingerprint := checkpoint.Fingerprint(keys)

	log := m.log.WithFields(logrus.Fields{
		"batch":      b.seq,
		"rows":       len(b.items),
		"first_line": firstLine(b),
	})

	if m.opts.Resume && cp != nil && m.skipCompleted(ctx, cp, b.seq, fingerprint, log) {
		m.stats.addResumed(len(b.items))
		metrics.BatchesTotal.WithLabelValues("resumed").Inc()
		metrics.RowsTotal.WithLabelValues("resumed").Add(float64(len(b.items)))
		return
	}

	result := unreadable
	if len(ops) > 0 {
		result.Merge(w.WriteBatch(ctx, ops))
	}

	m.stats.addBatch(len(b.items), result)
	recordBatchMetrics(len(b.items), result)

	log.WithFields(logrus.Fields{
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"failed":   result.Failed,
	}).Info("batch written")

	// Only a batch that wrote every row is done; anything else is retried
	// by the next resumed run.
	if cp == nil || result.Failed > 0 {
		return
	}

	entry := checkpoint.Entry{
		Batch:       b.seq,
		Fingerprint: fingerprint,
		Rows:        len(b.items),
		Inserted:    result.Inserted,
		Updated:     result.Updated,
		Failed:      result.Failed,
		CompletedAt: time.Now().UTC(),
	}
	if err := cp.Put(ctx, entry); err != nil {
		log.WithError(err).Warn("recording checkpoint failed")
	}
}

// buildOperations turns the rows of b into write operations in row order.
// Undecodable source records become failures in the returned result. keys
// holds one entry per item and feeds the batch fingerprint.
func (m *Migrator) buildOperations(b batch) ([]models.BatchOperation, []string, models.BatchResult) {
	var unreadable models.BatchResult

	ops := make([]models.BatchOperation, 0, len(b.items))
	keys := make([]string, 0, len(b.items))

	for _, it := range b.items {
		if it.err != nil {
			op := models.BatchOperation{Line: it.err.Line, Kind: m.opts.Mode}
			unreadable.Fail(op, fmt.Errorf("reading record: %w", it.err.Err))
			keys = append(keys, "\x00line:"+strconv.Itoa(it.err.Line))
			continue
		}

		rec, issues := m.transformer.Transform(it.row)
		m.reportIssues(it.row.Line(), issues)

		naturalKeys, refs := m.resolver.Observe(&rec)
		transform.Annotate(&rec)

		ops = append(ops, models.BatchOperation{
			Line:   it.row.Line(),
			Kind:   m.opts.Mode,
			Record: &rec,
			Keys:   naturalKeys,
			Refs:   refs,
		})
		keys = append(keys, rec.RecordKey)
	}

	return ops, keys, unreadable
}

func (m *Migrator) skipCompleted(ctx context.Context, cp checkpoint.Store, seq int, fingerprint uint64, log *logrus.Entry) bool {
	entry, err := cp.Get(ctx, seq)
	if err != nil {
		log.WithError(err).Warn("reading checkpoint failed, rewriting batch")
		return false
	}

	if entry == nil {
		return false
	}

	if !entry.Matches(fingerprint) {
		log.WithField("checkpoint_failed", entry.Failed).Warn("batch incomplete or input changed since checkpoint, rewriting batch")
		return false
	}

	log.Debug("batch already written, skipping")

	return true
}

func (m *Migrator) reportIssues(line int, issues []transform.FieldIssue) {
	for _, is := range issues {
		metrics.FieldIssues.WithLabelValues(is.Column).Inc()
		m.log.WithFields(logrus.Fields{
			"line":   line,
			"column": is.Column,
			"value":  is.Value,
			"reason": is.Reason,
		}).Debug("dropped malformed value")
	}
}

func recordBatchMetrics(rows int, res models.BatchResult) {
	metrics.RowsTotal.WithLabelValues("inserted").Add(float64(res.Inserted))
	metrics.RowsTotal.WithLabelValues("updated").Add(float64(res.Updated))
	metrics.RowsTotal.WithLabelValues("failed").Add(float64(res.Failed))

	outcome := "ok"
	switch {
	case res.Failed > 0 && res.Failed >= rows:
		outcome = "failed"
	case res.Failed > 0:
		outcome = "partial"
	}
	metrics.BatchesTotal.WithLabelValues(outcome).Inc()
}

func firstLine(b batch) int {
	if len(b.items) == 0 {
		return 0
	}

	if it := b.items[0]; it.err != nil {
		return it.err.Line
	}

	return b.items[0].row.Line()
}
