package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/models"
)

var listenColumns = []string{
	"id", "record_key", "user_id", "track_id", "played_at", "ms_played", "completion_rate",
	"skipped", "shuffle", "offline", "reason_start", "reason_end", "platform", "conn_country",
}

// listensInsert returns the fact-row statement for mode. Each returned row
// names a record key the statement wrote and whether it was a fresh insert.
func listensInsert(mode models.WriteMode) bulkInsert {
	b := bulkInsert{Table: "listening_history", Columns: listenColumns}

	if mode == models.ModeInsert {
		b.Suffix = "ON CONFLICT (record_key) DO NOTHING\n\t\tRETURNING record_key, true"
		return b
	}

	b.Suffix = `ON CONFLICT (record_key) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			track_id = EXCLUDED.track_id,
			played_at = EXCLUDED.played_at,
			ms_played = EXCLUDED.ms_played,
			completion_rate = EXCLUDED.completion_rate,
			skipped = EXCLUDED.skipped,
			shuffle = EXCLUDED.shuffle,
			offline = EXCLUDED.offline,
			reason_start = EXCLUDED.reason_start,
			reason_end = EXCLUDED.reason_end,
			platform = EXCLUDED.platform,
			conn_country = EXCLUDED.conn_country
		RETURNING record_key, (xmax = 0)`

	return b
}

func listenValues(r models.ListenRow) []any {
	return []any{
		r.ID, r.RecordKey, r.UserID, r.TrackID, r.PlayedAt, r.MsPlayed, r.CompletionRate,
		r.Skipped, r.Shuffle, r.Offline, r.ReasonStart, r.ReasonEnd, r.Platform, r.Country,
	}
}

// WriteListens writes fact rows in one transaction and returns one outcome
// per row, in order. Insert mode reports rows whose record key already exists
// as ErrDuplicateKey. When the batch statement is rejected for a reason that
// retrying cannot fix, rows are written one by one so a single bad row does
// not fail its neighbours.
func (s *Store) WriteListens(ctx context.Context, rows []models.ListenRow, mode models.WriteMode) ([]models.Outcome, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	written, err := s.writeListensTx(ctx, rows, mode)
	if err != nil {
		mapped := mapError(err)
		if models.IsTransient(mapped) || ctx.Err() != nil {
			return nil, mapped
		}

		if s.Log != nil {
			s.Log.WithFields(logrus.Fields{
				"rows": len(rows),
				"mode": mode,
			}).WithError(err).Warn("batch insert rejected, writing rows individually")
		}

		return s.writeListensEach(ctx, rows, mode)
	}

	return listenOutcomes(rows, written), nil
}

func (s *Store) writeListensTx(ctx context.Context, rows []models.ListenRow, mode models.WriteMode) (map[string]bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	b := listensInsert(mode)
	written := make(map[string]bool, len(rows))

	for _, c := range chunks(len(rows)) {
		values := make([][]any, 0, c[1]-c[0])
		for _, r := range rows[c[0]:c[1]] {
			values = append(values, listenValues(r))
		}

		sql, args := b.build(values)
		if err := collectWritten(ctx, tx, sql, args, written); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing listens: %w", err)
	}

	return written, nil
}

func collectWritten(ctx context.Context, tx pgx.Tx, sql string, args []any, written map[string]bool) error {
	res, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("inserting listens: %w", err)
	}
	defer res.Close()

	for res.Next() {
		var (
			key      string
			inserted bool
		)
		if err := res.Scan(&key, &inserted); err != nil {
			return fmt.Errorf("scanning written listen: %w", err)
		}
		written[key] = inserted
	}

	if err := res.Err(); err != nil {
		return fmt.Errorf("inserting listens: %w", err)
	}

	return nil
}

// writeListensEach writes rows with one statement each. Only a transient
// error aborts; any other error becomes that row's outcome.
func (s *Store) writeListensEach(ctx context.Context, rows []models.ListenRow, mode models.WriteMode) ([]models.Outcome, error) {
	b := listensInsert(mode)
	out := make([]models.Outcome, len(rows))

	for i, r := range rows {
		sql, args := b.build([][]any{listenValues(r)})

		var (
			key      string
			inserted bool
		)

		err := s.Pool.QueryRow(ctx, sql, args...).Scan(&key, &inserted)
		switch {
		case err == nil:
			out[i] = listenOutcome(inserted)
		case errors.Is(err, pgx.ErrNoRows):
			out[i] = models.Outcome{Err: fmt.Errorf("%w: record %s already stored", models.ErrDuplicateKey, r.RecordKey)}
		default:
			mapped := mapError(err)
			if models.IsTransient(mapped) {
				return nil, mapped
			}
			out[i] = models.Outcome{Err: mapped}
		}
	}

	return out, nil
}

// listenOutcomes lines written keys back up with rows. A row the statement
// did not return was skipped by DO NOTHING.
func listenOutcomes(rows []models.ListenRow, written map[string]bool) []models.Outcome {
	out := make([]models.Outcome, len(rows))

	for i, r := range rows {
		inserted, ok := written[r.RecordKey]
		if !ok {
			out[i] = models.Outcome{Err: fmt.Errorf("%w: record %s already stored", models.ErrDuplicateKey, r.RecordKey)}
			continue
		}
		out[i] = listenOutcome(inserted)
	}

	return out
}

func listenOutcome(inserted bool) models.Outcome {
	if inserted {
		return models.Outcome{Status: models.OutcomeInserted}
	}

	return models.Outcome{Status: models.OutcomeUpdated}
}
