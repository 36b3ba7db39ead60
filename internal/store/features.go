package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/persistorai/listengraph/internal/models"
)

var featureColumns = []string{
	"track_id", "danceability", "energy", "key", "loudness", "mode", "speechiness",
	"acousticness", "instrumentalness", "liveness", "valence", "tempo", "time_signature",
}

func featuresInsert(mode models.WriteMode) bulkInsert {
	b := bulkInsert{Table: "audio_features", Columns: featureColumns}

	if mode == models.ModeInsert {
		b.Suffix = "ON CONFLICT (track_id) DO NOTHING"
		return b
	}

	b.Suffix = `ON CONFLICT (track_id) DO UPDATE
		SET danceability = EXCLUDED.danceability,
			energy = EXCLUDED.energy,
			key = EXCLUDED.key,
			loudness = EXCLUDED.loudness,
			mode = EXCLUDED.mode,
			speechiness = EXCLUDED.speechiness,
			acousticness = EXCLUDED.acousticness,
			instrumentalness = EXCLUDED.instrumentalness,
			liveness = EXCLUDED.liveness,
			valence = EXCLUDED.valence,
			tempo = EXCLUDED.tempo,
			time_signature = EXCLUDED.time_signature,
			updated_at = NOW()`

	return b
}

// WriteAudioFeatures writes one row per track and returns how many rows changed.
func (s *Store) WriteAudioFeatures(ctx context.Context, rows []models.AudioFeatureRow, mode models.WriteMode) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	sorted := append([]models.AudioFeatureRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TrackID.String() < sorted[j].TrackID.String() })

	values := make([][]any, len(sorted))
	for i, r := range sorted {
		f := r.Features
		values[i] = []any{
			r.TrackID, f.Danceability, f.Energy, f.Key, f.Loudness, f.Mode, f.Speechiness,
			f.Acousticness, f.Instrumentalness, f.Liveness, f.Valence, f.Tempo, f.TimeSignature,
		}
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, mapError(fmt.Errorf("beginning transaction: %w", err))
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	n, err := execBulk(ctx, tx, featuresInsert(mode), values)
	if err != nil {
		return 0, mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, mapError(fmt.Errorf("committing audio features: %w", err))
	}

	return n, nil
}
