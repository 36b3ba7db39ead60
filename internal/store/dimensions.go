package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/persistorai/listengraph/internal/models"
)

var (
	usersInsert = bulkInsert{
		Table:   "users",
		Columns: []string{"id", "username", "platform", "country"},
		Suffix:  "ON CONFLICT (username) DO NOTHING",
	}
	artistsInsert = bulkInsert{
		Table:   "artists",
		Columns: []string{"id", "name", "spotify_uri", "genres"},
		Suffix:  "ON CONFLICT (name) DO NOTHING",
	}
	albumsInsert = bulkInsert{
		Table:   "albums",
		Columns: []string{"id", "name", "spotify_uri", "release_date", "label", "image_url", "genres"},
		Suffix:  "ON CONFLICT (name) DO NOTHING",
	}
	tracksInsert = bulkInsert{
		Table: "tracks",
		Columns: []string{
			"id", "spotify_track_id", "name", "album_id", "duration_ms", "track_number",
			"disc_number", "explicit", "popularity", "preview_url", "isrc",
		},
		Suffix: "ON CONFLICT (spotify_track_id) DO NOTHING",
	}
	trackArtistsInsert = bulkInsert{
		Table:   "track_artists",
		Columns: []string{"track_id", "artist_id", "role"},
		Suffix:  "ON CONFLICT (track_id, artist_id) DO NOTHING",
	}
	albumArtistsInsert = bulkInsert{
		Table:   "album_artists",
		Columns: []string{"album_id", "artist_id"},
		Suffix:  "ON CONFLICT (album_id, artist_id) DO NOTHING",
	}
)

// naturalKeyColumns maps each entity kind to its table and unique column.
var naturalKeyColumns = map[models.EntityKind][2]string{
	models.KindUser:   {"users", "username"},
	models.KindArtist: {"artists", "name"},
	models.KindAlbum:  {"albums", "name"},
	models.KindTrack:  {"tracks", "spotify_track_id"},
}

// InsertDimensions inserts every row in set in one transaction. Rows whose
// natural key already exists are left untouched.
func (s *Store) InsertDimensions(ctx context.Context, set models.DimensionSet) error {
	if set.Len() == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return mapError(fmt.Errorf("beginning transaction: %w", err))
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	steps := []struct {
		b    bulkInsert
		rows [][]any
	}{
		{usersInsert, userValues(set.Users)},
		{artistsInsert, artistValues(set.Artists)},
		{albumsInsert, albumValues(set.Albums)},
		{tracksInsert, trackValues(set.Tracks)},
	}

	for _, step := range steps {
		if len(step.rows) == 0 {
			continue
		}
		if _, err := execBulk(ctx, tx, step.b, step.rows); err != nil {
			return mapError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("committing dimensions: %w", err))
	}

	return nil
}

// LookupIDs returns the stored IDs for keys. Keys with no row are absent
// from the result.
func (s *Store) LookupIDs(ctx context.Context, kind models.EntityKind, keys []string) (map[string]uuid.UUID, error) {
	tc, ok := naturalKeyColumns[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %d", kind)
	}

	out := make(map[string]uuid.UUID, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		"SELECT "+tc[1]+", id FROM "+tc[0]+" WHERE "+tc[1]+" = ANY($1)", keys)
	if err != nil {
		return nil, mapError(fmt.Errorf("querying %s ids: %w", kind, err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			id  uuid.UUID
		)
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("scanning %s id: %w", kind, err)
		}
		out[key] = id
	}

	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("iterating %s ids: %w", kind, err))
	}

	return out, nil
}

// LinkTrackArtists inserts track→artist edges and returns how many were new.
func (s *Store) LinkTrackArtists(ctx context.Context, links []models.EntityLink) (int, error) {
	rows := make([][]any, len(links))
	for i, l := range sortLinks(links) {
		role := l.Role
		if role == "" {
			role = "primary"
		}
		rows[i] = []any{l.FromID, l.ToID, role}
	}

	return s.link(ctx, trackArtistsInsert, rows)
}

// LinkAlbumArtists inserts album→artist edges and returns how many were new.
func (s *Store) LinkAlbumArtists(ctx context.Context, links []models.EntityLink) (int, error) {
	rows := make([][]any, len(links))
	for i, l := range sortLinks(links) {
		rows[i] = []any{l.FromID, l.ToID}
	}

	return s.link(ctx, albumArtistsInsert, rows)
}

func (s *Store) link(ctx context.Context, b bulkInsert, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, mapError(fmt.Errorf("beginning transaction: %w", err))
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	n, err := execBulk(ctx, tx, b, rows)
	if err != nil {
		return 0, mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, mapError(fmt.Errorf("committing %s: %w", b.Table, err))
	}

	return n, nil
}

func userValues(users []models.UserRow) [][]any {
	sorted := append([]models.UserRow(nil), users...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Username < sorted[j].Username })

	out := make([][]any, len(sorted))
	for i, u := range sorted {
		out[i] = []any{u.ID, u.Username, u.Platform, u.Country}
	}

	return out
}

func artistValues(artists []models.ArtistRow) [][]any {
	sorted := append([]models.ArtistRow(nil), artists...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	out := make([][]any, len(sorted))
	for i, a := range sorted {
		out[i] = []any{a.ID, a.Name, a.URI, a.Genres}
	}

	return out
}

func albumValues(albums []models.AlbumRow) [][]any {
	sorted := append([]models.AlbumRow(nil), albums...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	out := make([][]any, len(sorted))
	for i, a := range sorted {
		out[i] = []any{a.ID, a.Name, a.URI, a.ReleaseDate, a.Label, a.ImageURL, a.Genres}
	}

	return out
}

func trackValues(tracks []models.TrackRow) [][]any {
	sorted := append([]models.TrackRow(nil), tracks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TrackID < sorted[j].TrackID })

	out := make([][]any, len(sorted))
	for i, t := range sorted {
		out[i] = []any{
			t.ID, t.TrackID, t.Name, t.AlbumID, t.DurationMs, t.TrackNumber,
			t.DiscNumber, t.Explicit, t.Popularity, t.PreviewURL, t.ISRC,
		}
	}

	return out
}

func sortLinks(links []models.EntityLink) []models.EntityLink {
	sorted := append([]models.EntityLink(nil), links...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].FromID != sorted[j].FromID {
			return sorted[i].FromID.String() < sorted[j].FromID.String()
		}
		return sorted[i].ToID.String() < sorted[j].ToID.String()
	})

	return sorted
}
