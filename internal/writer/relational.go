package writer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/models"
)

// listenNamespace seeds listening_history row IDs from record keys.
var listenNamespace = uuid.MustParse("2b0c6a8e-91d4-5f1a-8e37-d4c95a0b7f12")

// RelationalStore is the normalized-schema backend.
type RelationalStore interface {
	// InsertDimensions inserts rows, ignoring natural keys that already exist.
	InsertDimensions(ctx context.Context, set models.DimensionSet) error
	// LookupIDs returns the stored IDs for the given natural keys.
	LookupIDs(ctx context.Context, kind models.EntityKind, keys []string) (map[string]uuid.UUID, error)
	// LinkTrackArtists and LinkAlbumArtists insert edges, ignoring existing
	// ones, and return how many were new.
	LinkTrackArtists(ctx context.Context, links []models.EntityLink) (int, error)
	LinkAlbumArtists(ctx context.Context, links []models.EntityLink) (int, error)
	// WriteListens writes fact rows and reports an outcome per row, in order.
	WriteListens(ctx context.Context, rows []models.ListenRow, mode models.WriteMode) ([]models.Outcome, error)
	// WriteAudioFeatures writes per-track feature rows and returns how many changed.
	WriteAudioFeatures(ctx context.Context, rows []models.AudioFeatureRow, mode models.WriteMode) (int, error)
}

// IdentityMap is the resolver surface the relational writer needs.
type IdentityMap interface {
	Lookup(kind models.EntityKind, key string) (uuid.UUID, bool)
	Rebind(kind models.EntityKind, key string, id uuid.UUID)
	MarkPersisted(kind models.EntityKind, keys ...string)
	Persisted(kind models.EntityKind, key string) bool
}

// RelationalWriter decomposes records into dimension rows, graph edges and
// fact rows.
type RelationalWriter struct {
	Base
	store RelationalStore
	ids   IdentityMap
}

// NewRelationalWriter creates a RelationalWriter.
func NewRelationalWriter(store RelationalStore, ids IdentityMap, base Base) *RelationalWriter {
	return &RelationalWriter{Base: base, store: store, ids: ids}
}

// WriteBatch implements Writer. Dimensions are persisted first. A store
// error that survives retries fails the whole batch since no fact row could
// reference them; a row the store refuses only fails the records that
// reference it.
func (w *RelationalWriter) WriteBatch(ctx context.Context, ops []models.BatchOperation) models.BatchResult {
	kept, res := collapse(ops, w.Mode)
	if len(kept) == 0 {
		return res
	}

	var (
		links int
		bad   rejections
	)
	err := w.Retry.Do(ctx, w.Log, "persist_dimensions", func(ctx context.Context) error {
		n, r, err := w.persistDimensions(ctx, kept)
		links, bad = n, r
		return err
	})
	if err != nil {
		w.logBatchFailure(kept, err)
		res.Merge(failAll(kept, err))
		return res
	}
	res.Links += links

	rows, rowOps, skipped := w.buildListens(kept, bad)
	res.Merge(skipped)

	if len(rows) > 0 {
		var outcomes []models.Outcome
		err = w.Retry.Do(ctx, w.Log, "write_listens", func(ctx context.Context) error {
			out, err := w.store.WriteListens(ctx, rows, w.Mode)
			if err != nil {
				return err
			}
			outcomes = out
			return nil
		})
		if err != nil {
			w.logBatchFailure(rowOps, err)
			res.Merge(failAll(rowOps, err))
		} else {
			res.Merge(tally(rowOps, outcomes))
		}
	}

	if features := w.buildAudioFeatures(kept, bad); len(features) > 0 {
		var n int
		err = w.Retry.Do(ctx, w.Log, "write_audio_features", func(ctx context.Context) error {
			var err error
			n, err = w.store.WriteAudioFeatures(ctx, features, w.Mode)
			return err
		})
		if err != nil && w.Log != nil {
			w.Log.WithField("rows", len(features)).WithError(err).Warn("audio feature write failed")
		}
		res.AudioFeatures += n
	}

	return res
}

// persistDimensions runs phase one: users, artists and albums, then tracks
// once album IDs are known, then the edges between them. Rows the store
// refused are returned so dependent records can be failed individually.
func (w *RelationalWriter) persistDimensions(ctx context.Context, ops []models.BatchOperation) (int, rejections, error) {
	bad := make(rejections)

	first := models.DimensionSet{
		Users:   w.collectUsers(ops),
		Artists: w.collectArtists(ops),
		Albums:  w.collectAlbums(ops),
	}

	if err := w.insertDimensions(ctx, first, bad); err != nil {
		return 0, nil, fmt.Errorf("inserting dimensions: %w", err)
	}

	written := map[models.EntityKind][]string{
		models.KindUser:   bad.keep(models.KindUser, userKeys(first.Users)),
		models.KindArtist: bad.keep(models.KindArtist, artistKeys(first.Artists)),
		models.KindAlbum:  bad.keep(models.KindAlbum, albumKeys(first.Albums)),
	}
	for kind, keys := range written {
		if err := w.rebind(ctx, kind, keys); err != nil {
			return 0, nil, err
		}
	}

	tracks := w.collectTracks(ops, bad)
	if err := w.insertDimensions(ctx, models.DimensionSet{Tracks: tracks}, bad); err != nil {
		return 0, nil, fmt.Errorf("inserting tracks: %w", err)
	}

	trackKeys := make([]string, len(tracks))
	for i, t := range tracks {
		trackKeys[i] = t.TrackID
	}
	written[models.KindTrack] = bad.keep(models.KindTrack, trackKeys)
	if err := w.rebind(ctx, models.KindTrack, written[models.KindTrack]); err != nil {
		return 0, nil, err
	}

	links, err := w.link(ctx, ops, bad)
	if err != nil {
		return 0, nil, err
	}

	for kind, keys := range written {
		w.ids.MarkPersisted(kind, keys...)
	}

	return links, bad, nil
}

// insertDimensions writes set in one call. When the store refuses it for a
// non-transient reason the rows are retried one at a time and the ones that
// still fail are recorded in bad.
func (w *RelationalWriter) insertDimensions(ctx context.Context, set models.DimensionSet, bad rejections) error {
	if set.Len() == 0 {
		return nil
	}

	err := w.store.InsertDimensions(ctx, set)
	if err == nil {
		return nil
	}
	if models.IsTransient(err) || ctx.Err() != nil {
		return err
	}

	for _, row := range splitDimensions(set) {
		err := w.store.InsertDimensions(ctx, row.set)
		switch {
		case err == nil:
		case models.IsTransient(err) || ctx.Err() != nil:
			return err
		default:
			bad.add(row.kind, row.key, err)
			if w.Log != nil {
				w.Log.WithFields(logrus.Fields{
					"kind": row.kind.String(),
					"key":  row.key,
				}).WithError(err).Warn("dimension row rejected")
			}
		}
	}

	return nil
}

// dimensionRow is a single-row DimensionSet and the natural key it carries.
type dimensionRow struct {
	kind models.EntityKind
	key  string
	set  models.DimensionSet
}

func splitDimensions(set models.DimensionSet) []dimensionRow {
	rows := make([]dimensionRow, 0, set.Len())

	for _, u := range set.Users {
		rows = append(rows, dimensionRow{models.KindUser, u.Username, models.DimensionSet{Users: []models.UserRow{u}}})
	}
	for _, a := range set.Artists {
		rows = append(rows, dimensionRow{models.KindArtist, a.Name, models.DimensionSet{Artists: []models.ArtistRow{a}}})
	}
	for _, a := range set.Albums {
		rows = append(rows, dimensionRow{models.KindAlbum, a.Name, models.DimensionSet{Albums: []models.AlbumRow{a}}})
	}
	for _, t := range set.Tracks {
		rows = append(rows, dimensionRow{models.KindTrack, t.TrackID, models.DimensionSet{Tracks: []models.TrackRow{t}}})
	}

	return rows
}

// rejections holds the store's error for each refused dimension row.
type rejections map[models.EntityKind]map[string]error

func (r rejections) add(kind models.EntityKind, key string, err error) {
	if r[kind] == nil {
		r[kind] = make(map[string]error)
	}
	r[kind][key] = err
}

func (r rejections) reason(kind models.EntityKind, key string) error {
	return r[kind][key]
}

// keep filters out rejected keys.
func (r rejections) keep(kind models.EntityKind, keys []string) []string {
	if len(r[kind]) == 0 {
		return keys
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, refused := r[kind][k]; !refused {
			out = append(out, k)
		}
	}

	return out
}

// resolve is Lookup that treats rows refused in this batch as unknown.
func (w *RelationalWriter) resolve(kind models.EntityKind, key string, bad rejections) (uuid.UUID, bool) {
	if bad.reason(kind, key) != nil {
		return uuid.Nil, false
	}

	return w.ids.Lookup(kind, key)
}

// reference resolves a fact row's foreign key, carrying the store's reason
// when the row was refused.
func (w *RelationalWriter) reference(kind models.EntityKind, key string, bad rejections) (uuid.UUID, error) {
	if cause := bad.reason(kind, key); cause != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q: %v", models.ErrUnresolvedReference, kind, key, cause)
	}

	id, ok := w.ids.Lookup(kind, key)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s %q", models.ErrUnresolvedReference, kind, key)
	}

	return id, nil
}

// rebind reads back the IDs the store holds for keys so fact rows reference
// rows created by earlier runs too.
func (w *RelationalWriter) rebind(ctx context.Context, kind models.EntityKind, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	stored, err := w.store.LookupIDs(ctx, kind, keys)
	if err != nil {
		return fmt.Errorf("reading %s ids: %w", kind, err)
	}

	for k, id := range stored {
		w.ids.Rebind(kind, k, id)
	}

	return nil
}

func (w *RelationalWriter) link(ctx context.Context, ops []models.BatchOperation, bad rejections) (int, error) {
	trackArtists := make(map[models.EntityLink]struct{})
	albumArtists := make(map[models.EntityLink]struct{})

	for _, op := range ops {
		artistID, ok := w.resolve(models.KindArtist, op.Keys.Artist, bad)
		if !ok {
			continue
		}
		if trackID, ok := w.resolve(models.KindTrack, op.Keys.Track, bad); ok {
			trackArtists[models.EntityLink{FromID: trackID, ToID: artistID, Role: "primary"}] = struct{}{}
		}
		if albumID, ok := w.resolve(models.KindAlbum, op.Keys.Album, bad); ok {
			albumArtists[models.EntityLink{FromID: albumID, ToID: artistID}] = struct{}{}
		}
	}

	total := 0

	if len(trackArtists) > 0 {
		n, err := w.store.LinkTrackArtists(ctx, linkSlice(trackArtists))
		if err != nil {
			return 0, fmt.Errorf("linking track artists: %w", err)
		}
		total += n
	}

	if len(albumArtists) > 0 {
		n, err := w.store.LinkAlbumArtists(ctx, linkSlice(albumArtists))
		if err != nil {
			return 0, fmt.Errorf("linking album artists: %w", err)
		}
		total += n
	}

	return total, nil
}

func (w *RelationalWriter) collectUsers(ops []models.BatchOperation) []models.UserRow {
	seen := make(map[string]struct{})
	var rows []models.UserRow

	for _, op := range ops {
		k := op.Keys.User
		if !w.fresh(models.KindUser, k, seen) {
			continue
		}

		row := models.UserRow{ID: w.idFor(models.KindUser, k, op.Refs.UserID), Username: k}
		if u := op.Record.User; u != nil {
			row.Platform = u.Platform
			row.Country = u.Country
		}
		rows = append(rows, row)
	}

	return rows
}

func (w *RelationalWriter) collectArtists(ops []models.BatchOperation) []models.ArtistRow {
	seen := make(map[string]struct{})
	var rows []models.ArtistRow

	for _, op := range ops {
		k := op.Keys.Artist
		if !w.fresh(models.KindArtist, k, seen) {
			continue
		}

		row := models.ArtistRow{ID: w.idFor(models.KindArtist, k, op.Refs.ArtistID), Name: k}
		if a := op.Record.Artist; a != nil && (a.Name == nil || strings.TrimSpace(*a.Name) == k) {
			row.URI = a.URI
			row.Genres = a.Genres
		}
		rows = append(rows, row)
	}

	return rows
}

func (w *RelationalWriter) collectAlbums(ops []models.BatchOperation) []models.AlbumRow {
	seen := make(map[string]struct{})
	var rows []models.AlbumRow

	for _, op := range ops {
		k := op.Keys.Album
		if !w.fresh(models.KindAlbum, k, seen) {
			continue
		}

		row := models.AlbumRow{ID: w.idFor(models.KindAlbum, k, op.Refs.AlbumID), Name: k}
		if a := op.Record.Album; a != nil && (a.Name == nil || strings.TrimSpace(*a.Name) == k) {
			row.URI = a.URI
			row.Label = a.Label
			row.ImageURL = a.ImageURL
			row.Genres = a.Genres
			if a.ReleaseDate != nil {
				row.ReleaseDate = ParseReleaseDate(*a.ReleaseDate)
			}
		}
		rows = append(rows, row)
	}

	return rows
}

func (w *RelationalWriter) collectTracks(ops []models.BatchOperation, bad rejections) []models.TrackRow {
	seen := make(map[string]struct{})
	var rows []models.TrackRow

	for _, op := range ops {
		k := op.Keys.Track
		if !w.fresh(models.KindTrack, k, seen) {
			continue
		}

		row := models.TrackRow{ID: w.idFor(models.KindTrack, k, op.Refs.TrackID), TrackID: k}
		if albumID, ok := w.resolve(models.KindAlbum, op.Keys.Album, bad); ok {
			row.AlbumID = &albumID
		}
		if t := op.Record.Track; t != nil {
			row.Name = t.Name
			row.DurationMs = t.DurationMs
			row.TrackNumber = t.TrackNumber
			row.DiscNumber = t.DiscNumber
			row.Popularity = t.Popularity
			row.PreviewURL = t.PreviewURL
			row.ISRC = t.ISRC
		}
		if m := op.Record.Metadata; m != nil {
			row.Explicit = m.Explicit
		}
		rows = append(rows, row)
	}

	return rows
}

// fresh reports whether key k still needs inserting in this batch.
func (w *RelationalWriter) fresh(kind models.EntityKind, k string, seen map[string]struct{}) bool {
	if k == "" {
		return false
	}
	if _, ok := seen[k]; ok {
		return false
	}
	seen[k] = struct{}{}

	return !w.ids.Persisted(kind, k)
}

func (w *RelationalWriter) idFor(kind models.EntityKind, k string, ref *uuid.UUID) uuid.UUID {
	if id, ok := w.ids.Lookup(kind, k); ok {
		return id
	}
	if ref != nil {
		return *ref
	}

	return uuid.Nil
}

// buildListens maps ops to fact rows. Ops without a resolvable user or track,
// or without a timestamp, are returned as failures.
func (w *RelationalWriter) buildListens(ops []models.BatchOperation, bad rejections) ([]models.ListenRow, []models.BatchOperation, models.BatchResult) {
	var skipped models.BatchResult

	rows := make([]models.ListenRow, 0, len(ops))
	rowOps := make([]models.BatchOperation, 0, len(ops))

	for _, op := range ops {
		rec := op.Record

		userID, err := w.reference(models.KindUser, op.Keys.User, bad)
		if err != nil {
			skipped.Fail(op, err)
			continue
		}

		trackID, err := w.reference(models.KindTrack, op.Keys.Track, bad)
		if err != nil {
			skipped.Fail(op, err)
			continue
		}

		if rec.Timestamp == nil {
			skipped.Fail(op, models.ErrMissingTimestamp)
			continue
		}

		row := models.ListenRow{
			ID:        uuid.NewSHA1(listenNamespace, []byte(rec.RecordKey)),
			RecordKey: rec.RecordKey,
			UserID:    userID,
			TrackID:   trackID,
			PlayedAt:  *rec.Timestamp,
		}
		if l := rec.Listening; l != nil {
			row.MsPlayed = l.MsPlayed
			row.CompletionRate = l.CompletionRate
			row.Skipped = l.Skipped
			row.Shuffle = l.Shuffle
			row.Offline = l.Offline
			row.ReasonStart = l.ReasonStart
			row.ReasonEnd = l.ReasonEnd
		}
		if u := rec.User; u != nil {
			row.Platform = u.Platform
			row.Country = u.Country
		}

		rows = append(rows, row)
		rowOps = append(rowOps, op)
	}

	return rows, rowOps, skipped
}

// buildAudioFeatures keeps the last feature set seen per track.
func (w *RelationalWriter) buildAudioFeatures(ops []models.BatchOperation, bad rejections) []models.AudioFeatureRow {
	index := make(map[uuid.UUID]int)
	var rows []models.AudioFeatureRow

	for _, op := range ops {
		f := op.Record.AudioFeatures
		if f.IsZero() {
			continue
		}

		trackID, ok := w.resolve(models.KindTrack, op.Keys.Track, bad)
		if !ok {
			continue
		}

		row := models.AudioFeatureRow{TrackID: trackID, Features: *f}
		if i, ok := index[trackID]; ok {
			rows[i] = row
			continue
		}
		index[trackID] = len(rows)
		rows = append(rows, row)
	}

	return rows
}

// ParseReleaseDate accepts full dates and the year-month and year-only
// precisions catalogs use for older releases.
func ParseReleaseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	return nil
}

func userKeys(rows []models.UserRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Username
	}

	return out
}

func artistKeys(rows []models.ArtistRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}

	return out
}

func albumKeys(rows []models.AlbumRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}

	return out
}

func linkSlice(set map[models.EntityLink]struct{}) []models.EntityLink {
	out := make([]models.EntityLink, 0, len(set))
	for l := range set {
		out = append(out, l)
	}

	return out
}
