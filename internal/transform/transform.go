// Package transform turns raw listening-history rows into canonical records.
package transform

import (
	"strings"
	"time"

	"github.com/persistorai/listengraph/internal/models"
)

// RecordKeySeparator joins the parts of a record key. It cannot occur in
// trimmed source text, so distinct part tuples never produce the same key.
const RecordKeySeparator = "\x1f"

// Source column names of the merged listening-history export.
const (
	colTrackURI  = "spotify_track_uri"
	colTimestamp = "ts_x"

	colUsername  = "username"
	colPlatform  = "platform"
	colCountry   = "conn_country"
	colIP        = "ip_addr_decrypted"
	colUserAgent = "user_agent_decrypted"

	colTrackName   = "master_metadata_track_name_x"
	colTrackArtist = "master_metadata_album_artist_name_x"
	colTrackAlbum  = "master_metadata_album_album_name_x"
	colTrackURI2   = "Track URI"
	colDuration    = "Track Duration (ms)_releases"
	colTrackNumber = "Track Number_releases"
	colDiscNumber  = "Disc Number_releases"
	colPreviewURL  = "Track Preview URL_releases"
	colPopularity  = "Popularity_releases"
	colISRC        = "ISRC_releases"

	colAlbumName        = "Album Name_releases"
	colAlbumURI         = "Album URI_releases"
	colAlbumArtistNames = "Album Artist Name(s)_releases"
	colAlbumArtistURIs  = "Album Artist URI(s)_releases"
	colAlbumRelease     = "Album Release Date_releases"
	colAlbumImage       = "Album Image URL_releases"
	colAlbumGenres      = "Album Genres"
	colLabel            = "Label"

	colArtistName   = "Artist Name(s)_releases"
	colArtistURI    = "Artist URI(s)_releases"
	colArtistGenres = "Artist Genres"

	colMsPlayed    = "ms_played_x"
	colSkipped     = "skipped"
	colReasonStart = "reason_start"
	colReasonEnd   = "reason_end"
	colShuffle     = "shuffle"
	colOffline     = "offline"

	colExplicit   = "Explicit_releases"
	colAddedBy    = "Added By_releases"
	colAddedAt    = "Added At_releases"
	colCopyrights = "Copyrights"
)

// DefaultTimestampLayouts are tried in order when no layouts are configured.
var DefaultTimestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

// Transformer maps raw rows to canonical records. It holds no mutable state
// and is safe for concurrent use.
type Transformer struct {
	layouts []string
}

// New creates a Transformer. A nil or empty layouts slice selects DefaultTimestampLayouts.
func New(layouts []string) *Transformer {
	if len(layouts) == 0 {
		layouts = DefaultTimestampLayouts
	}

	return &Transformer{layouts: append([]string(nil), layouts...)}
}

// Transform builds the canonical record for row. It never fails: malformed
// values are dropped and reported as issues.
func (t *Transformer) Transform(row models.RawRow) (models.CanonicalRecord, []FieldIssue) {
	f := &fields{row: row}

	rec := models.CanonicalRecord{
		SpotifyTrackURI: f.str(colTrackURI),
	}
	rec.Timestamp, rec.RawTimestamp = f.timestamp(colTimestamp, t.layouts)

	rec.User = nonZero(&models.UserInfo{
		Username:  f.str(colUsername),
		Platform:  f.str(colPlatform),
		Country:   f.str(colCountry),
		IP:        f.str(colIP),
		UserAgent: f.str(colUserAgent),
	})

	rec.Track = nonZero(&models.TrackInfo{
		Name:        f.str(colTrackName),
		Artist:      f.str(colTrackArtist),
		Album:       f.str(colTrackAlbum),
		URI:         f.str(colTrackURI2),
		DurationMs:  f.int(colDuration),
		TrackNumber: f.int(colTrackNumber),
		DiscNumber:  f.int(colDiscNumber),
		PreviewURL:  f.str(colPreviewURL),
		Popularity:  f.int(colPopularity),
		ISRC:        f.str(colISRC),
	})

	rec.Album = nonZero(&models.AlbumInfo{
		Name:        f.str(colAlbumName),
		URI:         f.str(colAlbumURI),
		ArtistNames: f.list(colAlbumArtistNames),
		ArtistURIs:  f.list(colAlbumArtistURIs),
		ReleaseDate: f.str(colAlbumRelease),
		ImageURL:    f.str(colAlbumImage),
		Genres:      f.list(colAlbumGenres),
		Label:       f.str(colLabel),
	})

	rec.Artist = nonZero(&models.ArtistInfo{
		Name:   f.str(colArtistName),
		URI:    f.str(colArtistURI),
		Genres: f.list(colArtistGenres),
	})

	rec.Listening = nonZero(&models.Listening{
		MsPlayed:    f.int(colMsPlayed),
		Skipped:     f.bool(colSkipped),
		Shuffle:     f.bool(colShuffle),
		Offline:     f.bool(colOffline),
		ReasonStart: f.str(colReasonStart),
		ReasonEnd:   f.str(colReasonEnd),
	})

	rec.AudioFeatures = nonZero(&models.AudioFeatures{
		Danceability:     f.float("Danceability"),
		Energy:           f.float("Energy"),
		Key:              f.int("Key"),
		Loudness:         f.float("Loudness"),
		Mode:             f.int("Mode"),
		Speechiness:      f.float("Speechiness"),
		Acousticness:     f.float("Acousticness"),
		Instrumentalness: f.float("Instrumentalness"),
		Liveness:         f.float("Liveness"),
		Valence:          f.float("Valence"),
		Tempo:            f.float("Tempo"),
		TimeSignature:    f.int("Time Signature"),
	})

	addedAt, _ := f.timestamp(colAddedAt, t.layouts)
	rec.Metadata = nonZero(&models.Metadata{
		Explicit:   f.bool(colExplicit),
		AddedBy:    f.str(colAddedBy),
		AddedAt:    addedAt,
		Copyrights: f.str(colCopyrights),
	})

	rec.RecordKey = RecordKey(f.text(colTrackURI), rec.Username(), rec.RawTimestamp)

	return rec, f.issues
}

// RecordKey derives the identity of a listening event.
func RecordKey(trackURI, username, rawTimestamp string) string {
	return strings.Join([]string{trackURI, username, rawTimestamp}, RecordKeySeparator)
}

type zeroer interface {
	IsZero() bool
}

// nonZero returns g, or nil when every field of g is absent.
func nonZero[T zeroer](g T) T {
	if g.IsZero() {
		var zero T
		return zero
	}

	return g
}
