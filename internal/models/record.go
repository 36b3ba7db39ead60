package models

import "time"

// CanonicalRecord is the cleaned, nested form of one listening event.
// A nil group means every field of that group was absent in the source row.
type CanonicalRecord struct {
	RecordKey       string         `json:"record_key" bson:"-"`
	SpotifyTrackURI *string        `json:"spotify_track_uri,omitempty" bson:"spotify_track_uri,omitempty"`
	Timestamp       *time.Time     `json:"timestamp,omitempty" bson:"timestamp,omitempty"`
	RawTimestamp    string         `json:"-" bson:"-"`
	User            *UserInfo      `json:"user,omitempty" bson:"user,omitempty"`
	Track           *TrackInfo     `json:"track,omitempty" bson:"track,omitempty"`
	Album           *AlbumInfo     `json:"album,omitempty" bson:"album,omitempty"`
	Artist          *ArtistInfo    `json:"artist,omitempty" bson:"artist,omitempty"`
	Listening       *Listening     `json:"listening,omitempty" bson:"listening,omitempty"`
	AudioFeatures   *AudioFeatures `json:"audio_features,omitempty" bson:"audio_features,omitempty"`
	Metadata        *Metadata      `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// UserInfo describes the account and client that produced a listening event.
type UserInfo struct {
	Username  *string `json:"username,omitempty" bson:"username,omitempty"`
	Platform  *string `json:"platform,omitempty" bson:"platform,omitempty"`
	Country   *string `json:"country,omitempty" bson:"country,omitempty"`
	IP        *string `json:"ip_address,omitempty" bson:"ip_address,omitempty"`
	UserAgent *string `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
}

// TrackInfo is the track as seen by the listening history and the release catalog.
type TrackInfo struct {
	Name        *string `json:"name,omitempty" bson:"name,omitempty"`
	Artist      *string `json:"artist,omitempty" bson:"artist,omitempty"`
	Album       *string `json:"album,omitempty" bson:"album,omitempty"`
	URI         *string `json:"uri,omitempty" bson:"uri,omitempty"`
	DurationMs  *int64  `json:"duration_ms,omitempty" bson:"duration_ms,omitempty"`
	TrackNumber *int64  `json:"track_number,omitempty" bson:"track_number,omitempty"`
	DiscNumber  *int64  `json:"disc_number,omitempty" bson:"disc_number,omitempty"`
	PreviewURL  *string `json:"preview_url,omitempty" bson:"preview_url,omitempty"`
	Popularity  *int64  `json:"popularity,omitempty" bson:"popularity,omitempty"`
	ISRC        *string `json:"isrc,omitempty" bson:"isrc,omitempty"`
}

// AlbumInfo is the release a track belongs to.
type AlbumInfo struct {
	Name        *string  `json:"name,omitempty" bson:"name,omitempty"`
	URI         *string  `json:"uri,omitempty" bson:"uri,omitempty"`
	ArtistNames []string `json:"artist_names,omitempty" bson:"artist_names,omitempty"`
	ArtistURIs  []string `json:"artist_uris,omitempty" bson:"artist_uris,omitempty"`
	ReleaseDate *string  `json:"release_date,omitempty" bson:"release_date,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Genres      []string `json:"genres,omitempty" bson:"genres,omitempty"`
	Label       *string  `json:"label,omitempty" bson:"label,omitempty"`
}

// ArtistInfo is the performing artist of a track.
type ArtistInfo struct {
	Name   *string  `json:"name,omitempty" bson:"name,omitempty"`
	URI    *string  `json:"uri,omitempty" bson:"uri,omitempty"`
	Genres []string `json:"genres,omitempty" bson:"genres,omitempty"`
}

// Listening holds playback behaviour. CompletionRate is derived, never read from the source.
type Listening struct {
	MsPlayed       *int64   `json:"ms_played,omitempty" bson:"ms_played,omitempty"`
	Skipped        *bool    `json:"skipped,omitempty" bson:"skipped,omitempty"`
	Shuffle        *bool    `json:"shuffle,omitempty" bson:"shuffle,omitempty"`
	Offline        *bool    `json:"offline,omitempty" bson:"offline,omitempty"`
	ReasonStart    *string  `json:"reason_start,omitempty" bson:"reason_start,omitempty"`
	ReasonEnd      *string  `json:"reason_end,omitempty" bson:"reason_end,omitempty"`
	CompletionRate *float64 `json:"completion_rate,omitempty" bson:"completion_rate,omitempty"`
}

// AudioFeatures are the per-track acoustic descriptors.
type AudioFeatures struct {
	Danceability     *float64 `json:"danceability,omitempty" bson:"danceability,omitempty"`
	Energy           *float64 `json:"energy,omitempty" bson:"energy,omitempty"`
	Key              *int64   `json:"key,omitempty" bson:"key,omitempty"`
	Loudness         *float64 `json:"loudness,omitempty" bson:"loudness,omitempty"`
	Mode             *int64   `json:"mode,omitempty" bson:"mode,omitempty"`
	Speechiness      *float64 `json:"speechiness,omitempty" bson:"speechiness,omitempty"`
	Acousticness     *float64 `json:"acousticness,omitempty" bson:"acousticness,omitempty"`
	Instrumentalness *float64 `json:"instrumentalness,omitempty" bson:"instrumentalness,omitempty"`
	Liveness         *float64 `json:"liveness,omitempty" bson:"liveness,omitempty"`
	Valence          *float64 `json:"valence,omitempty" bson:"valence,omitempty"`
	Tempo            *float64 `json:"tempo,omitempty" bson:"tempo,omitempty"`
	TimeSignature    *int64   `json:"time_signature,omitempty" bson:"time_signature,omitempty"`
}

// Metadata is catalog bookkeeping attached to the track.
type Metadata struct {
	Explicit   *bool      `json:"explicit,omitempty" bson:"explicit,omitempty"`
	AddedBy    *string    `json:"added_by,omitempty" bson:"added_by,omitempty"`
	AddedAt    *time.Time `json:"added_at,omitempty" bson:"added_at,omitempty"`
	Copyrights *string    `json:"copyrights,omitempty" bson:"copyrights,omitempty"`
}

// IsZero reports whether no user field is set.
func (u *UserInfo) IsZero() bool {
	return u == nil || (u.Username == nil && u.Platform == nil && u.Country == nil && u.IP == nil && u.UserAgent == nil)
}

// IsZero reports whether no track field is set.
func (t *TrackInfo) IsZero() bool {
	return t == nil || (t.Name == nil && t.Artist == nil && t.Album == nil && t.URI == nil &&
		t.DurationMs == nil && t.TrackNumber == nil && t.DiscNumber == nil &&
		t.PreviewURL == nil && t.Popularity == nil && t.ISRC == nil)
}

// IsZero reports whether no album field is set.
func (a *AlbumInfo) IsZero() bool {
	return a == nil || (a.Name == nil && a.URI == nil && len(a.ArtistNames) == 0 && len(a.ArtistURIs) == 0 &&
		a.ReleaseDate == nil && a.ImageURL == nil && len(a.Genres) == 0 && a.Label == nil)
}

// IsZero reports whether no artist field is set.
func (a *ArtistInfo) IsZero() bool {
	return a == nil || (a.Name == nil && a.URI == nil && len(a.Genres) == 0)
}

// IsZero reports whether no listening field is set.
func (l *Listening) IsZero() bool {
	return l == nil || (l.MsPlayed == nil && l.Skipped == nil && l.Shuffle == nil && l.Offline == nil &&
		l.ReasonStart == nil && l.ReasonEnd == nil && l.CompletionRate == nil)
}

// IsZero reports whether no audio feature is set.
func (f *AudioFeatures) IsZero() bool {
	return f == nil || (f.Danceability == nil && f.Energy == nil && f.Key == nil && f.Loudness == nil &&
		f.Mode == nil && f.Speechiness == nil && f.Acousticness == nil && f.Instrumentalness == nil &&
		f.Liveness == nil && f.Valence == nil && f.Tempo == nil && f.TimeSignature == nil)
}

// IsZero reports whether no metadata field is set.
func (m *Metadata) IsZero() bool {
	return m == nil || (m.Explicit == nil && m.AddedBy == nil && m.AddedAt == nil && m.Copyrights == nil)
}

// Username returns the username, or "" when absent.
func (r *CanonicalRecord) Username() string {
	if r.User == nil || r.User.Username == nil {
		return ""
	}

	return *r.User.Username
}
