package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRow is a users dimension row.
type UserRow struct {
	ID       uuid.UUID
	Username string
	Platform *string
	Country  *string
}

// ArtistRow is an artists dimension row.
type ArtistRow struct {
	ID     uuid.UUID
	Name   string
	URI    *string
	Genres []string
}

// AlbumRow is an albums dimension row.
type AlbumRow struct {
	ID          uuid.UUID
	Name        string
	URI         *string
	ReleaseDate *time.Time
	Label       *string
	ImageURL    *string
	Genres      []string
}

// TrackRow is a tracks dimension row. AlbumID is resolved before insert.
type TrackRow struct {
	ID          uuid.UUID
	TrackID     string
	Name        *string
	AlbumID     *uuid.UUID
	DurationMs  *int64
	TrackNumber *int64
	DiscNumber  *int64
	Explicit    *bool
	Popularity  *int64
	PreviewURL  *string
	ISRC        *string
}

// ListenRow is a listening_history fact row.
type ListenRow struct {
	ID             uuid.UUID
	RecordKey      string
	UserID         uuid.UUID
	TrackID        uuid.UUID
	PlayedAt       time.Time
	MsPlayed       *int64
	CompletionRate *float64
	Skipped        *bool
	Shuffle        *bool
	Offline        *bool
	ReasonStart    *string
	ReasonEnd      *string
	Platform       *string
	Country        *string
}

// AudioFeatureRow is an audio_features row keyed by track.
type AudioFeatureRow struct {
	TrackID  uuid.UUID
	Features AudioFeatures
}

// EntityLink is a graph edge between two dimension entities.
type EntityLink struct {
	FromID uuid.UUID
	ToID   uuid.UUID
	Role   string
}

// DimensionSet groups dimension rows persisted together.
type DimensionSet struct {
	Users   []UserRow
	Artists []ArtistRow
	Albums  []AlbumRow
	Tracks  []TrackRow
}

// Len returns the total number of rows.
func (d DimensionSet) Len() int {
	return len(d.Users) + len(d.Artists) + len(d.Albums) + len(d.Tracks)
}
