package models

import "github.com/google/uuid"

// EntityKind identifies a dimension entity type.
type EntityKind int

// Dimension entity kinds, in the order the relational backend persists them.
const (
	KindUser EntityKind = iota
	KindArtist
	KindAlbum
	KindTrack
)

// EntityKinds lists every kind for iteration.
var EntityKinds = []EntityKind{KindUser, KindArtist, KindAlbum, KindTrack}

// String returns the lowercase kind name.
func (k EntityKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindArtist:
		return "artist"
	case KindAlbum:
		return "album"
	case KindTrack:
		return "track"
	default:
		return "unknown"
	}
}

// EntityRefs holds the surrogate IDs resolved for one record. A nil field
// means the record had no natural key for that kind.
type EntityRefs struct {
	UserID   *uuid.UUID `json:"user_id,omitempty"`
	ArtistID *uuid.UUID `json:"artist_id,omitempty"`
	AlbumID  *uuid.UUID `json:"album_id,omitempty"`
	TrackID  *uuid.UUID `json:"track_id,omitempty"`
}

// NaturalKeys holds the natural key per kind for one record; "" means absent.
type NaturalKeys struct {
	User   string
	Artist string
	Album  string
	Track  string
}

// Get returns the key for kind.
func (n NaturalKeys) Get(kind EntityKind) string {
	switch kind {
	case KindUser:
		return n.User
	case KindArtist:
		return n.Artist
	case KindAlbum:
		return n.Album
	case KindTrack:
		return n.Track
	default:
		return ""
	}
}
