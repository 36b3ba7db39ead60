package docstore

import (
	"time"

	"github.com/persistorai/listengraph/internal/models"
)

// Migration provenance stamped on every document.
const (
	MigrationSource  = "csv_import"
	MigrationVersion = "1.0"
)

// document is the stored shape of one listening event. The record groups are
// inlined so the collection keeps its flat top-level layout.
type document struct {
	ID                     string `bson:"_id"`
	models.CanonicalRecord `bson:",inline"`
	Refs                   *refs     `bson:"refs,omitempty"`
	Migration              migration `bson:"migration"`
}

type refs struct {
	UserID   string `bson:"user_id,omitempty"`
	ArtistID string `bson:"artist_id,omitempty"`
	AlbumID  string `bson:"album_id,omitempty"`
	TrackID  string `bson:"track_id,omitempty"`
}

type migration struct {
	CreatedAt time.Time `bson:"created_at"`
	Source    string    `bson:"source"`
	Version   string    `bson:"version"`
}

// buildDocument converts one operation into its stored document.
func buildDocument(op models.BatchOperation, now time.Time) document {
	doc := document{
		ID:              op.Record.RecordKey,
		CanonicalRecord: *op.Record,
		Migration: migration{
			CreatedAt: now.UTC(),
			Source:    MigrationSource,
			Version:   MigrationVersion,
		},
	}

	r := refs{}
	if id := op.Refs.UserID; id != nil {
		r.UserID = id.String()
	}
	if id := op.Refs.ArtistID; id != nil {
		r.ArtistID = id.String()
	}
	if id := op.Refs.AlbumID; id != nil {
		r.AlbumID = id.String()
	}
	if id := op.Refs.TrackID; id != nil {
		r.TrackID = id.String()
	}
	if r != (refs{}) {
		doc.Refs = &r
	}

	return doc
}
