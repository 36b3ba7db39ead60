// Package resolve collapses records onto dimension entities by natural key
// and assigns each entity a surrogate identifier.
package resolve

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/persistorai/listengraph/internal/models"
)

// DefaultTrackURIPrefix is stripped from track URIs to form the track key.
const DefaultTrackURIPrefix = "spotify:track:"

// Namespace seeds surrogate IDs so the same natural key always maps to the same UUID.
var Namespace = uuid.MustParse("8f6b1c2e-4a57-5d0e-9b3a-6c1f2e7d9a40")

// Resolver owns one identifier map per entity kind. All methods are safe for
// concurrent use.
type Resolver struct {
	prefix string

	mu        sync.RWMutex
	ids       map[models.EntityKind]map[string]uuid.UUID
	persisted map[models.EntityKind]map[string]struct{}
}

// New creates a Resolver. An empty prefix selects DefaultTrackURIPrefix.
func New(trackURIPrefix string) *Resolver {
	if trackURIPrefix == "" {
		trackURIPrefix = DefaultTrackURIPrefix
	}

	r := &Resolver{prefix: trackURIPrefix}
	r.Reset()

	return r
}

// Reset discards every mapping.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ids = make(map[models.EntityKind]map[string]uuid.UUID, len(models.EntityKinds))
	r.persisted = make(map[models.EntityKind]map[string]struct{}, len(models.EntityKinds))
	for _, k := range models.EntityKinds {
		r.ids[k] = make(map[string]uuid.UUID)
		r.persisted[k] = make(map[string]struct{})
	}
}

// Keys computes the natural key of every entity kind for rec.
func (r *Resolver) Keys(rec *models.CanonicalRecord) models.NaturalKeys {
	var keys models.NaturalKeys
	if rec == nil {
		return keys
	}

	keys.User = key(rec.Username())

	if rec.Track != nil {
		keys.Artist = key(deref(rec.Track.Artist))
		keys.Album = key(deref(rec.Track.Album))
	}
	if keys.Artist == "" && rec.Artist != nil {
		keys.Artist = key(deref(rec.Artist.Name))
	}
	if keys.Album == "" && rec.Album != nil {
		keys.Album = key(deref(rec.Album.Name))
	}

	uri := deref(rec.SpotifyTrackURI)
	if strings.TrimSpace(uri) == "" && rec.Track != nil {
		uri = deref(rec.Track.URI)
	}
	keys.Track = r.TrackKey(uri)

	return keys
}

// TrackKey strips the configured prefix from uri. An empty remainder yields
// "", meaning no track. A URI without the prefix is kept whole.
func (r *Resolver) TrackKey(uri string) string {
	return key(strings.TrimPrefix(strings.TrimSpace(uri), r.prefix))
}

// Observe registers the entities referenced by rec and returns their IDs
// along with the natural keys used.
func (r *Resolver) Observe(rec *models.CanonicalRecord) (models.NaturalKeys, models.EntityRefs) {
	keys := r.Keys(rec)

	r.mu.Lock()
	defer r.mu.Unlock()

	refs := models.EntityRefs{
		UserID:   r.observeLocked(models.KindUser, keys.User),
		ArtistID: r.observeLocked(models.KindArtist, keys.Artist),
		AlbumID:  r.observeLocked(models.KindAlbum, keys.Album),
		TrackID:  r.observeLocked(models.KindTrack, keys.Track),
	}

	return keys, refs
}

func (r *Resolver) observeLocked(kind models.EntityKind, k string) *uuid.UUID {
	if k == "" {
		return nil
	}

	id, ok := r.ids[kind][k]
	if !ok {
		id = SurrogateID(kind, k)
		r.ids[kind][k] = id
	}

	return &id
}

// Lookup returns the current ID for a natural key.
func (r *Resolver) Lookup(kind models.EntityKind, k string) (uuid.UUID, bool) {
	if k == "" {
		return uuid.Nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.ids[kind][k]

	return id, ok
}

// Rebind replaces the ID of a natural key with the one the store holds.
func (r *Resolver) Rebind(kind models.EntityKind, k string, id uuid.UUID) {
	if k == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.ids[kind][k] = id
}

// MarkPersisted records that the entities with the given keys are committed in the store.
func (r *Resolver) MarkPersisted(kind models.EntityKind, keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range keys {
		if k != "" {
			r.persisted[kind][k] = struct{}{}
		}
	}
}

// Persisted reports whether the entity with key k is committed in the store.
func (r *Resolver) Persisted(kind models.EntityKind, k string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.persisted[kind][k]

	return ok
}

// Counts returns the number of distinct entities per kind.
func (r *Resolver) Counts() map[models.EntityKind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[models.EntityKind]int, len(r.ids))
	for k, m := range r.ids {
		out[k] = len(m)
	}

	return out
}

// SurrogateID derives the stable ID of a natural key.
func SurrogateID(kind models.EntityKind, k string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(kind.String()+":"+k))
}

func key(s string) string {
	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
