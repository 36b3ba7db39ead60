package writer_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/persistorai/listengraph/internal/models"
)

// memDocStore is an in-memory DocumentStore with per-call error injection.
type memDocStore struct {
	mu     sync.Mutex
	docs   map[string]models.CanonicalRecord
	calls  int
	errs   []error
	reject map[string]error
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[string]models.CanonicalRecord), reject: make(map[string]error)}
}

func (m *memDocStore) WriteDocuments(_ context.Context, ops []models.BatchOperation, mode models.WriteMode) ([]models.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}

	out := make([]models.Outcome, len(ops))
	for i, op := range ops {
		key := op.Record.RecordKey
		if err, ok := m.reject[key]; ok {
			out[i] = models.Outcome{Status: models.OutcomeFailed, Err: err}
			continue
		}

		_, exists := m.docs[key]
		switch {
		case exists && mode == models.ModeInsert:
			out[i] = models.Outcome{Status: models.OutcomeFailed, Err: models.ErrDuplicateKey}
		case exists:
			m.docs[key] = *op.Record
			out[i] = models.Outcome{Status: models.OutcomeUpdated}
		default:
			m.docs[key] = *op.Record
			out[i] = models.Outcome{Status: models.OutcomeInserted}
		}
	}

	return out, nil
}

// memIDs is a minimal IdentityMap.
type memIDs struct {
	mu        sync.Mutex
	ids       map[models.EntityKind]map[string]uuid.UUID
	persisted map[models.EntityKind]map[string]bool
}

func newMemIDs() *memIDs {
	m := &memIDs{
		ids:       make(map[models.EntityKind]map[string]uuid.UUID),
		persisted: make(map[models.EntityKind]map[string]bool),
	}
	for _, k := range models.EntityKinds {
		m.ids[k] = make(map[string]uuid.UUID)
		m.persisted[k] = make(map[string]bool)
	}

	return m
}

func (m *memIDs) observe(kind models.EntityKind, key string) *uuid.UUID {
	if key == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.ids[kind][key]
	if !ok {
		id = uuid.New()
		m.ids[kind][key] = id
	}

	return &id
}

func (m *memIDs) Lookup(kind models.EntityKind, key string) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.ids[kind][key]

	return id, ok && key != ""
}

func (m *memIDs) Rebind(kind models.EntityKind, key string, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ids[kind][key] = id
}

func (m *memIDs) MarkPersisted(kind models.EntityKind, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		m.persisted[kind][k] = true
	}
}

func (m *memIDs) Persisted(kind models.EntityKind, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.persisted[kind][key]
}

// memRelStore is an in-memory RelationalStore. Dimension tables may assign
// their own IDs to exercise rebinding.
type memRelStore struct {
	mu sync.Mutex

	dims         map[models.EntityKind]map[string]uuid.UUID
	tracks       map[string]models.TrackRow
	listens      map[string]models.ListenRow
	features     map[uuid.UUID]models.AudioFeatureRow
	trackArtists map[models.EntityLink]bool
	albumArtists map[models.EntityLink]bool

	storeAssignsIDs bool
	insertCalls     int
	dimErrs         []error
	listenErr       error

	// refuse fails any InsertDimensions call whose set carries one of these
	// natural keys, leaving the whole set unwritten.
	refuse map[string]error
}

func newMemRelStore() *memRelStore {
	s := &memRelStore{
		dims:         make(map[models.EntityKind]map[string]uuid.UUID),
		tracks:       make(map[string]models.TrackRow),
		listens:      make(map[string]models.ListenRow),
		features:     make(map[uuid.UUID]models.AudioFeatureRow),
		trackArtists: make(map[models.EntityLink]bool),
		albumArtists: make(map[models.EntityLink]bool),
		refuse:       make(map[string]error),
	}
	for _, k := range models.EntityKinds {
		s.dims[k] = make(map[string]uuid.UUID)
	}

	return s
}

func (s *memRelStore) put(kind models.EntityKind, key string, id uuid.UUID) {
	if _, ok := s.dims[kind][key]; ok {
		return
	}
	if s.storeAssignsIDs {
		id = uuid.New()
	}
	s.dims[kind][key] = id
}

func (s *memRelStore) InsertDimensions(_ context.Context, set models.DimensionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertCalls++
	if len(s.dimErrs) > 0 {
		err := s.dimErrs[0]
		s.dimErrs = s.dimErrs[1:]
		if err != nil {
			return err
		}
	}

	if err := s.refused(set); err != nil {
		return err
	}

	for _, u := range set.Users {
		s.put(models.KindUser, u.Username, u.ID)
	}
	for _, a := range set.Artists {
		s.put(models.KindArtist, a.Name, a.ID)
	}
	for _, a := range set.Albums {
		s.put(models.KindAlbum, a.Name, a.ID)
	}
	for _, t := range set.Tracks {
		s.put(models.KindTrack, t.TrackID, t.ID)
		if _, ok := s.tracks[t.TrackID]; !ok {
			s.tracks[t.TrackID] = t
		}
	}

	return nil
}

func (s *memRelStore) refused(set models.DimensionSet) error {
	keys := make([]string, 0, set.Len())
	for _, u := range set.Users {
		keys = append(keys, u.Username)
	}
	for _, a := range set.Artists {
		keys = append(keys, a.Name)
	}
	for _, a := range set.Albums {
		keys = append(keys, a.Name)
	}
	for _, t := range set.Tracks {
		keys = append(keys, t.TrackID)
	}

	for _, k := range keys {
		if err, ok := s.refuse[k]; ok {
			return err
		}
	}

	return nil
}

func (s *memRelStore) LookupIDs(_ context.Context, kind models.EntityKind, keys []string) (map[string]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]uuid.UUID, len(keys))
	for _, k := range keys {
		if id, ok := s.dims[kind][k]; ok {
			out[k] = id
		}
	}

	return out, nil
}

func (s *memRelStore) link(set map[models.EntityLink]bool, links []models.EntityLink) int {
	n := 0
	for _, l := range links {
		if !set[l] {
			set[l] = true
			n++
		}
	}

	return n
}

func (s *memRelStore) LinkTrackArtists(_ context.Context, links []models.EntityLink) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.link(s.trackArtists, links), nil
}

func (s *memRelStore) LinkAlbumArtists(_ context.Context, links []models.EntityLink) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.link(s.albumArtists, links), nil
}

func (s *memRelStore) WriteListens(_ context.Context, rows []models.ListenRow, mode models.WriteMode) ([]models.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listenErr != nil {
		return nil, s.listenErr
	}

	out := make([]models.Outcome, len(rows))
	for i, r := range rows {
		_, exists := s.listens[r.RecordKey]
		switch {
		case exists && mode == models.ModeInsert:
			out[i] = models.Outcome{Status: models.OutcomeFailed, Err: models.ErrDuplicateKey}
		case exists:
			s.listens[r.RecordKey] = r
			out[i] = models.Outcome{Status: models.OutcomeUpdated}
		default:
			s.listens[r.RecordKey] = r
			out[i] = models.Outcome{Status: models.OutcomeInserted}
		}
	}

	return out, nil
}

func (s *memRelStore) WriteAudioFeatures(_ context.Context, rows []models.AudioFeatureRow, _ models.WriteMode) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		s.features[r.TrackID] = r
	}

	return len(rows), nil
}
