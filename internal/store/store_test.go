package store_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/db"
	"github.com/persistorai/listengraph/internal/db/migrations"
	"github.com/persistorai/listengraph/internal/dbpool"
	"github.com/persistorai/listengraph/internal/indexes"
	"github.com/persistorai/listengraph/internal/models"
	"github.com/persistorai/listengraph/internal/store"
)

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var sharedEnv *testEnv

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if sharedEnv != nil {
		return sharedEnv
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := dbpool.NewPool(ctx, dbURL, 2)
	if err != nil {
		t.Fatalf("connecting to test DB: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	sharedEnv = &testEnv{pool: pool, log: log}

	return sharedEnv
}

func ptr[T any](v T) *T { return &v }

// seed inserts one user and one track with unique natural keys and returns
// their stored IDs.
func seed(t *testing.T, s *store.Store) (userID, trackID uuid.UUID) {
	t.Helper()

	ctx := context.Background()
	suffix := uuid.NewString()
	user := "user-" + suffix
	track := "track-" + suffix

	set := models.DimensionSet{
		Users:  []models.UserRow{{ID: uuid.New(), Username: user, Platform: ptr("android")}},
		Tracks: []models.TrackRow{{ID: uuid.New(), TrackID: track, Name: ptr("Song"), DurationMs: ptr(int64(200000))}},
	}
	if err := s.InsertDimensions(ctx, set); err != nil {
		t.Fatalf("inserting dimensions: %v", err)
	}

	users, err := s.LookupIDs(ctx, models.KindUser, []string{user})
	if err != nil {
		t.Fatalf("looking up user: %v", err)
	}

	tracks, err := s.LookupIDs(ctx, models.KindTrack, []string{track})
	if err != nil {
		t.Fatalf("looking up track: %v", err)
	}

	return users[user], tracks[track]
}

func TestInsertDimensions_ExistingKeysKeepTheirID(t *testing.T) {
	env := getTestEnv(t)
	s := store.New(store.Base{Pool: env.pool, Log: env.log})
	ctx := context.Background()

	name := "artist-" + uuid.NewString()
	first := uuid.New()

	if err := s.InsertDimensions(ctx, models.DimensionSet{Artists: []models.ArtistRow{{ID: first, Name: name}}}); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	if err := s.InsertDimensions(ctx, models.DimensionSet{Artists: []models.ArtistRow{{ID: uuid.New(), Name: name}}}); err != nil {
		t.Fatalf("second insert: %v", err)
	}

	ids, err := s.LookupIDs(ctx, models.KindArtist, []string{name, "missing-" + name})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	if len(ids) != 1 || ids[name] != first {
		t.Errorf("expected the first id to survive, got %v", ids)
	}
}

func TestWriteListens_UpsertReportsInsertThenUpdate(t *testing.T) {
	env := getTestEnv(t)
	s := store.New(store.Base{Pool: env.pool, Log: env.log})
	ctx := context.Background()

	userID, trackID := seed(t, s)
	row := models.ListenRow{
		ID:        uuid.New(),
		RecordKey: "key-" + uuid.NewString(),
		UserID:    userID,
		TrackID:   trackID,
		PlayedAt:  time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC),
		MsPlayed:  ptr(int64(100000)),
	}

	out, err := s.WriteListens(ctx, []models.ListenRow{row}, models.ModeUpsert)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if out[0].Status != models.OutcomeInserted {
		t.Errorf("expected inserted, got %+v", out[0])
	}

	out, err = s.WriteListens(ctx, []models.ListenRow{row}, models.ModeUpsert)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if out[0].Status != models.OutcomeUpdated {
		t.Errorf("expected updated, got %+v", out[0])
	}
}

func TestWriteListens_InsertModeDuplicates(t *testing.T) {
	env := getTestEnv(t)
	s := store.New(store.Base{Pool: env.pool, Log: env.log})
	ctx := context.Background()

	userID, trackID := seed(t, s)
	row := models.ListenRow{
		ID:        uuid.New(),
		RecordKey: "key-" + uuid.NewString(),
		UserID:    userID,
		TrackID:   trackID,
		PlayedAt:  time.Now().UTC(),
	}

	if _, err := s.WriteListens(ctx, []models.ListenRow{row}, models.ModeInsert); err != nil {
		t.Fatalf("first write: %v", err)
	}

	out, err := s.WriteListens(ctx, []models.ListenRow{row}, models.ModeInsert)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	if out[0].Status != models.OutcomeFailed || !errors.Is(out[0].Err, models.ErrDuplicateKey) {
		t.Errorf("expected duplicate failure, got %+v", out[0])
	}
}

func TestWriteListens_BadRowDoesNotFailNeighbours(t *testing.T) {
	env := getTestEnv(t)
	s := store.New(store.Base{Pool: env.pool, Log: env.log})
	ctx := context.Background()

	userID, trackID := seed(t, s)
	good := models.ListenRow{
		ID: uuid.New(), RecordKey: "key-" + uuid.NewString(),
		UserID: userID, TrackID: trackID, PlayedAt: time.Now().UTC(),
	}
	bad := models.ListenRow{
		ID: uuid.New(), RecordKey: "key-" + uuid.NewString(),
		UserID: uuid.New(), TrackID: trackID, PlayedAt: time.Now().UTC(),
	}

	out, err := s.WriteListens(ctx, []models.ListenRow{good, bad}, models.ModeUpsert)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	if out[0].Status != models.OutcomeInserted {
		t.Errorf("good row: expected inserted, got %+v", out[0])
	}

	if out[1].Status != models.OutcomeFailed || out[1].Err == nil {
		t.Errorf("bad row: expected failure, got %+v", out[1])
	}
}

func TestLinksAndFeatures(t *testing.T) {
	env := getTestEnv(t)
	s := store.New(store.Base{Pool: env.pool, Log: env.log})
	ctx := context.Background()

	_, trackID := seed(t, s)
	artist := "artist-" + uuid.NewString()
	if err := s.InsertDimensions(ctx, models.DimensionSet{Artists: []models.ArtistRow{{ID: uuid.New(), Name: artist}}}); err != nil {
		t.Fatalf("inserting artist: %v", err)
	}
	ids, err := s.LookupIDs(ctx, models.KindArtist, []string{artist})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	link := []models.EntityLink{{FromID: trackID, ToID: ids[artist], Role: "primary"}}
	for i, want := range []int{1, 0} {
		n, err := s.LinkTrackArtists(ctx, link)
		if err != nil {
			t.Fatalf("link %d: %v", i, err)
		}
		if n != want {
			t.Errorf("link %d: expected %d new, got %d", i, want, n)
		}
	}

	features := []models.AudioFeatureRow{{TrackID: trackID, Features: models.AudioFeatures{Tempo: ptr(120.0)}}}
	n, err := s.WriteAudioFeatures(ctx, features, models.ModeUpsert)
	if err != nil || n != 1 {
		t.Fatalf("writing features: n=%d err=%v", n, err)
	}
}

func TestIndexCreator_Idempotent(t *testing.T) {
	env := getTestEnv(t)
	c := store.NewIndexCreator(store.Base{Pool: env.pool, Log: env.log})

	for i := range 2 {
		r := indexes.Ensure(context.Background(), c, indexes.RelationalPlan(), env.log)
		if r.Failed != 0 {
			t.Fatalf("run %d: %v", i, r.Errors)
		}
	}
}
