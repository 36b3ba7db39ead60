package transform_test

import (
	"math"
	"testing"

	"github.com/persistorai/listengraph/internal/models"
	"github.com/persistorai/listengraph/internal/transform"
)

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		name     string
		played   *int64
		duration *int64
		want     float64
		wantOK   bool
	}{
		{name: "half", played: ptr(int64(90000)), duration: ptr(int64(180000)), want: 0.5, wantOK: true},
		{name: "full", played: ptr(int64(180000)), duration: ptr(int64(180000)), want: 1, wantOK: true},
		{name: "over clamps to one", played: ptr(int64(500000)), duration: ptr(int64(180000)), want: 1, wantOK: true},
		{name: "negative clamps to zero", played: ptr(int64(-5)), duration: ptr(int64(100)), want: 0, wantOK: true},
		{name: "played absent", duration: ptr(int64(100))},
		{name: "duration absent", played: ptr(int64(100))},
		{name: "played zero", played: ptr(int64(0)), duration: ptr(int64(100))},
		{name: "duration zero", played: ptr(int64(10)), duration: ptr(int64(0))},
		{name: "duration negative", played: ptr(int64(10)), duration: ptr(int64(-100))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := transform.CompletionRate(tc.played, tc.duration)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("rate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCompletionRate_AlwaysInBounds(t *testing.T) {
	values := []int64{-1 << 40, -1, 1, 7, 999, 180000, 1 << 40}

	for _, p := range values {
		for _, d := range values {
			rate, ok := transform.CompletionRate(ptr(p), ptr(d))
			if !ok {
				if d > 0 {
					t.Errorf("expected a rate for played=%d duration=%d", p, d)
				}
				continue
			}
			if rate < 0 || rate > 1 {
				t.Errorf("rate %v out of bounds for played=%d duration=%d", rate, p, d)
			}
		}
	}
}

func TestAnnotate(t *testing.T) {
	t.Run("creates listening group", func(t *testing.T) {
		rec := &models.CanonicalRecord{
			Track:     &models.TrackInfo{DurationMs: ptr(int64(200))},
			Listening: &models.Listening{MsPlayed: ptr(int64(50))},
		}
		transform.Annotate(rec)

		if rec.Listening.CompletionRate == nil || *rec.Listening.CompletionRate != 0.25 {
			t.Errorf("expected 0.25, got %v", rec.Listening.CompletionRate)
		}
	})

	t.Run("absent stays absent", func(t *testing.T) {
		rec := &models.CanonicalRecord{Track: &models.TrackInfo{DurationMs: ptr(int64(200))}}
		transform.Annotate(rec)

		if rec.Listening != nil {
			t.Errorf("expected no listening group, got %+v", rec.Listening)
		}
	})

	t.Run("clears stale value", func(t *testing.T) {
		rec := &models.CanonicalRecord{Listening: &models.Listening{CompletionRate: ptr(0.5)}}
		transform.Annotate(rec)

		if rec.Listening.CompletionRate != nil {
			t.Errorf("expected rate cleared, got %v", *rec.Listening.CompletionRate)
		}
	})

	t.Run("nil record", func(_ *testing.T) {
		transform.Annotate(nil)
	})
}
