package transform

import (
	"math"

	"github.com/persistorai/listengraph/internal/models"
)

// Annotate sets the derived completion rate on rec. The rate is left absent
// when either input is missing, ms played is zero, or the duration is not positive.
func Annotate(rec *models.CanonicalRecord) {
	if rec == nil {
		return
	}

	rate, ok := CompletionRate(msPlayed(rec), durationMs(rec))
	if !ok {
		if rec.Listening != nil {
			rec.Listening.CompletionRate = nil
		}
		return
	}

	if rec.Listening == nil {
		rec.Listening = &models.Listening{}
	}
	rec.Listening.CompletionRate = &rate
}

// CompletionRate returns msPlayed/durationMs clamped to [0,1].
func CompletionRate(msPlayed, durationMs *int64) (float64, bool) {
	if msPlayed == nil || durationMs == nil || *msPlayed == 0 || *durationMs <= 0 {
		return 0, false
	}

	rate := float64(*msPlayed) / float64(*durationMs)
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, false
	}

	return math.Min(1, math.Max(0, rate)), true
}

func msPlayed(rec *models.CanonicalRecord) *int64 {
	if rec.Listening == nil {
		return nil
	}

	return rec.Listening.MsPlayed
}

func durationMs(rec *models.CanonicalRecord) *int64 {
	if rec.Track == nil {
		return nil
	}

	return rec.Track.DurationMs
}
