package migrate

import (
	"time"

	"github.com/persistorai/listengraph/internal/indexes"
	"github.com/persistorai/listengraph/internal/metrics"
	"github.com/persistorai/listengraph/internal/models"
)

// Report is the final summary of a run.
type Report struct {
	Backend string           `json:"backend"`
	Mode    models.WriteMode `json:"mode"`
	DryRun  bool             `json:"dry_run,omitempty"`

	TotalRecords       int     `json:"total_records"`
	Processed          int     `json:"processed"`
	Inserted           int     `json:"inserted"`
	Updated            int     `json:"updated"`
	Failed             int     `json:"failed"`
	Resumed            int     `json:"resumed"`
	SuccessRatePercent float64 `json:"success_rate_percent"`

	Entities      map[string]int  `json:"entities"`
	AudioFeatures int             `json:"audio_features"`
	Links         int             `json:"links"`
	Indexes       *indexes.Report `json:"indexes,omitempty"`

	Duration         time.Duration `json:"-"`
	DurationSeconds  float64       `json:"duration_seconds"`
	RecordsPerSecond float64       `json:"records_per_second"`

	Canceled        bool              `json:"canceled,omitempty"`
	SourceError     string            `json:"source_error,omitempty"`
	Errors          []models.RowError `json:"errors,omitempty"`
	ErrorsTruncated int               `json:"errors_truncated,omitempty"`
}

// SuccessRate returns the share of rows that were written, as a percentage.
// Rows skipped on resume count as written, since only fully written batches
// are checkpointed. It is 0 when nothing was processed or resumed.
func SuccessRate(processed, resumed, failed int) float64 {
	total := processed + resumed
	if total <= 0 {
		return 0
	}

	return float64(total-failed) / float64(total) * 100
}

func (m *Migrator) buildReport(idx *indexes.Report, canceled bool, elapsed time.Duration) *Report {
	s := m.stats.snapshot()

	entities := make(map[string]int, len(models.EntityKinds))
	for kind, n := range m.resolver.Counts() {
		entities[kind.String()] = n
		metrics.Entities.WithLabelValues(kind.String()).Set(float64(n))
	}

	r := &Report{
		Backend:            m.backendName,
		Mode:               m.opts.Mode,
		DryRun:             m.opts.DryRun,
		TotalRecords:       s.TotalRecords,
		Processed:          s.Processed,
		Inserted:           s.Inserted,
		Updated:            s.Updated,
		Failed:             s.Failed,
		Resumed:            s.Resumed,
		SuccessRatePercent: SuccessRate(s.Processed, s.Resumed, s.Failed),
		Entities:           entities,
		AudioFeatures:      s.AudioFeatures,
		Links:              s.Links,
		Indexes:            idx,
		Duration:           elapsed,
		DurationSeconds:    elapsed.Seconds(),
		Canceled:           canceled,
		SourceError:        s.SourceError,
		Errors:             s.Errors,
		ErrorsTruncated:    s.ErrorsTruncated,
	}

	if secs := elapsed.Seconds(); secs > 0 {
		r.RecordsPerSecond = float64(s.Processed) / secs
	}

	return r
}
