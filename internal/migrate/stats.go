package migrate

import (
	"sync"

	"github.com/persistorai/listengraph/internal/models"
)

// DefaultMaxReportedErrors bounds the row errors kept for the report.
const DefaultMaxReportedErrors = 1000

// Stats are the cumulative counters of one run. Processed always equals
// Inserted + Updated + Failed; rows skipped on resume are counted in
// Resumed only.
type Stats struct {
	TotalRecords int `json:"total_records"`
	Processed    int `json:"processed"`
	Inserted     int `json:"inserted"`
	Updated      int `json:"updated"`
	Failed       int `json:"failed"`
	Resumed      int `json:"resumed"`

	Batches       int `json:"batches"`
	AudioFeatures int `json:"audio_features"`
	Links         int `json:"links"`

	Errors          []models.RowError `json:"errors,omitempty"`
	ErrorsTruncated int               `json:"errors_truncated,omitempty"`
	// SourceError is set when reading stopped before the end of the input.
	SourceError string `json:"source_error,omitempty"`
}

// statsAccumulator guards Stats for concurrent batch workers and observers.
type statsAccumulator struct {
	mu        sync.Mutex
	s         Stats
	maxErrors int
}

func newStatsAccumulator(maxErrors int) *statsAccumulator {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxReportedErrors
	}

	return &statsAccumulator{maxErrors: maxErrors}
}

// addBatch folds one written batch of rows rows into the totals.
func (a *statsAccumulator) addBatch(rows int, res models.BatchResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.s.TotalRecords += rows
	a.s.Processed += res.Processed()
	a.s.Inserted += res.Inserted
	a.s.Updated += res.Updated
	a.s.Failed += res.Failed
	a.s.AudioFeatures += res.AudioFeatures
	a.s.Links += res.Links
	a.s.Batches++

	for _, e := range res.Errors {
		if len(a.s.Errors) >= a.maxErrors {
			a.s.ErrorsTruncated++
			continue
		}
		a.s.Errors = append(a.s.Errors, e)
	}
}

// addResumed counts a batch skipped because a matching checkpoint exists.
func (a *statsAccumulator) addResumed(rows int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.s.TotalRecords += rows
	a.s.Resumed += rows
	a.s.Batches++
}

func (a *statsAccumulator) sourceFailed(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.s.SourceError = err.Error()
}

// snapshot returns a deep copy.
func (a *statsAccumulator) snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.s
	s.Errors = append([]models.RowError(nil), a.s.Errors...)

	return s
}
