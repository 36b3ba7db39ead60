package models

import "fmt"

// WriteMode selects insert or upsert semantics for a run.
type WriteMode string

// Write modes.
const (
	ModeInsert WriteMode = "insert"
	ModeUpsert WriteMode = "upsert"
)

// ParseWriteMode validates a mode string.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(s) {
	case ModeInsert, ModeUpsert:
		return WriteMode(s), nil
	default:
		return "", fmt.Errorf("write mode must be 'insert' or 'upsert', got %q", s)
	}
}

// BatchOperation is one write targeting a single record, tagged with the
// source line it came from.
type BatchOperation struct {
	Line   int
	Kind   WriteMode
	Record *CanonicalRecord
	Keys   NaturalKeys
	Refs   EntityRefs
}

// RowError attributes a failure to a source row.
type RowError struct {
	Line      int    `json:"line"`
	Operation string `json:"operation"`
	RecordKey string `json:"record_key,omitempty"`
	Message   string `json:"message"`
}

// Error implements error.
func (e RowError) Error() string {
	return fmt.Sprintf("line %d (%s): %s", e.Line, e.Operation, e.Message)
}

// NewRowError builds a RowError for op.
func NewRowError(op BatchOperation, err error) RowError {
	key := ""
	if op.Record != nil {
		key = op.Record.RecordKey
	}

	return RowError{Line: op.Line, Operation: string(op.Kind), RecordKey: key, Message: err.Error()}
}

// BatchResult is the outcome of writing one batch.
type BatchResult struct {
	Inserted      int        `json:"inserted"`
	Updated       int        `json:"updated"`
	Failed        int        `json:"failed"`
	Errors        []RowError `json:"errors,omitempty"`
	AudioFeatures int        `json:"audio_features,omitempty"`
	Links         int        `json:"links,omitempty"`
}

// Succeeded returns the number of operations that reached the store.
func (r BatchResult) Succeeded() int { return r.Inserted + r.Updated }

// Processed returns the number of operations accounted for.
func (r BatchResult) Processed() int { return r.Inserted + r.Updated + r.Failed }

// Fail records a failed operation.
func (r *BatchResult) Fail(op BatchOperation, err error) {
	r.Failed++
	r.Errors = append(r.Errors, NewRowError(op, err))
}

// Merge adds other's counts and errors into r.
func (r *BatchResult) Merge(other BatchResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Failed += other.Failed
	r.AudioFeatures += other.AudioFeatures
	r.Links += other.Links
	r.Errors = append(r.Errors, other.Errors...)
}

// OutcomeStatus is the per-operation result reported by a store.
type OutcomeStatus int

// Per-operation outcomes.
const (
	OutcomeFailed OutcomeStatus = iota
	OutcomeInserted
	OutcomeUpdated
)

// Outcome is what a store reports for one operation of a bulk call.
type Outcome struct {
	Status OutcomeStatus
	Err    error
}
