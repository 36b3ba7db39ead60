package models

import (
	"context"
	"errors"
	"net"
)

// ErrDuplicateKey indicates a unique constraint violation on the record key.
var ErrDuplicateKey = errors.New("duplicate key")

// Sentinel errors for fact rows the relational backend cannot write.
var (
	ErrUnresolvedReference = errors.New("unresolved entity reference")
	ErrMissingTimestamp    = errors.New("missing timestamp")
)

// ErrBatchFailed wraps a store error that failed every operation in a batch.
var ErrBatchFailed = errors.New("batch failed")

// transientError marks a store error as safe to retry.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// MarkTransient wraps err so IsTransient reports true for it.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}

	return &transientError{err: err}
}

// IsTransient reports whether err is worth retrying: explicitly marked errors,
// deadline expiry and network timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *transientError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error

	return errors.As(err, &ne) && ne.Timeout()
}
