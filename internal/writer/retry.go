package writer

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/metrics"
	"github.com/persistorai/listengraph/internal/models"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 500 * time.Millisecond
	DefaultTimeout     = 60 * time.Second
)

// RetryPolicy bounds how a store call is attempted.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Timeout applies to each attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
}

// DefaultRetryPolicy returns three attempts with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Backoff: DefaultBackoff, Timeout: DefaultTimeout}
}

// Do runs fn until it succeeds, returns a permanent error, or the attempts
// are used up. Only errors that models.IsTransient accepts are retried.
func (p RetryPolicy) Do(ctx context.Context, log *logrus.Logger, op string, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	base := p.Backoff
	if base <= 0 {
		base = time.Millisecond
	}

	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))

	attempt := 0

	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++

		actx, cancel := p.attemptContext(ctx)
		defer cancel()

		err := fn(actx)
		if err == nil {
			return nil
		}

		if !models.IsTransient(err) || attempt >= attempts {
			return err
		}

		metrics.BatchRetries.Inc()
		if log != nil {
			log.WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt,
			}).WithError(err).Warn("transient store error, retrying")
		}

		return retry.RetryableError(err)
	})
}

func (p RetryPolicy) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.Timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, p.Timeout)
}
