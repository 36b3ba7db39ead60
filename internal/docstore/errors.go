package docstore

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/persistorai/listengraph/internal/models"
)

const codeDuplicateKey = 11000

// writeError converts one bulk write error into a per-op error.
func writeError(we mongo.BulkWriteError) error {
	if we.Code == codeDuplicateKey {
		return fmt.Errorf("%w: %s", models.ErrDuplicateKey, we.Message)
	}

	return fmt.Errorf("write error %d: %s", we.Code, we.Message)
}

// mapError marks network failures, timeouts and retryable-labelled errors as
// transient.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return models.MarkTransient(err)
	}

	var le mongo.LabeledError
	if errors.As(err, &le) && le.HasErrorLabel("RetryableWriteError") {
		return models.MarkTransient(err)
	}

	return err
}
