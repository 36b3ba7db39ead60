package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/persistorai/listengraph/internal/models"
)

// SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeAdminShutdown        = "57P01"
	codeTooManyConnections   = "53300"
)

// mapError translates a pgx error into the models error taxonomy: unique
// violations become ErrDuplicateKey and retryable failures are marked transient.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			return fmt.Errorf("%w: %w", models.ErrDuplicateKey, err)
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == codeSerializationFailure,
			pgErr.Code == codeDeadlockDetected,
			pgErr.Code == codeAdminShutdown,
			pgErr.Code == codeTooManyConnections:
			return models.MarkTransient(err)
		}

		return err
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return models.MarkTransient(err)
	}

	return err
}
