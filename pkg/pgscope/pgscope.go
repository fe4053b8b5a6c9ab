// Package pgscope holds the pg helpers every persistence store shares:
// organization scoping for row-level security, bounded call timeouts, and
// translation of driver errors into the engine taxonomy.
package pgscope

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inforlary/belkys-sub012/pkg/apperr"
)

// DefaultTimeout bounds every persistence call. No operation in this
// subsystem may block indefinitely.
const DefaultTimeout = 5 * time.Second

const uniqueViolationCode = "23505"

type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTimeout derives the bounded context used for one store call. Callers
// must defer cancel.
func WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DefaultTimeout)
}

// SetCurrentOrg pins the transaction to one organization so RLS policies
// apply. Every scoped store call runs this first.
func SetCurrentOrg(ctx context.Context, tx pgx.Tx, organizationID string) error {
	_, err := tx.Exec(ctx, `SELECT set_config('app.current_org', $1, true);`, organizationID)
	return err
}

// IsUniqueViolation reports whether err is a persistence-level uniqueness
// constraint failure. The code allocator retries on exactly this condition.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

// MapError folds driver failures into the engine taxonomy. Timeouts and
// cancellations become retryable CollaboratorUnavailable errors rather than
// empty results; everything already typed passes through untouched.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if apperr.Code(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.NewCollaboratorUnavailable("persistence", err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return apperr.NewCollaboratorUnavailable("persistence", err)
	}
	return err
}

// NotFoundOr maps pgx.ErrNoRows for one record type, deferring everything
// else to MapError.
func NotFoundOr(err error, recordType string, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NewNotFound(recordType, id)
	}
	return MapError(err)
}
