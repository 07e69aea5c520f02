package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/samasante/amina/internal/platform/apperr"
)

// Postgres SQLSTATE codes the repositories care about.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
)

// IsNoRows reports whether err means a single-row query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// MapError translates Postgres errors into the apperr taxonomy. Errors that
// are already classified, or that carry no known SQLSTATE, pass through.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation, codeSerializationFailure:
		return fmt.Errorf("%w: %w", apperr.ErrConflict, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: referenced record does not exist: %w", apperr.ErrInvalidInput, err)
	}
	return err
}

// NotFoundOr maps pgx.ErrNoRows to an apperr not-found error for entity and
// runs every other error through MapError.
func NotFoundOr(err error, entity string, id any) error {
	if IsNoRows(err) {
		return apperr.NotFound(entity, id)
	}
	return MapError(err)
}
