package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error implements repositories.RepositoryError and repositories.DependencyConflictError.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	dependency  bool
	unavailable bool
}

func (e *Error) Error() string {
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) IsNotFound() bool           { return e != nil && e.notFound }
func (e *Error) IsConflict() bool           { return e != nil && (e.conflict || e.dependency) }
func (e *Error) IsUnavailable() bool        { return e != nil && e.unavailable }
func (e *Error) IsDependencyConflict() bool { return e != nil && e.dependency }

// NotFound builds a not-found error for op.
func NotFound(op string) error {
	return &Error{op: op, err: pgx.ErrNoRows, notFound: true}
}

// WrapError classifies pgx errors. Context cancellations pass through untouched.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	wrapped := &Error{op: op, err: err}
	if errors.Is(err, pgx.ErrNoRows) {
		wrapped.notFound = true
		return wrapped
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ForeignKeyViolation, pgerrcode.RestrictViolation:
			wrapped.dependency = true
		case pgerrcode.UniqueViolation, pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			wrapped.conflict = true
		case pgerrcode.TooManyConnections, pgerrcode.CannotConnectNow, pgerrcode.AdminShutdown:
			wrapped.unavailable = true
		}
		return wrapped
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		wrapped.unavailable = true
	}
	return wrapped
}
