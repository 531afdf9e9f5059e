package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound es el mismo valor que pgx.ErrNoRows para que ambos chequeos funcionen.
	ErrNotFound = pgx.ErrNoRows
	ErrConflict = errors.New("repository: unique constraint violated")
)

const uniqueViolation = "23505"

func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ConflictError{Constraint: pgErr.ConstraintName}
	}
	return err
}

// ConflictError indica qué restricción única se violó.
type ConflictError struct {
	Constraint string
}

func (e ConflictError) Error() string {
	if e.Constraint == "" {
		return ErrConflict.Error()
	}
	return ErrConflict.Error() + ": " + e.Constraint
}

func (e ConflictError) Is(target error) bool {
	return target == ErrConflict
}
