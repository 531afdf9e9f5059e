package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslateWriteError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: ConstraintUsersEmail}
	err := translateWriteError(fmt.Errorf("insert: %w", pgErr))

	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var conflict ConflictError
	if !errors.As(err, &conflict) || conflict.Constraint != ConstraintUsersEmail {
		t.Fatalf("expected constraint name to be kept, got %+v", conflict)
	}

	other := errors.New("boom")
	if translateWriteError(other) != other {
		t.Fatalf("expected non-unique errors to pass through")
	}
}

func TestErrNotFoundMatchesNoRows(t *testing.T) {
	if !errors.Is(pgx.ErrNoRows, ErrNotFound) {
		t.Fatalf("expected ErrNotFound to match pgx.ErrNoRows")
	}
}
