package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var (
	// ErrDuplicateTelegramID is returned when a teacher with the same platform id already exists.
	ErrDuplicateTelegramID = errors.New("telegram user id already registered")
	// ErrMissingReference is returned when a write points at a parent row that no longer exists.
	ErrMissingReference = errors.New("referenced row does not exist")
)

// pgCode extracts the SQLSTATE from either driver's error type.
func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == pgForeignKeyViolation
}
