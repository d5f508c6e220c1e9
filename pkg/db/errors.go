package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique constraint failure. A
// non-empty constraintName narrows the match to that constraint.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation &&
			(constraintName == "" || pgErr.ConstraintName == constraintName)
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports whether err was raised by a missing referenced row.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateForeignKeyViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "violates foreign key constraint") || strings.Contains(msg, "FOREIGN KEY constraint failed")
}
