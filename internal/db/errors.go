package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a requested record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrConstraintViolation is returned when a write breaks a schema rule.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = fmt.Errorf("foreign key %w", ErrConstraintViolation)

	// ErrDuplicateKey is returned when attempting to insert a duplicate record.
	ErrDuplicateKey = fmt.Errorf("duplicate key %w", ErrConstraintViolation)

	// ErrCheckViolation is returned when a CHECK constraint rejects a value.
	ErrCheckViolation = fmt.Errorf("check %w", ErrConstraintViolation)
)

// WrapError wraps database errors with additional context and maps them to custom error types.
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, ErrNotFound)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: %w", operation, ErrForeignKeyViolation)
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w: %s", operation, ErrDuplicateKey, sqliteErr.Error())
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%s: %w: %s", operation, ErrCheckViolation, sqliteErr.Error())
		}
		if sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%s: %w: %s", operation, ErrConstraintViolation, sqliteErr.Error())
		}
		return fmt.Errorf("%s: database error [%d]: %w", operation, sqliteErr.ExtendedCode, err)
	}

	return fmt.Errorf("%s: %w", operation, err)
}

// IsNotFound returns true if the error is an ErrNotFound error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConstraintViolation returns true for any schema rule violation.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

// IsForeignKeyViolation returns true if the error is an ErrForeignKeyViolation error.
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

// IsDuplicateKey returns true if the error is an ErrDuplicateKey error.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}
