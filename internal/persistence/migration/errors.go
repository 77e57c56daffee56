package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrMigrationFailed indicates that applying a migration failed.
	ErrMigrationFailed = errors.New("migration execution failed")

	// ErrDirtyDatabase indicates that a previous migration stopped half way and
	// the schema needs manual repair.
	ErrDirtyDatabase = errors.New("database schema is dirty")

	// ErrUnknownDialect indicates that no embedded schema exists for a dialect.
	ErrUnknownDialect = errors.New("unknown migration dialect")
)

// MigrationError wraps migration failures with the dialect and operation.
type MigrationError struct {
	Dialect   Dialect
	Version   uint
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("migration %s@%d: %s: %v", e.Dialect, e.Version, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration %s: %s: %v", e.Dialect, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

func newMigrationError(dialect Dialect, version uint, operation string, err error) *MigrationError {
	return &MigrationError{Dialect: dialect, Version: version, Operation: operation, Err: err}
}
