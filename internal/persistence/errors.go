package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a schema constraint rejects a write.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrSerialization is returned when the store aborted a transaction because
	// of a concurrent writer. The transaction may be retried.
	ErrSerialization = errors.New("persistence: serialization failure")
	// ErrStaleWrite is returned when a status-guarded update matched fewer rows
	// than expected.
	ErrStaleWrite = errors.New("persistence: stale write")
)

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerialization)
}
