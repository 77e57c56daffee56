package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidWindow is returned when a booking window does not start before it ends.
	ErrInvalidWindow = errors.New("application: start must be before end")
	// ErrResourceNotFound is returned when the referenced room does not exist.
	ErrResourceNotFound = errors.New("application: room not found")
	// ErrConflict is returned when a window overlaps an approved booking.
	ErrConflict = errors.New("application: booking conflicts with an approved booking")
	// ErrNotFound is returned when the requested booking does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrUnauthenticated is returned when no identity accompanies the call.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrAlreadyDecided is returned when approving or rejecting a booking that
	// is no longer pending.
	ErrAlreadyDecided = errors.New("application: booking already decided")
	// ErrTransactionFailed is returned when an atomic decision could not be
	// committed. No partial effects remain and the call may be retried.
	ErrTransactionFailed = errors.New("application: transaction failed")
)

// ConflictError lists the approved bookings that block a request.
type ConflictError struct {
	BookingIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConflict.Error(), strings.Join(e.BookingIDs, ", "))
}

// Is reports ConflictError as ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
