package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/campus-booking/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}
	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersRequestLogger(t *testing.T) {
	t.Parallel()

	var base, request bytes.Buffer
	baseLogger := slog.New(slog.NewTextHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&request, nil)).With("request_id", "req-9"))

	serviceLogger(ctx, baseLogger, "BookingService", "ApproveBooking", "booking_id", "bk-1").Info("approved")

	if base.Len() != 0 {
		t.Fatalf("expected nothing on the base logger, got %q", base.String())
	}
	out := request.String()
	for _, want := range []string{"request_id=req-9", "service=BookingService", "operation=ApproveBooking", "booking_id=bk-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidWindow, "invalid_window"},
		{fmt.Errorf("lookup: %w", ErrResourceNotFound), "resource_not_found"},
		{&ConflictError{BookingIDs: []string{"bk-1"}}, "conflict"},
		{ErrNotFound, "not_found"},
		{ErrForbidden, "forbidden"},
		{ErrUnauthenticated, "unauthenticated"},
		{ErrAlreadyDecided, "already_decided"},
		{ErrTransactionFailed, "transaction_failure"},
		{context.DeadlineExceeded, "canceled"},
		{&ValidationError{FieldErrors: map[string]string{"reason": "reason is required"}}, "validation"},
		{io.ErrUnexpectedEOF, "unexpected"},
	}

	for _, tc := range tests {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
