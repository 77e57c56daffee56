package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/campus-booking/internal/application"
)

func TestHandleServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "invalid window", err: application.ErrInvalidWindow, wantStatus: http.StatusBadRequest, wantCode: codeInvalidWindow},
		{name: "unauthenticated", err: application.ErrUnauthenticated, wantStatus: http.StatusUnauthorized, wantCode: codeUnauthenticated},
		{name: "forbidden", err: application.ErrForbidden, wantStatus: http.StatusForbidden, wantCode: codeForbidden},
		{name: "room not found", err: application.ErrResourceNotFound, wantStatus: http.StatusNotFound, wantCode: codeResourceNotFound},
		{name: "wrapped booking not found", err: fmt.Errorf("load: %w", application.ErrNotFound), wantStatus: http.StatusNotFound, wantCode: codeNotFound},
		{name: "conflict", err: application.ErrConflict, wantStatus: http.StatusConflict, wantCode: codeConflict},
		{name: "already decided", err: application.ErrAlreadyDecided, wantStatus: http.StatusConflict, wantCode: codeAlreadyDecided},
		{name: "transaction failed", err: application.ErrTransactionFailed, wantStatus: http.StatusServiceUnavailable, wantCode: codeTransactionFailure},
		{name: "validation", err: &application.ValidationError{FieldErrors: map[string]string{"reason": "reason is required"}}, wantStatus: http.StatusUnprocessableEntity, wantCode: codeValidation},
		{name: "unexpected", err: errors.New("disk on fire"), wantStatus: http.StatusInternalServerError, wantCode: codeInternal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			newResponder(nil).handleServiceError(context.Background(), rec, tc.err)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if code := decodeBody[errorResponse](t, rec).ErrorCode; code != tc.wantCode {
				t.Fatalf("error_code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestLocalizeValidationErrors(t *testing.T) {
	t.Parallel()

	got := localizeValidationErrors(&application.ValidationError{FieldErrors: map[string]string{
		"reason":      "reason must be at most 500 characters",
		"resource_id": "resourceId is required",
		"other":       "something odd",
	}})

	want := map[string]string{
		"reason":      "利用目的は500文字以内で入力してください。",
		"resource_id": "教室を指定してください。",
		"other":       "something odd",
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Errorf("%s = %q, want %q", field, got[field], msg)
		}
	}
	if localizeValidationErrors(nil) != nil {
		t.Error("expected nil for nil validation error")
	}
}
