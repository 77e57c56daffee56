package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/campus-booking/internal/application"
)

// Error codes surfaced in error_code.
const (
	codeBadRequest         = "BAD_REQUEST"
	codeInvalidWindow      = "INVALID_WINDOW"
	codeValidation         = "VALIDATION_FAILED"
	codeUnauthenticated    = "UNAUTHENTICATED"
	codeForbidden          = "FORBIDDEN"
	codeNotFound           = "NOT_FOUND"
	codeResourceNotFound   = "RESOURCE_NOT_FOUND"
	codeConflict           = "CONFLICT"
	codeAlreadyDecided     = "ALREADY_DECIDED"
	codeTransactionFailure = "TRANSACTION_FAILURE"
	codeInternal           = "INTERNAL"
)

// retryAfterSeconds is advertised when a decision could not be committed.
const retryAfterSeconds = 1

var (
	errBadRequestBody   = errors.New("無効なリクエスト形式です。")
	errInvalidBookingID = errors.New("無効な予約 ID です。")
	errInvalidRoomID    = errors.New("無効な教室 ID です。")
	errInvalidTime      = errors.New("日時は RFC 3339 形式で指定してください。")
	errInvalidStatus    = errors.New("ステータスは PENDING、APPROVED、REJECTED のいずれかで指定してください。")
	errInvalidFlag      = errors.New("真偽値の指定が正しくありません。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusCode(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var conflict *application.ConflictError
	switch {
	case errors.Is(err, application.ErrInvalidWindow):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: codeInvalidWindow,
			Message:   "終了日時は開始日時より後である必要があります。",
		})
	case errors.Is(err, application.ErrUnauthenticated):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: codeUnauthenticated,
			Message:   "認証が必要です。",
		})
	case errors.Is(err, application.ErrForbidden):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: codeForbidden,
			Message:   "この操作を実行する権限がありません。",
		})
	case errors.Is(err, application.ErrResourceNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: codeResourceNotFound,
			Message:   "指定された教室が見つかりません。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: codeNotFound,
			Message:   "指定された予約が見つかりません。",
		})
	case errors.As(err, &conflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode:           codeConflict,
			Message:             "指定された時間帯は既に承認済みの予約と重複しています。",
			ConflictingBookings: conflict.BookingIDs,
		})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: codeConflict,
			Message:   "指定された時間帯は既に承認済みの予約と重複しています。",
		})
	case errors.Is(err, application.ErrAlreadyDecided):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: codeAlreadyDecided,
			Message:   "この予約は既に承認または却下されています。",
		})
	case errors.Is(err, application.ErrTransactionFailed):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			ErrorCode: codeTransactionFailure,
			Message:   "処理が混み合っています。しばらくしてから再度お試しください。",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				ErrorCode: codeValidation,
				Message:   "入力内容に誤りがあります。",
				Errors:    localizeValidationErrors(vErr),
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: codeInternal,
			Message:   "サーバー内部でエラーが発生しました。",
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return codeBadRequest
	case http.StatusUnauthorized:
		return codeUnauthenticated
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusUnprocessableEntity:
		return codeValidation
	default:
		return codeInternal
	}
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "resourceId is required":
		return "教室を指定してください。"
	case "reason is required":
		return "利用目的は必須です。"
	case "name is required":
		return "教室名は必須です。"
	case "name is duplicated":
		return "教室名が重複しています。"
	case "capacity must be positive":
		return "収容人数は正の整数で指定してください。"
	case "start is required":
		return "開始日時は必須です。"
	case "end is required":
		return "終了日時は必須です。"
	case "must be an RFC 3339 timestamp":
		return "日時は RFC 3339 形式で指定してください。"
	default:
		if strings.HasPrefix(message, "reason must be at most") {
			return "利用目的は" + strings.TrimSuffix(strings.TrimPrefix(message, "reason must be at most "), " characters") + "文字以内で入力してください。"
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode           string            `json:"error_code,omitempty"`
	Message             string            `json:"message"`
	Errors              map[string]string `json:"errors,omitempty"`
	ConflictingBookings []string          `json:"conflicting_booking_ids,omitempty"`
}
