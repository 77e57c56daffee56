package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/scheduler"
)

type bookingService interface {
	RequestBooking(ctx context.Context, params application.RequestBookingParams) (application.Booking, error)
	ApproveBooking(ctx context.Context, params application.DecideBookingParams) (application.Decision, error)
	RejectBooking(ctx context.Context, params application.DecideBookingParams) (application.Booking, error)
	CheckAvailability(ctx context.Context, roomID string, start, end time.Time) (bool, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
	ListMyBookings(ctx context.Context, principal application.Principal, upcomingOnly bool) ([]application.Booking, error)
	GetBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
}

// BookingHandler serves the requester and administrator booking endpoints.
type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// Create handles POST /bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "invalid booking request", "error", err)
		h.writeDecodeError(r.Context(), w, err)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_id", input.RoomID)

	booking, err := h.service.RequestBooking(r.Context(), application.RequestBookingParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "booking request failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("booking_id", booking.ID).InfoContext(r.Context(), "booking requested")
	w.Header().Set("Location", "/bookings/"+booking.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: toBookingDTO(booking)})
}

// ListMine handles GET /bookings.
func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	upcoming := false
	if raw := strings.TrimSpace(r.URL.Query().Get("upcoming")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidFlag)
			return
		}
		upcoming = parsed
	}

	bookings, err := h.service.ListMyBookings(r.Context(), principal, upcoming)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

// Get handles GET /bookings/{id}.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "id"))
	if bookingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.GetBooking(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

// Availability handles GET /bookings/availability?resourceId&start&end.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	roomID := strings.TrimSpace(query.Get("resourceId"))
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}
	start, err := parseTimestamp(query.Get("start"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTime)
		return
	}
	end, err := parseTimestamp(query.Get("end"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTime)
		return
	}

	available, err := h.service.CheckAvailability(r.Context(), roomID, start, end)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		ResourceID: roomID,
		Start:      formatTimestamp(start),
		End:        formatTimestamp(end),
		Available:  available,
	})
}

// AdminList handles GET /admin/bookings?status=&resourceId=.
func (h *BookingHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params := application.ListBookingsParams{
		Principal: principal,
		RoomID:    strings.TrimSpace(r.URL.Query().Get("resourceId")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := scheduler.ParseStatus(strings.ToUpper(raw))
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidStatus)
			return
		}
		params.Status = &status
	}

	logger := h.log(r.Context(), "AdminList", "principal_id", principal.UserID)
	bookings, err := h.service.ListBookings(r.Context(), params)
	if err != nil {
		logger.WarnContext(r.Context(), "booking list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(bookings)).InfoContext(r.Context(), "bookings listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

// Approve handles POST /admin/bookings/{id}/approve.
func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "id"))
	if bookingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Approve", "principal_id", principal.UserID, "booking_id", bookingID)

	decision, err := h.service.ApproveBooking(r.Context(), application.DecideBookingParams{
		Principal: principal,
		BookingID: bookingID,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "booking approval failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("auto_rejected_count", len(decision.AutoRejected)).InfoContext(r.Context(), "booking approved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, decisionResponse{
		Booking:      toBookingDTO(decision.Booking),
		AutoRejected: toBookingDTOs(decision.AutoRejected),
	})
}

// Reject handles POST /admin/bookings/{id}/reject.
func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := strings.TrimSpace(chi.URLParam(r, "id"))
	if bookingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Reject", "principal_id", principal.UserID, "booking_id", bookingID)

	booking, err := h.service.RejectBooking(r.Context(), application.DecideBookingParams{
		Principal: principal,
		BookingID: bookingID,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "booking rejection failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking rejected")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) writeDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBadRequestBody) {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	h.responder.handleServiceError(ctx, w, err)
}

type bookingRequest struct {
	ResourceID string `json:"resource_id" validate:"required"`
	Start      string `json:"start" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	End        string `json:"end" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Reason     string `json:"reason" validate:"required,max=500"`
}

func (r bookingRequest) toInput() (application.BookingInput, error) {
	start, err := parseTimestamp(r.Start)
	if err != nil {
		return application.BookingInput{}, &application.ValidationError{FieldErrors: map[string]string{"start": "must be an RFC 3339 timestamp"}}
	}
	end, err := parseTimestamp(r.End)
	if err != nil {
		return application.BookingInput{}, &application.ValidationError{FieldErrors: map[string]string{"end": "must be an RFC 3339 timestamp"}}
	}
	return application.BookingInput{
		RoomID: strings.TrimSpace(r.ResourceID),
		Start:  start,
		End:    end,
		Reason: strings.TrimSpace(r.Reason),
	}, nil
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type decisionResponse struct {
	Booking      bookingDTO   `json:"booking"`
	AutoRejected []bookingDTO `json:"auto_rejected"`
}

type availabilityResponse struct {
	ResourceID string `json:"resource_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Available  bool   `json:"available"`
}

type bookingDTO struct {
	ID             string  `json:"id"`
	ResourceID     string  `json:"resource_id"`
	RequesterID    string  `json:"requester_id"`
	RequesterName  string  `json:"requester_name,omitempty"`
	RequesterEmail string  `json:"requester_email,omitempty"`
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Reason         string  `json:"reason"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	DecidedAt      *string `json:"decided_at,omitempty"`
}

func toBookingDTO(booking application.Booking) bookingDTO {
	dto := bookingDTO{
		ID:             booking.ID,
		ResourceID:     booking.RoomID,
		RequesterID:    booking.RequesterID,
		RequesterName:  booking.RequesterName,
		RequesterEmail: booking.RequesterEmail,
		Start:          formatTimestamp(booking.Start),
		End:            formatTimestamp(booking.End),
		Reason:         booking.Reason,
		Status:         string(booking.Status),
		CreatedAt:      formatTimestamp(booking.CreatedAt),
		UpdatedAt:      formatTimestamp(booking.UpdatedAt),
	}
	if booking.DecidedAt != nil {
		decided := formatTimestamp(*booking.DecidedAt)
		dto.DecidedAt = &decided
	}
	return dto
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	return out
}

func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
