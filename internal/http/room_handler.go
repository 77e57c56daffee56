package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/scheduler"
)

type roomService interface {
	ListRooms(ctx context.Context, principal application.Principal, asOf time.Time) ([]application.RoomWithStatus, error)
	GetRoom(ctx context.Context, roomID string) (application.Room, error)
}

type occupancyService interface {
	ComputeRoomStatus(ctx context.Context, roomID string, asOf time.Time) (scheduler.RoomStatus, error)
}

type RoomHandler struct {
	service   roomService
	occupancy occupancyService
	responder responder
	logger    *slog.Logger
	now       func() time.Time
}

func NewRoomHandler(service roomService, occupancy occupancyService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{
		service:   service,
		occupancy: occupancy,
		responder: newResponder(base),
		logger:    base,
		now:       time.Now,
	}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

// List handles GET /rooms?at=.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	rooms, err := h.service.ListRooms(r.Context(), principal, asOf)
	if err != nil {
		logger.ErrorContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(rooms)).InfoContext(r.Context(), "rooms listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

// Status handles GET /rooms/{id}/status?at=.
func (h *RoomHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.occupancy == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := strings.TrimSpace(chi.URLParam(r, "id"))
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	if asOf.IsZero() {
		asOf = h.now().UTC()
	}

	room, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status, err := h.occupancy.ComputeRoomStatus(r.Context(), roomID, asOf)
	if err != nil {
		h.log(r.Context(), "Status", "room_id", roomID).ErrorContext(r.Context(), "room status failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(application.RoomWithStatus{
		Room:   room,
		Status: status,
		AsOf:   asOf,
	})})
}

// asOf reads the optional at query parameter. A zero time means now.
func (h *RoomHandler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("at"))
	if raw == "" {
		return time.Time{}, true
	}
	at, err := parseTimestamp(raw)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTime)
		return time.Time{}, false
	}
	return at, true
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Location  string   `json:"location,omitempty"`
	Capacity  int      `json:"capacity"`
	Amenities []string `json:"amenities"`
	Status    string   `json:"status"`
	AsOf      string   `json:"as_of"`
}

func toRoomDTO(room application.RoomWithStatus) roomDTO {
	amenities := room.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return roomDTO{
		ID:        room.ID,
		Name:      room.Name,
		Location:  room.Location,
		Capacity:  room.Capacity,
		Amenities: amenities,
		Status:    string(room.Status),
		AsOf:      formatTimestamp(room.AsOf),
	}
}

func toRoomDTOs(rooms []application.RoomWithStatus) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}
