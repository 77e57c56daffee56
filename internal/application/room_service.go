package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/scheduler"
)

// RoomService exposes the room catalog together with live occupancy.
type RoomService struct {
	rooms       RoomCatalog
	bookings    BookingReader
	idGenerator func() string
	now         func() time.Time
	endingSoon  time.Duration
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomCatalog, bookings BookingReader, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, bookings, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomCatalog, bookings BookingReader, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{
		rooms:       rooms,
		bookings:    bookings,
		idGenerator: idGenerator,
		now:         now,
		endingSoon:  scheduler.EndingSoonThreshold,
		logger:      defaultLogger(logger),
	}
}

// WithEndingSoonThreshold overrides the endingSoon threshold.
func (s *RoomService) WithEndingSoonThreshold(threshold time.Duration) *RoomService {
	if s != nil && threshold > 0 {
		s.endingSoon = threshold
	}
	return s
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// ListRooms returns every room sorted by name with its occupancy at asOf.
// A zero asOf means now.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal, asOf time.Time) (rooms []RoomWithStatus, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if asOf.IsZero() {
		asOf = s.now()
	}

	logger := s.loggerWith(ctx, "ListRooms",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	if !principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx)
	if err != nil {
		return
	}

	byRoom := make(map[string][]scheduler.Booking)
	if s.bookings != nil && len(raw) > 0 {
		var active []Booking
		active, err = s.bookings.ListBookings(ctx, instantQuery("", asOf))
		if err != nil {
			err = mapBookingRepoError(err)
			return
		}
		for _, b := range active {
			byRoom[b.RoomID] = append(byRoom[b.RoomID], b.domain())
		}
	}

	rooms = make([]RoomWithStatus, 0, len(raw))
	for _, room := range raw {
		rooms = append(rooms, RoomWithStatus{
			Room:   room,
			Status: scheduler.ComputeRoomStatusWithThreshold(byRoom[room.ID], asOf, s.endingSoon),
			AsOf:   asOf,
		})
	}

	sort.Slice(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})

	return
}

// GetRoom returns a single room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomRepoError(err)
		s.loggerWith(ctx, "GetRoom", "room_id", roomID).
			WarnContext(ctx, "failed to load room", "error", err, "error_kind", ErrorKind(err))
		return Room{}, err
	}
	return room, nil
}

// SeedRooms upserts the catalog keyed by room name. Existing rooms keep their
// IDs. The whole input is validated before anything is written.
func (s *RoomService) SeedRooms(ctx context.Context, inputs []RoomInput) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SeedRooms", "input_count", len(inputs))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to seed rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms seeded")
	}()

	vErr := &ValidationError{}
	seen := make(map[string]bool, len(inputs))
	for i, input := range inputs {
		vErr.merge(validateRoomInput(fmt.Sprintf("rooms[%d]", i), input))
		name := strings.ToLower(strings.TrimSpace(input.Name))
		if name != "" && seen[name] {
			vErr.add(fmt.Sprintf("rooms[%d].name", i), "name is duplicated")
		}
		seen[name] = true
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	for _, input := range inputs {
		now := s.now()
		room := Room{
			ID:        s.idGenerator(),
			Name:      strings.TrimSpace(input.Name),
			Location:  strings.TrimSpace(input.Location),
			Capacity:  input.Capacity,
			Amenities: normalizeAmenities(input.Amenities),
			CreatedAt: now,
			UpdatedAt: now,
		}

		var stored Room
		stored, err = s.rooms.UpsertRoom(ctx, room)
		if err != nil {
			err = mapRoomRepoError(err)
			return
		}
		rooms = append(rooms, stored)
	}
	return
}

func validateRoomInput(prefix string, input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add(prefix+".name", "name is required")
	}
	if input.Capacity <= 0 {
		vErr.add(prefix+".capacity", "capacity must be positive")
	}

	return vErr
}

func normalizeAmenities(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrResourceNotFound) || errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrResourceNotFound
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("capacity", "capacity must be positive")
		return vErr
	}
	return err
}
