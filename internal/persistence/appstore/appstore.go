// Package appstore adapts persistence repositories to the ports declared by
// the application layer, converting between storage and application models.
package appstore

import (
	"context"
	"time"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/scheduler"
)

// BookingStore implements application.BookingStore on a persistence.BookingRepository.
type BookingStore struct {
	repo persistence.BookingRepository
}

var _ application.BookingStore = (*BookingStore)(nil)

// NewBookingStore wraps repo.
func NewBookingStore(repo persistence.BookingRepository) *BookingStore {
	return &BookingStore{repo: repo}
}

func (a *BookingStore) CreateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.repo.CreateBooking(ctx, ToPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return booking, nil
}

func (a *BookingStore) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	model, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return ToApplicationBooking(model), nil
}

func (a *BookingStore) ListBookings(ctx context.Context, query application.BookingQuery) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, toPersistenceFilter(query))
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (a *BookingStore) RunInTx(ctx context.Context, fn func(tx application.BookingStoreTx) error) error {
	return a.repo.RunInTx(ctx, func(tx persistence.BookingTx) error {
		return fn(&bookingStoreTx{tx: tx})
	})
}

type bookingStoreTx struct {
	tx persistence.BookingTx
}

func (t *bookingStoreTx) GetBookingForUpdate(ctx context.Context, id string) (application.Booking, error) {
	model, err := t.tx.GetBookingForUpdate(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return ToApplicationBooking(model), nil
}

func (t *bookingStoreTx) ListBookings(ctx context.Context, query application.BookingQuery) ([]application.Booking, error) {
	models, err := t.tx.ListBookings(ctx, toPersistenceFilter(query))
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (t *bookingStoreTx) TransitionStatus(ctx context.Context, ids []string, from, to scheduler.Status, at time.Time) (int64, error) {
	return t.tx.TransitionStatus(ctx, ids, persistence.BookingStatus(from), persistence.BookingStatus(to), at)
}

// RoomCatalog implements application.RoomCatalog on a persistence.RoomRepository.
type RoomCatalog struct {
	repo persistence.RoomRepository
}

var _ application.RoomCatalog = (*RoomCatalog)(nil)

// NewRoomCatalog wraps repo.
func NewRoomCatalog(repo persistence.RoomRepository) *RoomCatalog {
	return &RoomCatalog{repo: repo}
}

func (a *RoomCatalog) GetRoom(ctx context.Context, id string) (application.Room, error) {
	model, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return ToApplicationRoom(model), nil
}

func (a *RoomCatalog) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, ToApplicationRoom(model))
	}
	return rooms, nil
}

func (a *RoomCatalog) UpsertRoom(ctx context.Context, room application.Room) (application.Room, error) {
	stored, err := a.repo.UpsertRoom(ctx, ToPersistenceRoom(room))
	if err != nil {
		return application.Room{}, err
	}
	return ToApplicationRoom(stored), nil
}

// ToApplicationBooking converts a stored booking.
func ToApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:             model.ID,
		RoomID:         model.RoomID,
		RequesterID:    model.RequesterID,
		RequesterName:  model.RequesterName,
		RequesterEmail: model.RequesterEmail,
		Start:          model.Start,
		End:            model.End,
		Reason:         model.Reason,
		Status:         scheduler.Status(model.Status),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
		DecidedAt:      cloneTime(model.DecidedAt),
	}
}

// ToPersistenceBooking converts an application booking for storage.
func ToPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:             booking.ID,
		RoomID:         booking.RoomID,
		RequesterID:    booking.RequesterID,
		RequesterName:  booking.RequesterName,
		RequesterEmail: booking.RequesterEmail,
		Start:          booking.Start,
		End:            booking.End,
		Reason:         booking.Reason,
		Status:         persistence.BookingStatus(booking.Status),
		CreatedAt:      booking.CreatedAt,
		UpdatedAt:      booking.UpdatedAt,
		DecidedAt:      cloneTime(booking.DecidedAt),
	}
}

// ToApplicationRoom converts a stored room.
func ToApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:        model.ID,
		Name:      model.Name,
		Location:  model.Location,
		Capacity:  model.Capacity,
		Amenities: append([]string(nil), model.Amenities...),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// ToPersistenceRoom converts an application room for storage.
func ToPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:        room.ID,
		Name:      room.Name,
		Location:  room.Location,
		Capacity:  room.Capacity,
		Amenities: append([]string(nil), room.Amenities...),
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func toApplicationBookings(models []persistence.Booking) []application.Booking {
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, ToApplicationBooking(model))
	}
	return bookings
}

func toPersistenceFilter(query application.BookingQuery) persistence.BookingFilter {
	filter := persistence.BookingFilter{
		RoomID:      query.RoomID,
		RequesterID: query.RequesterID,
		ExcludeID:   query.ExcludeID,
		EndsAfter:   cloneTime(query.EndsAfter),
	}
	for _, status := range query.Statuses {
		filter.Statuses = append(filter.Statuses, persistence.BookingStatus(status))
	}
	if query.Overlapping != nil {
		filter.Overlapping = &persistence.Window{Start: query.Overlapping.Start, End: query.Overlapping.End}
	}
	return filter
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
