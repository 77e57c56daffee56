package persistence

import (
	"context"
	"time"
)

// RoomRepository exposes the read side of the room catalog plus the upsert
// used by out-of-band seeding.
type RoomRepository interface {
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	// UpsertRoom inserts the room or updates the existing row with the same
	// name and returns the stored record.
	UpsertRoom(ctx context.Context, room Room) (Room, error)
}

// Window is a half-open [Start, End) range used to filter bookings.
type Window struct {
	Start time.Time
	End   time.Time
}

// BookingFilter narrows booking queries. Zero values are ignored.
type BookingFilter struct {
	RoomID      string
	RequesterID string
	Statuses    []BookingStatus
	// Overlapping keeps bookings where start < Overlapping.End and
	// end > Overlapping.Start.
	Overlapping *Window
	ExcludeID   string
	EndsAfter   *time.Time
}

// BookingTx is the view of the booking table inside a single transaction.
type BookingTx interface {
	// GetBookingForUpdate loads a booking and locks it for the remainder of
	// the transaction where the store supports row locks.
	GetBookingForUpdate(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// TransitionStatus moves every listed booking currently in status from to
	// status to and returns the number of rows changed.
	TransitionStatus(ctx context.Context, ids []string, from, to BookingStatus, at time.Time) (int64, error)
}

// BookingRepository stores bookings. Listing results are ordered by start
// ascending, then creation descending, then ID.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// RunInTx executes fn inside one serializable transaction. Any error from
	// fn rolls the transaction back.
	RunInTx(ctx context.Context, fn func(tx BookingTx) error) error
}
