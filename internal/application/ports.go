package application

import (
	"context"
	"time"

	"github.com/example/campus-booking/internal/scheduler"
)

// BookingReader lists bookings.
type BookingReader interface {
	ListBookings(ctx context.Context, query BookingQuery) ([]Booking, error)
}

// BookingStore captures the persistence operations needed by BookingService.
type BookingStore interface {
	BookingReader
	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	// RunInTx runs fn inside one serializable transaction.
	RunInTx(ctx context.Context, fn func(tx BookingStoreTx) error) error
}

// BookingStoreTx is the transactional view used by approve and reject.
type BookingStoreTx interface {
	GetBookingForUpdate(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, query BookingQuery) ([]Booking, error)
	TransitionStatus(ctx context.Context, ids []string, from, to scheduler.Status, at time.Time) (int64, error)
}

// RoomDirectory resolves rooms from the catalog.
type RoomDirectory interface {
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// RoomCatalog extends RoomDirectory with the out-of-band seeding write.
type RoomCatalog interface {
	RoomDirectory
	UpsertRoom(ctx context.Context, room Room) (Room, error)
}

// Notifier delivers booking notifications. Delivery is best effort and runs
// only after the owning transaction committed.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Retrier re-runs an operation that failed with a transient store error.
type Retrier interface {
	WithRetry(ctx context.Context, fn func(ctx context.Context) error) error
}
