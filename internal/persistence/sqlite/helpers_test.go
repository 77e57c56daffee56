package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

var baseTime = time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)

func hourAt(h int, m int) time.Time {
	return baseTime.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, DefaultConfig(filepath.Join(t.TempDir(), "booking.db")))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	return store
}

func seedRoom(t *testing.T, store *Store, id, name string) persistence.Room {
	t.Helper()
	room, err := store.Rooms.UpsertRoom(context.Background(), persistence.Room{
		ID:        id,
		Name:      name,
		Location:  "Main Building",
		Capacity:  30,
		Amenities: []string{"projector"},
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	})
	if err != nil {
		t.Fatalf("failed to seed room %s: %v", id, err)
	}
	return room
}

func seedBooking(t *testing.T, store *Store, id, roomID string, start, end time.Time, status persistence.BookingStatus) persistence.Booking {
	t.Helper()
	booking := persistence.Booking{
		ID:             id,
		RoomID:         roomID,
		RequesterID:    "user-" + id,
		RequesterName:  "Requester " + id,
		RequesterEmail: id + "@example.edu",
		Start:          start,
		End:            end,
		Reason:         "lecture",
		Status:         status,
		CreatedAt:      baseTime,
		UpdatedAt:      baseTime,
	}
	if err := store.Bookings.CreateBooking(context.Background(), booking); err != nil {
		t.Fatalf("failed to seed booking %s: %v", id, err)
	}
	return booking
}

func bookingIDs(bookings []persistence.Booking) []string {
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	return ids
}
