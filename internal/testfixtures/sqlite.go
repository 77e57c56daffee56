package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/persistence/appstore"
	"github.com/example/campus-booking/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style tests. Both the persistence repositories and
// their application adapters are exposed.
type SQLiteHarness struct {
	Store    *sqlite.Store
	Bookings persistence.BookingRepository
	Rooms    persistence.RoomRepository

	BookingStore *appstore.BookingStore
	RoomCatalog  *appstore.RoomCatalog

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	path := filepath.Join(tb.TempDir(), "booking.db")

	store, err := sqlite.Open(ctx, sqlite.DefaultConfig(path))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store:        store,
		Bookings:     store.Bookings,
		Rooms:        store.Rooms,
		BookingStore: appstore.NewBookingStore(store.Bookings),
		RoomCatalog:  appstore.NewRoomCatalog(store.Rooms),
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedRoom stores the room fixture and returns the stored record.
func (h *SQLiteHarness) SeedRoom(tb testing.TB, fixture RoomFixture) persistence.Room {
	tb.Helper()
	room, err := h.Rooms.UpsertRoom(context.Background(), fixture.Persistence())
	if err != nil {
		tb.Fatalf("failed to seed room %s: %v", fixture.ID, err)
	}
	return room
}

// SeedBooking stores the booking fixture verbatim, including its status.
func (h *SQLiteHarness) SeedBooking(tb testing.TB, fixture BookingFixture) persistence.Booking {
	tb.Helper()
	booking := fixture.Persistence()
	if err := h.Bookings.CreateBooking(context.Background(), booking); err != nil {
		tb.Fatalf("failed to seed booking %s: %v", fixture.ID, err)
	}
	return booking
}
