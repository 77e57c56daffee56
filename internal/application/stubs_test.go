package application

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/scheduler"
)

// memoryBookingStore is a transactional in-memory BookingStore. RunInTx
// stages writes on a copy that replaces the committed state only on success.
type memoryBookingStore struct {
	mu       sync.Mutex
	bookings map[string]Booking

	// commitFailures makes the next N commits fail with a serialization error.
	commitFailures int
	txAttempts     int
	createErr      error
	listErr        error
	listCalls      []BookingQuery
}

func newMemoryBookingStore(bookings ...Booking) *memoryBookingStore {
	store := &memoryBookingStore{bookings: make(map[string]Booking)}
	for _, b := range bookings {
		store.bookings[b.ID] = b
	}
	return store
}

func (s *memoryBookingStore) CreateBooking(ctx context.Context, booking Booking) (Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Booking{}, s.createErr
	}
	if _, exists := s.bookings[booking.ID]; exists {
		return Booking{}, persistence.ErrDuplicate
	}
	s.bookings[booking.ID] = booking
	return booking, nil
}

func (s *memoryBookingStore) GetBooking(ctx context.Context, id string) (Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return b, nil
}

func (s *memoryBookingStore) ListBookings(ctx context.Context, query BookingQuery) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls = append(s.listCalls, query)
	if s.listErr != nil {
		return nil, s.listErr
	}
	return filterBookings(s.bookings, query), nil
}

func (s *memoryBookingStore) RunInTx(ctx context.Context, fn func(tx BookingStoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txAttempts++

	staged := make(map[string]Booking, len(s.bookings))
	for id, b := range s.bookings {
		staged[id] = b
	}
	if err := fn(&memoryBookingTx{bookings: staged}); err != nil {
		return err
	}
	if s.commitFailures > 0 {
		s.commitFailures--
		return persistence.ErrSerialization
	}
	s.bookings = staged
	return nil
}

func (s *memoryBookingStore) snapshot(id string) Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memoryBookingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

type memoryBookingTx struct {
	bookings map[string]Booking
}

func (t *memoryBookingTx) GetBookingForUpdate(ctx context.Context, id string) (Booking, error) {
	b, ok := t.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return b, nil
}

func (t *memoryBookingTx) ListBookings(ctx context.Context, query BookingQuery) ([]Booking, error) {
	return filterBookings(t.bookings, query), nil
}

func (t *memoryBookingTx) TransitionStatus(ctx context.Context, ids []string, from, to scheduler.Status, at time.Time) (int64, error) {
	var affected int64
	for _, id := range ids {
		b, ok := t.bookings[id]
		if !ok || b.Status != from {
			continue
		}
		b.Status = to
		b.UpdatedAt = at
		decided := at
		b.DecidedAt = &decided
		t.bookings[id] = b
		affected++
	}
	return affected, nil
}

func filterBookings(all map[string]Booking, query BookingQuery) []Booking {
	var out []Booking
	for _, b := range all {
		if query.RoomID != "" && b.RoomID != query.RoomID {
			continue
		}
		if query.RequesterID != "" && b.RequesterID != query.RequesterID {
			continue
		}
		if query.ExcludeID != "" && b.ID == query.ExcludeID {
			continue
		}
		if len(query.Statuses) > 0 && !containsStatus(query.Statuses, b.Status) {
			continue
		}
		if query.Overlapping != nil && !b.Window().Overlaps(*query.Overlapping) {
			continue
		}
		if query.EndsAfter != nil && !b.End.After(*query.EndsAfter) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func containsStatus(statuses []scheduler.Status, status scheduler.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type roomCatalogStub struct {
	mu      sync.Mutex
	rooms   map[string]Room
	listErr error
	upserts []Room
}

func newRoomCatalogStub(rooms ...Room) *roomCatalogStub {
	stub := &roomCatalogStub{rooms: make(map[string]Room)}
	for _, r := range rooms {
		stub.rooms[r.ID] = r
	}
	return stub
}

func (r *roomCatalogStub) GetRoom(ctx context.Context, id string) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (r *roomCatalogStub) ListRooms(ctx context.Context) ([]Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out, nil
}

func (r *roomCatalogStub) UpsertRoom(ctx context.Context, room Room) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.rooms {
		if existing.Name == room.Name {
			room.ID = id
			room.CreatedAt = existing.CreatedAt
		}
	}
	r.rooms[room.ID] = room
	r.upserts = append(r.upserts, room)
	return room, nil
}

type notifierStub struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *notifierStub) Notify(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *notifierStub) kinds() []NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]NotificationKind, 0, len(n.sent))
	for _, sent := range n.sent {
		kinds = append(kinds, sent.Kind)
	}
	return kinds
}

var errStoreDown = errors.New("store unavailable")

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}
