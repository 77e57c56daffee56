package directory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/campus-booking/internal/persistence"
)

type roomRepoStub struct {
	mu       sync.Mutex
	rooms    map[string]persistence.Room
	getCalls int
}

func newRoomRepoStub(rooms ...persistence.Room) *roomRepoStub {
	stub := &roomRepoStub{rooms: make(map[string]persistence.Room)}
	for _, room := range rooms {
		stub.rooms[room.ID] = room
	}
	return stub
}

func (s *roomRepoStub) GetRoom(_ context.Context, id string) (persistence.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (s *roomRepoStub) ListRooms(context.Context) ([]persistence.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (s *roomRepoStub) UpsertRoom(_ context.Context, room persistence.Room) (persistence.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
	return room, nil
}

func (s *roomRepoStub) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

func TestDirectoryGetRoomCachesHits(t *testing.T) {
	t.Parallel()

	repo := newRoomRepoStub(persistence.Room{ID: "lab-1", Name: "Lab 1", Capacity: 30, Amenities: []string{"projector"}})
	dir, err := New(repo, 4, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	first, err := dir.GetRoom(ctx, "lab-1")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	first.Amenities[0] = "mutated"

	second, err := dir.GetRoom(ctx, "lab-1")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if repo.calls() != 1 {
		t.Fatalf("expected one repository call, got %d", repo.calls())
	}
	if second.Amenities[0] != "projector" {
		t.Fatalf("cached room must not share slices with callers, got %v", second.Amenities)
	}
}

func TestDirectoryDoesNotCacheMisses(t *testing.T) {
	t.Parallel()

	repo := newRoomRepoStub()
	dir, err := New(repo, 4, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := dir.GetRoom(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if repo.calls() != 2 {
		t.Fatalf("expected misses to reach the repository each time, got %d calls", repo.calls())
	}
}

func TestDirectoryUpsertRefreshesCache(t *testing.T) {
	t.Parallel()

	repo := newRoomRepoStub(persistence.Room{ID: "lab-1", Name: "Lab 1", Capacity: 30})
	dir, err := New(repo, 4, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if _, err := dir.GetRoom(ctx, "lab-1"); err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if _, err := dir.UpsertRoom(ctx, persistence.Room{ID: "lab-1", Name: "Lab 1", Capacity: 50}); err != nil {
		t.Fatalf("UpsertRoom: %v", err)
	}

	room, err := dir.GetRoom(ctx, "lab-1")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if room.Capacity != 50 {
		t.Fatalf("expected refreshed capacity 50, got %d", room.Capacity)
	}
	if repo.calls() != 1 {
		t.Fatalf("expected cached read after upsert, got %d repository calls", repo.calls())
	}

	dir.Purge()
	if dir.Len() != 0 {
		t.Fatalf("expected empty cache after purge, got %d", dir.Len())
	}
}

func TestNewRequiresRepository(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, 1, nil); err == nil {
		t.Fatal("expected error for nil repository")
	}
}
