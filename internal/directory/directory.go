// Package directory provides the read-through room catalog used by the
// booking services.
package directory

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/example/campus-booking/internal/persistence"
)

// DefaultSize is the cache capacity used when none is configured.
const DefaultSize = 256

// Directory caches rooms in front of a persistence.RoomRepository. Rooms are
// read-only to the scheduler, so entries stay valid until an upsert.
type Directory struct {
	repo   persistence.RoomRepository
	cache  *lru.Cache[string, persistence.Room]
	logger *slog.Logger
}

var _ persistence.RoomRepository = (*Directory)(nil)

// New constructs a Directory holding at most size rooms.
func New(repo persistence.RoomRepository, size int, logger *slog.Logger) (*Directory, error) {
	if repo == nil {
		return nil, fmt.Errorf("directory: room repository is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, persistence.Room](size)
	if err != nil {
		return nil, fmt.Errorf("directory: create cache: %w", err)
	}
	return &Directory{
		repo:   repo,
		cache:  cache,
		logger: logger.With("component", "room_directory"),
	}, nil
}

// GetRoom returns the room, loading it from the repository on a miss.
// Lookups of unknown rooms are not cached.
func (d *Directory) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if room, ok := d.cache.Get(id); ok {
		return cloneRoom(room), nil
	}
	d.logger.DebugContext(ctx, "cache.get.miss", "room_id", id)

	room, err := d.repo.GetRoom(ctx, id)
	if err != nil {
		return persistence.Room{}, err
	}
	d.cache.Add(room.ID, cloneRoom(room))
	return room, nil
}

// ListRooms reads the full catalog from the repository and refreshes the
// cached entries.
func (d *Directory) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rooms, err := d.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	for _, room := range rooms {
		d.cache.Add(room.ID, cloneRoom(room))
	}
	return rooms, nil
}

// UpsertRoom writes through to the repository and replaces the cached entry.
func (d *Directory) UpsertRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	stored, err := d.repo.UpsertRoom(ctx, room)
	if err != nil {
		return persistence.Room{}, err
	}
	d.cache.Add(stored.ID, cloneRoom(stored))
	return stored, nil
}

// Purge drops every cached room.
func (d *Directory) Purge() {
	d.cache.Purge()
}

// Len reports the number of cached rooms.
func (d *Directory) Len() int {
	return d.cache.Len()
}

func cloneRoom(room persistence.Room) persistence.Room {
	if room.Amenities != nil {
		room.Amenities = append([]string(nil), room.Amenities...)
	}
	return room
}
