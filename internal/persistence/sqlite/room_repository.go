package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

const roomColumns = `id, name, location, capacity, amenities, created_at, updated_at`

// RoomRepository implements persistence.RoomRepository using SQLite.
type RoomRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

var _ persistence.RoomRepository = (*RoomRepository)(nil)

// NewRoomRepository creates a new SQLite room repository.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name then ID.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rooms, nil
}

// UpsertRoom inserts a room or updates the row with the same name. The ID of
// an existing row is preserved.
func (r *RoomRepository) UpsertRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	if room.ID == "" || room.Name == "" {
		return persistence.Room{}, persistence.ErrConstraintViolation
	}
	if room.Capacity <= 0 {
		return persistence.Room{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}

	amenities, err := encodeAmenities(room.Amenities)
	if err != nil {
		return persistence.Room{}, err
	}

	query := `
		INSERT INTO rooms (` + roomColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			location = excluded.location,
			capacity = excluded.capacity,
			amenities = excluded.amenities,
			updated_at = excluded.updated_at
		RETURNING ` + roomColumns

	row := r.pool.DB().QueryRowContext(ctx, query,
		room.ID,
		room.Name,
		room.Location,
		room.Capacity,
		amenities,
		formatTime(room.CreatedAt),
		formatTime(room.UpdatedAt),
	)
	stored, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return stored, nil
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var room persistence.Room
	var amenities, createdStr, updatedStr string

	if err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Location,
		&room.Capacity,
		&amenities,
		&createdStr,
		&updatedStr,
	); err != nil {
		return persistence.Room{}, err
	}

	var err error
	if room.Amenities, err = decodeAmenities(amenities); err != nil {
		return persistence.Room{}, err
	}
	if room.CreatedAt, err = parseTime("created_at", createdStr); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime("updated_at", updatedStr); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

func encodeAmenities(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode amenities: %w", err)
	}
	return string(raw), nil
}

func decodeAmenities(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode amenities: %w", err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
