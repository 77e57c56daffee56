package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/campus-booking/internal/persistence"
)

const roomColumns = `id, name, location, capacity, amenities, created_at, updated_at`

// RoomRepository implements persistence.RoomRepository on PostgreSQL.
type RoomRepository struct {
	pool *pgxpool.Pool
}

var _ persistence.RoomRepository = (*RoomRepository)(nil)

// NewRoomRepository creates a room repository backed by pool.
func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	room, err := scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, mapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return rooms, nil
}

// UpsertRoom inserts a room or updates the row with the same name, keeping
// the existing ID.
func (r *RoomRepository) UpsertRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	if room.ID == "" || room.Name == "" || room.Capacity <= 0 {
		return persistence.Room{}, persistence.ErrConstraintViolation
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}
	amenities := room.Amenities
	if amenities == nil {
		amenities = []string{}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			location = EXCLUDED.location,
			capacity = EXCLUDED.capacity,
			amenities = EXCLUDED.amenities,
			updated_at = EXCLUDED.updated_at
		RETURNING `+roomColumns,
		room.ID, room.Name, room.Location, room.Capacity, amenities,
		room.CreatedAt.UTC(), room.UpdatedAt.UTC(),
	)
	stored, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return stored, nil
}

func scanRoom(row pgx.Row) (persistence.Room, error) {
	var room persistence.Room
	if err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Location,
		&room.Capacity,
		&room.Amenities,
		&room.CreatedAt,
		&room.UpdatedAt,
	); err != nil {
		return persistence.Room{}, err
	}
	if room.Amenities == nil {
		room.Amenities = []string{}
	}
	room.CreatedAt = room.CreatedAt.UTC()
	room.UpdatedAt = room.UpdatedAt.UTC()
	return room, nil
}
