package sqlite

import (
	"context"
	"log/slog"

	"github.com/example/campus-booking/internal/logging"
	"github.com/example/campus-booking/internal/persistence/migration"
)

// Store bundles the SQLite connection pool with its repositories.
type Store struct {
	pool *ConnectionPool

	Bookings *BookingRepository
	Rooms    *RoomRepository
}

// Open connects to the database described by cfg. Call Migrate before use
// on a fresh database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := NewConnectionPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{
		pool:     pool,
		Bookings: NewBookingRepository(pool),
		Rooms:    NewRoomRepository(pool),
	}, nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = slog.Default()
	}
	return migration.NewRunner(logger).UpSQLite(ctx, s.pool.DB())
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
