// Package postgres implements the booking store on PostgreSQL using pgx.
// Approval transactions run at SERIALIZABLE isolation.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/campus-booking/internal/logging"
	"github.com/example/campus-booking/internal/persistence/migration"
)

// Store bundles the pgx pool with its repositories.
type Store struct {
	pool        *pgxpool.Pool
	databaseURL string

	Bookings *BookingRepository
	Rooms    *RoomRepository
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	// PgBouncer in transaction mode does not support prepared statements.
	if strings.Contains(strings.ToLower(databaseURL), "pgbouncer=true") {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
		cfg.ConnConfig.StatementCacheCapacity = 0
		cfg.ConnConfig.DescriptionCacheCapacity = 0
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Store{
		pool:        pool,
		databaseURL: databaseURL,
		Bookings:    NewBookingRepository(pool),
		Rooms:       NewRoomRepository(pool),
	}, nil
}

// Migrate applies pending schema migrations over a dedicated connection.
func (s *Store) Migrate(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = slog.Default()
	}
	return migration.NewRunner(logger).UpPostgres(ctx, s.databaseURL)
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
