package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/campus-booking/internal/persistence"
)

const bookingColumns = `id, room_id, requester_id, requester_name, requester_email,
	start_time, end_time, reason, status, created_at, updated_at, decided_at`

const transitionStatusSQL = `UPDATE bookings
	SET status = $1, updated_at = $2, decided_at = $2
	WHERE status = $3 AND id = ANY($4)`

// approvalTxOptions is used for every approve and reject transaction.
var approvalTxOptions = pgx.TxOptions{IsoLevel: pgx.Serializable}

// BookingRepository implements persistence.BookingRepository on PostgreSQL.
type BookingRepository struct {
	pool *pgxpool.Pool
}

var _ persistence.BookingRepository = (*BookingRepository)(nil)

// NewBookingRepository creates a booking repository backed by pool.
func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// CreateBooking inserts a new booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.RoomID == "" || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}
	if booking.Status == "" {
		booking.Status = persistence.BookingStatusPending
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = booking.CreatedAt
	}

	_, err := r.pool.Exec(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		booking.ID,
		booking.RoomID,
		booking.RequesterID,
		booking.RequesterName,
		booking.RequesterEmail,
		booking.Start.UTC(),
		booking.End.UTC(),
		booking.Reason,
		string(booking.Status),
		booking.CreatedAt.UTC(),
		booking.UpdatedAt.UTC(),
		booking.DecidedAt,
	)
	return mapError(err)
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	return getBooking(ctx, r.pool, id, false)
}

// ListBookings lists bookings matching filter.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	return listBookings(ctx, r.pool, filter)
}

// RunInTx executes fn in a SERIALIZABLE transaction. Serialization failures
// surface as persistence.ErrSerialization so callers can retry.
func (r *BookingRepository) RunInTx(ctx context.Context, fn func(tx persistence.BookingTx) error) error {
	tx, err := r.pool.BeginTx(ctx, approvalTxOptions)
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&bookingTx{tx: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

type bookingTx struct {
	tx dbtx
}

func (t *bookingTx) GetBookingForUpdate(ctx context.Context, id string) (persistence.Booking, error) {
	return getBooking(ctx, t.tx, id, true)
}

func (t *bookingTx) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	return listBookings(ctx, t.tx, filter)
}

func (t *bookingTx) TransitionStatus(ctx context.Context, ids []string, from, to persistence.BookingStatus, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx, transitionStatusSQL, string(to), at.UTC(), string(from), ids)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func getBooking(ctx context.Context, q dbtx, id string, forUpdate bool) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	booking, err := scanBooking(q.QueryRow(ctx, bookingByIDQuery(forUpdate), id))
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}
	return booking, nil
}

// bookingByIDQuery selects one booking; forUpdate takes its row lock.
func bookingByIDQuery(forUpdate bool) string {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return query
}

func listBookings(ctx context.Context, q dbtx, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	query, args := buildBookingListQuery(filter)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, mapError(err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return bookings, nil
}

type queryBuilder struct {
	conditions []string
	args       []any
}

func (b *queryBuilder) arg(value any) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *queryBuilder) where(condition string) {
	b.conditions = append(b.conditions, condition)
}

func buildBookingListQuery(filter persistence.BookingFilter) (string, []any) {
	var b queryBuilder

	if filter.RoomID != "" {
		b.where("room_id = " + b.arg(filter.RoomID))
	}
	if filter.RequesterID != "" {
		b.where("requester_id = " + b.arg(filter.RequesterID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		b.where("status = ANY(" + b.arg(statuses) + ")")
	}
	if filter.Overlapping != nil {
		b.where("start_time < " + b.arg(filter.Overlapping.End.UTC()))
		b.where("end_time > " + b.arg(filter.Overlapping.Start.UTC()))
	}
	if filter.ExcludeID != "" {
		b.where("id <> " + b.arg(filter.ExcludeID))
	}
	if filter.EndsAfter != nil {
		b.where("end_time > " + b.arg(filter.EndsAfter.UTC()))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(b.conditions) > 0 {
		query += ` WHERE ` + strings.Join(b.conditions, " AND ")
	}
	query += ` ORDER BY start_time ASC, created_at DESC, id ASC`
	return query, b.args
}

func scanBooking(row pgx.Row) (persistence.Booking, error) {
	var booking persistence.Booking
	var status string

	err := row.Scan(
		&booking.ID,
		&booking.RoomID,
		&booking.RequesterID,
		&booking.RequesterName,
		&booking.RequesterEmail,
		&booking.Start,
		&booking.End,
		&booking.Reason,
		&status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&booking.DecidedAt,
	)
	if err != nil {
		return persistence.Booking{}, err
	}
	booking.Status = persistence.BookingStatus(status)
	booking.Start = booking.Start.UTC()
	booking.End = booking.End.UTC()
	booking.CreatedAt = booking.CreatedAt.UTC()
	booking.UpdatedAt = booking.UpdatedAt.UTC()
	if booking.DecidedAt != nil {
		decided := booking.DecidedAt.UTC()
		booking.DecidedAt = &decided
	}
	return booking, nil
}
