package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

const bookingColumns = `id, room_id, requester_id, requester_name, requester_email,
	start_time, end_time, reason, status, created_at, updated_at, decided_at`

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

var _ persistence.BookingRepository = (*BookingRepository)(nil)

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

// CreateBooking inserts a new booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.RoomID == "" {
		return persistence.ErrConstraintViolation
	}
	if !booking.Start.Before(booking.End) {
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

	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.pool.DB().ExecContext(ctx, query,
		booking.ID,
		booking.RoomID,
		booking.RequesterID,
		booking.RequesterName,
		booking.RequesterEmail,
		formatTime(booking.Start),
		formatTime(booking.End),
		booking.Reason,
		string(booking.Status),
		formatTime(booking.CreatedAt),
		formatTime(booking.UpdatedAt),
		formatNullableTime(booking.DecidedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	return getBooking(ctx, r.pool.DB(), r.mapper, id)
}

// ListBookings lists bookings matching filter.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	return listBookings(ctx, r.pool.DB(), r.mapper, filter)
}

// RunInTx executes fn inside a BEGIN IMMEDIATE transaction. Lock contention
// that outlasts the busy timeout is reported as persistence.ErrSerialization.
func (r *BookingRepository) RunInTx(ctx context.Context, fn func(tx persistence.BookingTx) error) error {
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(&bookingTx{tx: tx, mapper: r.mapper})
	})
	return r.mapper.MapError(err)
}

type bookingTx struct {
	tx     *sql.Tx
	mapper *ErrorMapper
}

// GetBookingForUpdate reads the booking. The immediate transaction already
// holds the database write lock, so no row lock is needed.
func (t *bookingTx) GetBookingForUpdate(ctx context.Context, id string) (persistence.Booking, error) {
	return getBooking(ctx, t.tx, t.mapper, id)
}

func (t *bookingTx) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	return listBookings(ctx, t.tx, t.mapper, filter)
}

func (t *bookingTx) TransitionStatus(ctx context.Context, ids []string, from, to persistence.BookingStatus, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := []any{string(to), formatTime(at), formatTime(at), string(from)}
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE bookings
		SET status = ?, updated_at = ?, decided_at = ?
		WHERE status = ? AND id IN (` + placeholders(len(ids)) + `)`

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, t.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

func getBooking(ctx context.Context, q querier, mapper *ErrorMapper, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	row := q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, mapper.MapError(err)
	}
	return booking, nil
}

func listBookings(ctx context.Context, q querier, mapper *ErrorMapper, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	query, args := buildBookingListQuery(filter)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapper.MapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, mapper.MapError(err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, mapper.MapError(err)
	}
	return bookings, nil
}

func buildBookingListQuery(filter persistence.BookingFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.RequesterID != "" {
		conditions = append(conditions, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if filter.Overlapping != nil {
		conditions = append(conditions, "start_time < ? AND end_time > ?")
		args = append(args, formatTime(filter.Overlapping.End), formatTime(filter.Overlapping.Start))
	}
	if filter.ExcludeID != "" {
		conditions = append(conditions, "id <> ?")
		args = append(args, filter.ExcludeID)
	}
	if filter.EndsAfter != nil {
		conditions = append(conditions, "end_time > ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(bookingColumns)
	b.WriteString(" FROM bookings")
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY start_time ASC, created_at DESC, id ASC")
	return b.String(), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var booking persistence.Booking
	var status, startStr, endStr, createdStr, updatedStr string
	var decided sql.NullString

	err := row.Scan(
		&booking.ID,
		&booking.RoomID,
		&booking.RequesterID,
		&booking.RequesterName,
		&booking.RequesterEmail,
		&startStr,
		&endStr,
		&booking.Reason,
		&status,
		&createdStr,
		&updatedStr,
		&decided,
	)
	if err != nil {
		return persistence.Booking{}, err
	}
	booking.Status = persistence.BookingStatus(status)

	if booking.Start, err = parseTime("start_time", startStr); err != nil {
		return persistence.Booking{}, err
	}
	if booking.End, err = parseTime("end_time", endStr); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTime("created_at", createdStr); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime("updated_at", updatedStr); err != nil {
		return persistence.Booking{}, err
	}
	if booking.DecidedAt, err = parseNullableTime("decided_at", decided); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
