package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/campus-booking/internal/persistence"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want error
	}{
		{code: codeSerializationFailure, want: persistence.ErrSerialization},
		{code: codeDeadlockDetected, want: persistence.ErrSerialization},
		{code: codeUniqueViolation, want: persistence.ErrDuplicate},
		{code: codeCheckViolation, want: persistence.ErrConstraintViolation},
		{code: codeForeignKeyViolation, want: persistence.ErrConstraintViolation},
	}
	for _, tc := range tests {
		err := mapError(fmt.Errorf("commit: %w", &pgconn.PgError{Code: tc.code}))
		if !errors.Is(err, tc.want) {
			t.Errorf("code %s: expected %v, got %v", tc.code, tc.want, err)
		}
	}

	other := errors.New("network down")
	if got := mapError(other); got != other {
		t.Fatalf("expected unrelated error unchanged, got %v", got)
	}
}

func TestBuildBookingListQuery(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)
	query, args := buildBookingListQuery(persistence.BookingFilter{
		RoomID:      "room-1",
		Statuses:    []persistence.BookingStatus{persistence.BookingStatusPending},
		Overlapping: &persistence.Window{Start: start, End: start.Add(time.Hour)},
		ExcludeID:   "b1",
	})

	for _, want := range []string{
		"room_id = $1",
		"status = ANY($2)",
		"start_time < $3",
		"end_time > $4",
		"id <> $5",
		"ORDER BY start_time ASC, created_at DESC, id ASC",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("expected %q in query %s", want, query)
		}
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(args))
	}
	if got := args[2].(time.Time); !got.Equal(start.Add(time.Hour)) {
		t.Fatalf("expected window end as third arg, got %v", got)
	}
}

func TestBuildBookingListQueryPlaceholders(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)
	endsAfter := start.Add(-time.Hour)

	tests := []struct {
		name      string
		filter    persistence.BookingFilter
		want      []string
		wantArgs  int
		wantWhere bool
	}{
		{
			name:     "no filter",
			filter:   persistence.BookingFilter{},
			wantArgs: 0,
		},
		{
			name:      "own upcoming bookings",
			filter:    persistence.BookingFilter{RequesterID: "alice", EndsAfter: &endsAfter},
			want:      []string{"requester_id = $1", "end_time > $2"},
			wantArgs:  2,
			wantWhere: true,
		},
		{
			name: "every filter",
			filter: persistence.BookingFilter{
				RoomID:      "room-1",
				RequesterID: "alice",
				Statuses:    []persistence.BookingStatus{persistence.BookingStatusPending, persistence.BookingStatusApproved},
				Overlapping: &persistence.Window{Start: start, End: start.Add(time.Hour)},
				ExcludeID:   "b1",
				EndsAfter:   &endsAfter,
			},
			want: []string{
				"room_id = $1 AND requester_id = $2 AND status = ANY($3) AND start_time < $4 AND end_time > $5 AND id <> $6 AND end_time > $7",
			},
			wantArgs:  7,
			wantWhere: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			query, args := buildBookingListQuery(tc.filter)
			if got := strings.Contains(query, " WHERE "); got != tc.wantWhere {
				t.Fatalf("expected WHERE clause %v in %s", tc.wantWhere, query)
			}
			for _, want := range tc.want {
				if !strings.Contains(query, want) {
					t.Errorf("expected %q in query %s", want, query)
				}
			}
			if len(args) != tc.wantArgs {
				t.Fatalf("expected %d args, got %d", tc.wantArgs, len(args))
			}
			if strings.Contains(query, fmt.Sprintf("$%d", tc.wantArgs+1)) {
				t.Fatalf("query references a placeholder without an argument: %s", query)
			}
		})
	}

	_, args := buildBookingListQuery(persistence.BookingFilter{
		Statuses: []persistence.BookingStatus{persistence.BookingStatusPending, persistence.BookingStatusApproved},
	})
	statuses, ok := args[0].([]string)
	if !ok || len(statuses) != 2 || statuses[0] != "PENDING" || statuses[1] != "APPROVED" {
		t.Fatalf("expected statuses passed as a text array, got %#v", args[0])
	}
}

type recordedCall struct {
	sql  string
	args []any
}

// recordingDB is a dbtx that records statements instead of running them.
type recordingDB struct {
	calls []recordedCall
	tag   pgconn.CommandTag
	err   error
}

func (r *recordingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.calls = append(r.calls, recordedCall{sql: sql, args: args})
	return r.tag, r.err
}

func (r *recordingDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	r.calls = append(r.calls, recordedCall{sql: sql, args: args})
	return nil, errors.New("query not supported")
}

func (r *recordingDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	r.calls = append(r.calls, recordedCall{sql: sql, args: args})
	return errRow{err: pgx.ErrNoRows}
}

type errRow struct {
	err error
}

func (r errRow) Scan(dest ...any) error {
	return r.err
}

func TestBookingTxTransitionStatus(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.March, 14, 19, 0, 0, 0, time.FixedZone("JST", 9*60*60))

	t.Run("guards on the source status", func(t *testing.T) {
		t.Parallel()
		db := &recordingDB{tag: pgconn.NewCommandTag("UPDATE 2")}
		tx := &bookingTx{tx: db}

		affected, err := tx.TransitionStatus(context.Background(), []string{"b1", "b2"},
			persistence.BookingStatusPending, persistence.BookingStatusRejected, at)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if affected != 2 {
			t.Fatalf("expected 2 rows affected, got %d", affected)
		}
		if len(db.calls) != 1 {
			t.Fatalf("expected one statement, got %d", len(db.calls))
		}
		call := db.calls[0]
		if !strings.Contains(call.sql, "WHERE status = $3 AND id = ANY($4)") {
			t.Fatalf("unexpected statement %s", call.sql)
		}
		if call.args[0] != "REJECTED" || call.args[2] != "PENDING" {
			t.Fatalf("unexpected status args %v", call.args)
		}
		if got := call.args[1].(time.Time); got.Location() != time.UTC || !got.Equal(at) {
			t.Fatalf("expected decision time in UTC, got %v", got)
		}
		if ids := call.args[3].([]string); len(ids) != 2 || ids[0] != "b1" || ids[1] != "b2" {
			t.Fatalf("unexpected ids %v", ids)
		}
	})

	t.Run("no ids skips the statement", func(t *testing.T) {
		t.Parallel()
		db := &recordingDB{}
		affected, err := (&bookingTx{tx: db}).TransitionStatus(context.Background(), nil,
			persistence.BookingStatusPending, persistence.BookingStatusRejected, at)
		if err != nil || affected != 0 || len(db.calls) != 0 {
			t.Fatalf("expected no-op, got affected=%d err=%v calls=%d", affected, err, len(db.calls))
		}
	})

	t.Run("serialization failure is retryable", func(t *testing.T) {
		t.Parallel()
		db := &recordingDB{err: &pgconn.PgError{Code: codeSerializationFailure}}
		_, err := (&bookingTx{tx: db}).TransitionStatus(context.Background(), []string{"b1"},
			persistence.BookingStatusPending, persistence.BookingStatusApproved, at)
		if !errors.Is(err, persistence.ErrSerialization) {
			t.Fatalf("expected ErrSerialization, got %v", err)
		}
	})
}

func TestBookingTxGetBookingForUpdateLocksRow(t *testing.T) {
	t.Parallel()

	db := &recordingDB{}
	_, err := (&bookingTx{tx: db}).GetBookingForUpdate(context.Background(), "b1")
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(db.calls) != 1 || !strings.HasSuffix(db.calls[0].sql, "WHERE id = $1 FOR UPDATE") {
		t.Fatalf("expected row lock, got %+v", db.calls)
	}
	if db.calls[0].args[0] != "b1" {
		t.Fatalf("unexpected args %v", db.calls[0].args)
	}

	if strings.Contains(bookingByIDQuery(false), "FOR UPDATE") {
		t.Fatalf("plain reads must not lock rows")
	}
	if approvalTxOptions.IsoLevel != pgx.Serializable {
		t.Fatalf("expected serializable isolation, got %q", approvalTxOptions.IsoLevel)
	}
}

// openTestStore connects to BOOKING_TEST_POSTGRES_URL and resets the tables.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("BOOKING_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("BOOKING_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	store, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := store.pool.Exec(ctx, `TRUNCATE bookings, rooms`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return store
}

func TestStoreIntegration(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)

	room, err := store.Rooms.UpsertRoom(ctx, persistence.Room{ID: "room-1", Name: "Lab 1", Capacity: 20, Amenities: []string{"projector"}})
	if err != nil {
		t.Fatalf("UpsertRoom: %v", err)
	}

	for i, id := range []string{"a", "b"} {
		err := store.Bookings.CreateBooking(ctx, persistence.Booking{
			ID:          id,
			RoomID:      room.ID,
			RequesterID: "user-" + id,
			Start:       base.Add(time.Duration(i) * 30 * time.Minute),
			End:         base.Add(time.Hour + time.Duration(i)*30*time.Minute),
			Reason:      "seminar",
		})
		if err != nil {
			t.Fatalf("CreateBooking %s: %v", id, err)
		}
	}

	// Two concurrent approvals of overlapping bookings: at most one commits.
	approve := func(id string) error {
		return store.Bookings.RunInTx(ctx, func(tx persistence.BookingTx) error {
			target, err := tx.GetBookingForUpdate(ctx, id)
			if err != nil {
				return err
			}
			approved, err := tx.ListBookings(ctx, persistence.BookingFilter{
				RoomID:      target.RoomID,
				Statuses:    []persistence.BookingStatus{persistence.BookingStatusApproved},
				Overlapping: &persistence.Window{Start: target.Start, End: target.End},
			})
			if err != nil {
				return err
			}
			if len(approved) > 0 {
				return persistence.ErrStaleWrite
			}
			_, err = tx.TransitionStatus(ctx, []string{id}, persistence.BookingStatusPending, persistence.BookingStatusApproved, time.Now())
			return err
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = approve(id)
		}(i, id)
	}
	wg.Wait()

	approved, err := store.Bookings.ListBookings(ctx, persistence.BookingFilter{
		Statuses: []persistence.BookingStatus{persistence.BookingStatusApproved},
	})
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(approved) != 1 {
		t.Fatalf("expected exactly one approved booking, got %d (errors %v)", len(approved), errs)
	}
	for _, err := range errs {
		if err != nil && !errors.Is(err, persistence.ErrSerialization) && !errors.Is(err, persistence.ErrStaleWrite) {
			t.Fatalf("unexpected approval error: %v", err)
		}
	}
}
