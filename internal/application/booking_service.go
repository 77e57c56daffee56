package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/scheduler"
)

const (
	defaultNotifyTimeout = 5 * time.Second
	maxReasonLength      = 500
)

// BookingServiceConfig carries the optional collaborators of BookingService.
type BookingServiceConfig struct {
	Retrier             Retrier
	NotifyTimeout       time.Duration
	EndingSoonThreshold time.Duration
	Logger              *slog.Logger
}

// BookingService owns the booking lifecycle: requests, conflict checks and
// the atomic approval cascade.
type BookingService struct {
	bookings      BookingStore
	rooms         RoomDirectory
	notifier      Notifier
	retrier       Retrier
	idGenerator   func() string
	now           func() time.Time
	notifyTimeout time.Duration
	endingSoon    time.Duration
	logger        *slog.Logger
}

// NewBookingService constructs a booking service with default retry and
// notification settings.
func NewBookingService(bookings BookingStore, rooms RoomDirectory, notifier Notifier, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithConfig(bookings, rooms, notifier, idGenerator, now, BookingServiceConfig{})
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(bookings BookingStore, rooms RoomDirectory, notifier Notifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	return NewBookingServiceWithConfig(bookings, rooms, notifier, idGenerator, now, BookingServiceConfig{Logger: logger})
}

// NewBookingServiceWithConfig constructs a booking service with explicit settings.
func NewBookingServiceWithConfig(bookings BookingStore, rooms RoomDirectory, notifier Notifier, idGenerator func() string, now func() time.Time, cfg BookingServiceConfig) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if cfg.Retrier == nil {
		cfg.Retrier = persistence.NewRetryHelper(persistence.DefaultRetryConfig())
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	if cfg.EndingSoonThreshold <= 0 {
		cfg.EndingSoonThreshold = scheduler.EndingSoonThreshold
	}
	return &BookingService{
		bookings:      bookings,
		rooms:         rooms,
		notifier:      notifier,
		retrier:       cfg.Retrier,
		idGenerator:   idGenerator,
		now:           now,
		notifyTimeout: cfg.NotifyTimeout,
		endingSoon:    cfg.EndingSoonThreshold,
		logger:        defaultLogger(cfg.Logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// RequestBooking records a PENDING booking after validating the window, the
// room and the absence of overlapping approved bookings.
func (s *BookingService) RequestBooking(ctx context.Context, params RequestBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RequestBooking",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to request booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking requested")
	}()

	if !params.Principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	var window scheduler.Window
	window, err = scheduler.NewWindow(params.Input.Start, params.Input.End)
	if err != nil {
		err = ErrInvalidWindow
		return
	}

	if vErr := validateBookingInput(params.Input); vErr.HasErrors() {
		err = vErr
		return
	}

	roomID := strings.TrimSpace(params.Input.RoomID)
	if _, err = s.lookupRoom(ctx, roomID); err != nil {
		return
	}

	var approved []Booking
	approved, err = s.bookings.ListBookings(ctx, BookingQuery{
		RoomID:      roomID,
		Statuses:    []scheduler.Status{scheduler.StatusApproved},
		Overlapping: &window,
	})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	candidate := scheduler.Booking{RoomID: roomID, Window: window}
	if conflicts := scheduler.DetectConflicts(toDomainBookings(approved), candidate); len(conflicts) > 0 {
		err = newConflictError(conflicts)
		return
	}

	created := s.now()
	booking = Booking{
		ID:             s.idGenerator(),
		RoomID:         roomID,
		RequesterID:    params.Principal.UserID,
		RequesterName:  params.Principal.DisplayName,
		RequesterEmail: params.Principal.Email,
		Start:          window.Start,
		End:            window.End,
		Reason:         strings.TrimSpace(params.Input.Reason),
		Status:         scheduler.StatusPending,
		CreatedAt:      created,
		UpdatedAt:      created,
	}

	booking, err = s.bookings.CreateBooking(ctx, booking)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	s.notify(ctx, NotificationRequested, booking, false)
	return
}

// ApproveBooking approves a pending booking and rejects every pending booking
// on the same room whose window overlaps it, in one transaction.
func (s *BookingService) ApproveBooking(ctx context.Context, params DecideBookingParams) (decision Decision, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ApproveBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to approve booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("auto_rejected_count", len(decision.AutoRejected)).InfoContext(ctx, "booking approved")
	}()

	if err = requireAdmin(params.Principal); err != nil {
		return
	}

	err = s.retrier.WithRetry(ctx, func(ctx context.Context) error {
		decision = Decision{}
		return s.bookings.RunInTx(ctx, func(tx BookingStoreTx) error {
			var txErr error
			decision, txErr = s.approveInTx(ctx, tx, params.BookingID)
			return txErr
		})
	})
	if err != nil {
		decision = Decision{}
		err = mapDecisionError(err)
		return
	}

	s.notify(ctx, NotificationApproved, decision.Booking, false)
	for _, rejected := range decision.AutoRejected {
		s.notify(ctx, NotificationRejected, rejected, true)
	}
	return
}

func (s *BookingService) approveInTx(ctx context.Context, tx BookingStoreTx, bookingID string) (Decision, error) {
	target, err := tx.GetBookingForUpdate(ctx, bookingID)
	if err != nil {
		return Decision{}, mapBookingRepoError(err)
	}
	if !scheduler.CanTransition(target.Status, scheduler.StatusApproved) {
		return Decision{}, fmt.Errorf("%w: booking is %s", ErrAlreadyDecided, target.Status)
	}

	window := target.Window()
	overlapping, err := tx.ListBookings(ctx, BookingQuery{
		RoomID:      target.RoomID,
		Statuses:    []scheduler.Status{scheduler.StatusApproved, scheduler.StatusPending},
		Overlapping: &window,
		ExcludeID:   target.ID,
	})
	if err != nil {
		return Decision{}, err
	}

	domainOverlapping := toDomainBookings(overlapping)
	if conflicts := scheduler.DetectConflicts(domainOverlapping, target.domain()); len(conflicts) > 0 {
		return Decision{}, newConflictError(conflicts)
	}

	decidedAt := s.now()
	affected, err := tx.TransitionStatus(ctx, []string{target.ID}, scheduler.StatusPending, scheduler.StatusApproved, decidedAt)
	if err != nil {
		return Decision{}, err
	}
	if affected != 1 {
		return Decision{}, fmt.Errorf("%w: booking changed concurrently", ErrAlreadyDecided)
	}

	cascade := scheduler.CascadeTargets(target.domain(), domainOverlapping)
	byID := make(map[string]Booking, len(overlapping))
	for _, b := range overlapping {
		byID[b.ID] = b
	}

	ids := make([]string, 0, len(cascade))
	for _, c := range cascade {
		ids = append(ids, c.ID)
	}
	affected, err = tx.TransitionStatus(ctx, ids, scheduler.StatusPending, scheduler.StatusRejected, decidedAt)
	if err != nil {
		return Decision{}, err
	}
	if affected != int64(len(ids)) {
		// Another writer moved a cascade target; retry against fresh state.
		return Decision{}, fmt.Errorf("%w: cascade matched %d of %d bookings", persistence.ErrSerialization, affected, len(ids))
	}

	decision := Decision{Booking: markDecided(target, scheduler.StatusApproved, decidedAt)}
	for _, id := range ids {
		decision.AutoRejected = append(decision.AutoRejected, markDecided(byID[id], scheduler.StatusRejected, decidedAt))
	}
	return decision, nil
}

// RejectBooking rejects a single pending booking. Other bookings are not touched.
func (s *BookingService) RejectBooking(ctx context.Context, params DecideBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RejectBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reject booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking rejected")
	}()

	if err = requireAdmin(params.Principal); err != nil {
		return
	}

	err = s.retrier.WithRetry(ctx, func(ctx context.Context) error {
		return s.bookings.RunInTx(ctx, func(tx BookingStoreTx) error {
			target, txErr := tx.GetBookingForUpdate(ctx, params.BookingID)
			if txErr != nil {
				return mapBookingRepoError(txErr)
			}
			if !scheduler.CanTransition(target.Status, scheduler.StatusRejected) {
				return fmt.Errorf("%w: booking is %s", ErrAlreadyDecided, target.Status)
			}
			decidedAt := s.now()
			affected, txErr := tx.TransitionStatus(ctx, []string{target.ID}, scheduler.StatusPending, scheduler.StatusRejected, decidedAt)
			if txErr != nil {
				return txErr
			}
			if affected != 1 {
				return fmt.Errorf("%w: booking changed concurrently", ErrAlreadyDecided)
			}
			booking = markDecided(target, scheduler.StatusRejected, decidedAt)
			return nil
		})
	})
	if err != nil {
		booking = Booking{}
		err = mapDecisionError(err)
		return
	}

	s.notify(ctx, NotificationRejected, booking, false)
	return
}

// CheckAvailability reports whether no approved booking on the room overlaps
// the window.
func (s *BookingService) CheckAvailability(ctx context.Context, roomID string, start, end time.Time) (available bool, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CheckAvailability", "room_id", roomID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "availability checked", "available", available)
	}()

	var window scheduler.Window
	window, err = scheduler.NewWindow(start, end)
	if err != nil {
		err = ErrInvalidWindow
		return
	}
	if _, err = s.lookupRoom(ctx, roomID); err != nil {
		return
	}

	var approved []Booking
	approved, err = s.bookings.ListBookings(ctx, BookingQuery{
		RoomID:      roomID,
		Statuses:    []scheduler.Status{scheduler.StatusApproved},
		Overlapping: &window,
	})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	candidate := scheduler.Booking{RoomID: roomID, Window: window}
	available = len(scheduler.DetectConflicts(toDomainBookings(approved), candidate)) == 0
	return
}

// ComputeRoomStatus derives the occupancy of a room at asOf from its approved
// bookings.
func (s *BookingService) ComputeRoomStatus(ctx context.Context, roomID string, asOf time.Time) (status scheduler.RoomStatus, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if asOf.IsZero() {
		asOf = s.now()
	}

	logger := s.loggerWith(ctx, "ComputeRoomStatus", "room_id", roomID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute room status", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if _, err = s.lookupRoom(ctx, roomID); err != nil {
		return
	}

	var approved []Booking
	approved, err = s.bookings.ListBookings(ctx, instantQuery(roomID, asOf))
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	status = scheduler.ComputeRoomStatusWithThreshold(toDomainBookings(approved), asOf, s.endingSoon)
	return
}

// ListBookings returns bookings for administrators, optionally narrowed by
// status and room, ordered by start then newest request first.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListBookings", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(bookings)).InfoContext(ctx, "bookings listed")
	}()

	if err = requireAdmin(params.Principal); err != nil {
		return
	}

	query := BookingQuery{RoomID: strings.TrimSpace(params.RoomID)}
	if params.Status != nil {
		query.Statuses = []scheduler.Status{*params.Status}
	}

	bookings, err = s.bookings.ListBookings(ctx, query)
	if err != nil {
		err = mapBookingRepoError(err)
	}
	return
}

// ListMyBookings returns the principal's own bookings. With upcomingOnly set,
// bookings that already ended are omitted.
func (s *BookingService) ListMyBookings(ctx context.Context, principal Principal, upcomingOnly bool) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListMyBookings", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list own bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(bookings)).InfoContext(ctx, "own bookings listed")
	}()

	if !principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	query := BookingQuery{RequesterID: principal.UserID}
	if upcomingOnly {
		now := s.now()
		query.EndsAfter = &now
	}

	bookings, err = s.bookings.ListBookings(ctx, query)
	if err != nil {
		err = mapBookingRepoError(err)
	}
	return
}

// GetBooking returns a booking visible to its requester or an administrator.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, bookingID string) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if !principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	booking, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		s.loggerWith(ctx, "GetBooking", "booking_id", bookingID).
			WarnContext(ctx, "failed to load booking", "error", err, "error_kind", ErrorKind(err))
		return Booking{}, err
	}
	if !principal.IsAdmin && booking.RequesterID != principal.UserID {
		return Booking{}, ErrForbidden
	}
	return booking, nil
}

func (s *BookingService) lookupRoom(ctx context.Context, roomID string) (Room, error) {
	if strings.TrimSpace(roomID) == "" {
		return Room{}, ErrResourceNotFound
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrResourceNotFound) {
			return Room{}, ErrResourceNotFound
		}
		return Room{}, err
	}
	return room, nil
}

// notify sends a post-commit notification. Failures are logged only.
func (s *BookingService) notify(ctx context.Context, kind NotificationKind, booking Booking, autoRejected bool) {
	if s.notifier == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	logger := s.loggerWith(ctx, "Notify",
		"notification_kind", string(kind),
		"booking_id", booking.ID,
	)

	room, err := s.rooms.GetRoom(notifyCtx, booking.RoomID)
	if err != nil {
		logger.WarnContext(ctx, "room lookup for notification failed", "error", err)
		room = Room{ID: booking.RoomID}
	}

	notification := Notification{
		Kind:    kind,
		Booking: booking,
		Room:    room,
		Recipient: Recipient{
			UserID: booking.RequesterID,
			Name:   booking.RequesterName,
			Email:  booking.RequesterEmail,
		},
		OccurredAt:   s.now(),
		AutoRejected: autoRejected,
	}
	if err := s.notifier.Notify(notifyCtx, notification); err != nil {
		logger.WarnContext(ctx, "notification delivery failed", "error", err, "error_kind", ErrorKind(err))
	}
}

func requireAdmin(principal Principal) error {
	if !principal.Authenticated() {
		return ErrUnauthenticated
	}
	if !principal.IsAdmin {
		return ErrForbidden
	}
	return nil
}

func validateBookingInput(input BookingInput) *ValidationError {
	vErr := &ValidationError{}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		vErr.add("reason", "reason is required")
	} else if utf8.RuneCountInString(reason) > maxReasonLength {
		vErr.add("reason", fmt.Sprintf("reason must be at most %d characters", maxReasonLength))
	}

	return vErr
}

// instantQuery selects approved bookings on roomID whose window contains at.
func instantQuery(roomID string, at time.Time) BookingQuery {
	instant := scheduler.Window{Start: at, End: at.Add(time.Nanosecond)}
	return BookingQuery{
		RoomID:      roomID,
		Statuses:    []scheduler.Status{scheduler.StatusApproved},
		Overlapping: &instant,
	}
}

func markDecided(booking Booking, status scheduler.Status, at time.Time) Booking {
	booking.Status = status
	booking.UpdatedAt = at
	decided := at
	booking.DecidedAt = &decided
	return booking
}

func toDomainBookings(bookings []Booking) []scheduler.Booking {
	out := make([]scheduler.Booking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.domain())
	}
	return out
}

func newConflictError(conflicts []scheduler.Booking) error {
	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.ID)
	}
	return &ConflictError{BookingIDs: ids}
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// mapDecisionError keeps domain outcomes and turns store failures into
// ErrTransactionFailed.
func mapDecisionError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrAlreadyDecided, ErrConflict, ErrForbidden, ErrUnauthenticated} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
}
