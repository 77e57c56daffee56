package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/scheduler"
)

var (
	principalCounter uint64
	roomCounter      uint64
	bookingCounter   uint64
)

var referenceTime = time.Date(2024, time.March, 14, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns the reference day at the given wall clock time.
func At(hour, minute int) time.Time {
	day := referenceTime.Truncate(24 * time.Hour)
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// --------------------------- Principal fixtures ---------------------------

// PrincipalOption configures a generated principal.
type PrincipalOption func(*application.Principal)

// NewPrincipal returns a deterministic student principal with optional overrides.
func NewPrincipal(opts ...PrincipalOption) application.Principal {
	idx := atomic.AddUint64(&principalCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	principal := application.Principal{
		UserID:      id,
		DisplayName: fmt.Sprintf("User %03d", idx),
		Email:       id + "@example.edu",
	}
	for _, opt := range opts {
		opt(&principal)
	}
	return principal
}

// NewAdmin returns a deterministic administrator principal.
func NewAdmin(opts ...PrincipalOption) application.Principal {
	return NewPrincipal(append([]PrincipalOption{WithAdmin(true)}, opts...)...)
}

// WithPrincipalID overrides the generated user ID.
func WithPrincipalID(id string) PrincipalOption {
	return func(p *application.Principal) {
		p.UserID = id
	}
}

// WithAdmin sets the administrator flag.
func WithAdmin(isAdmin bool) PrincipalOption {
	return func(p *application.Principal) {
		p.IsAdmin = isAdmin
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic bookable room.
type RoomFixture struct {
	ID        string
	Name      string
	Location  string
	Capacity  int
	Amenities []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Seminar Room %03d", idx),
		Location:  "Library Wing",
		Capacity:  int(10 + idx%20),
		Amenities: []string{"whiteboard"},
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// WithRoomAmenities replaces the amenity list.
func WithRoomAmenities(amenities ...string) RoomOption {
	return func(f *RoomFixture) {
		f.Amenities = append([]string(nil), amenities...)
	}
}

// Application returns the fixture as an application.Room value.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:        f.ID,
		Name:      f.Name,
		Location:  f.Location,
		Capacity:  f.Capacity,
		Amenities: append([]string(nil), f.Amenities...),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:        f.ID,
		Name:      f.Name,
		Location:  f.Location,
		Capacity:  f.Capacity,
		Amenities: append([]string(nil), f.Amenities...),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Input returns the fixture as an application.RoomInput.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Name:      f.Name,
		Location:  f.Location,
		Capacity:  f.Capacity,
		Amenities: append([]string(nil), f.Amenities...),
	}
}

// ---------------------------- Booking fixtures ----------------------------

// BookingFixture represents a deterministic booking record.
type BookingFixture struct {
	ID        string
	RoomID    string
	Requester application.Principal
	Start     time.Time
	End       time.Time
	Reason    string
	Status    scheduler.Status
	CreatedAt time.Time
	DecidedAt *time.Time
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a deterministic pending booking one hour long.
func NewBookingFixture(opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	start := At(9, 0)
	fixture := BookingFixture{
		ID:     fmt.Sprintf("booking-%03d", idx),
		RoomID: "room-001",
		Requester: application.Principal{
			UserID:      fmt.Sprintf("requester-%03d", idx),
			DisplayName: fmt.Sprintf("Requester %03d", idx),
			Email:       fmt.Sprintf("requester-%03d@example.edu", idx),
		},
		Start:     start,
		End:       start.Add(time.Hour),
		Reason:    "study group",
		Status:    scheduler.StatusPending,
		CreatedAt: referenceTime.Add(-time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingID overrides the booking ID.
func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) {
		f.ID = id
	}
}

// WithBookingRoom sets the booked room.
func WithBookingRoom(roomID string) BookingOption {
	return func(f *BookingFixture) {
		f.RoomID = roomID
	}
}

// WithBookingRequester sets the requesting principal.
func WithBookingRequester(requester application.Principal) BookingOption {
	return func(f *BookingFixture) {
		f.Requester = requester
	}
}

// WithBookingWindow sets the start and end times.
func WithBookingWindow(start, end time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.Start = start
		f.End = end
	}
}

// WithBookingStatus sets the status. Terminal statuses also receive a decision time.
func WithBookingStatus(status scheduler.Status) BookingOption {
	return func(f *BookingFixture) {
		f.Status = status
		if status.IsTerminal() && f.DecidedAt == nil {
			decided := f.CreatedAt.Add(time.Minute)
			f.DecidedAt = &decided
		}
	}
}

// WithBookingReason overrides the reason.
func WithBookingReason(reason string) BookingOption {
	return func(f *BookingFixture) {
		f.Reason = reason
	}
}

// WithBookingCreatedAt sets the request time.
func WithBookingCreatedAt(t time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.CreatedAt = t
	}
}

func (f BookingFixture) updatedAt() time.Time {
	if f.DecidedAt != nil {
		return *f.DecidedAt
	}
	return f.CreatedAt
}

// Application returns the fixture as an application.Booking value.
func (f BookingFixture) Application() application.Booking {
	return application.Booking{
		ID:             f.ID,
		RoomID:         f.RoomID,
		RequesterID:    f.Requester.UserID,
		RequesterName:  f.Requester.DisplayName,
		RequesterEmail: f.Requester.Email,
		Start:          f.Start,
		End:            f.End,
		Reason:         f.Reason,
		Status:         f.Status,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.updatedAt(),
		DecidedAt:      copyTimePtr(f.DecidedAt),
	}
}

// Persistence returns the fixture as a persistence.Booking value.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:             f.ID,
		RoomID:         f.RoomID,
		RequesterID:    f.Requester.UserID,
		RequesterName:  f.Requester.DisplayName,
		RequesterEmail: f.Requester.Email,
		Start:          f.Start,
		End:            f.End,
		Reason:         f.Reason,
		Status:         persistence.BookingStatus(f.Status),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.updatedAt(),
		DecidedAt:      copyTimePtr(f.DecidedAt),
	}
}

// Input returns the fixture as an application.BookingInput.
func (f BookingFixture) Input() application.BookingInput {
	return application.BookingInput{
		RoomID: f.RoomID,
		Start:  f.Start,
		End:    f.End,
		Reason: f.Reason,
	}
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
