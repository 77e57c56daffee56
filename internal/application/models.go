package application

import (
	"time"

	"github.com/example/campus-booking/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID      string
	DisplayName string
	Email       string
	IsAdmin     bool
}

// Authenticated reports whether the principal carries an identity.
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// Room represents a catalog entry for a bookable room.
type Room struct {
	ID        string
	Name      string
	Location  string
	Capacity  int
	Amenities []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomWithStatus pairs a room with its occupancy at a point in time.
type RoomWithStatus struct {
	Room
	Status scheduler.RoomStatus
	AsOf   time.Time
}

// RoomInput captures caller provided room fields used for seeding.
type RoomInput struct {
	Name      string
	Location  string
	Capacity  int
	Amenities []string
}

// Booking represents a reservation request and its decision state.
type Booking struct {
	ID             string
	RoomID         string
	RequesterID    string
	RequesterName  string
	RequesterEmail string
	Start          time.Time
	End            time.Time
	Reason         string
	Status         scheduler.Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DecidedAt      *time.Time
}

// Window returns the booking's half-open time range.
func (b Booking) Window() scheduler.Window {
	return scheduler.Window{Start: b.Start, End: b.End}
}

func (b Booking) domain() scheduler.Booking {
	return scheduler.Booking{ID: b.ID, RoomID: b.RoomID, Window: b.Window(), Status: b.Status}
}

// BookingInput captures caller provided booking fields.
type BookingInput struct {
	RoomID string
	Start  time.Time
	End    time.Time
	Reason string
}

// RequestBookingParams wraps the data required to request a booking.
type RequestBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// DecideBookingParams wraps the data required to approve or reject a booking.
type DecideBookingParams struct {
	Principal Principal
	BookingID string
}

// Decision is the outcome of an approval: the approved booking plus every
// pending booking that was rejected because it overlapped.
type Decision struct {
	Booking      Booking
	AutoRejected []Booking
}

// ListBookingsParams wraps the filters of the administrator booking listing.
type ListBookingsParams struct {
	Principal Principal
	Status    *scheduler.Status
	RoomID    string
}

// BookingQuery narrows booking reads. Zero values are ignored.
type BookingQuery struct {
	RoomID      string
	RequesterID string
	Statuses    []scheduler.Status
	Overlapping *scheduler.Window
	ExcludeID   string
	EndsAfter   *time.Time
}

// NotificationKind identifies the booking event being announced.
type NotificationKind string

const (
	NotificationRequested NotificationKind = "requested"
	NotificationApproved  NotificationKind = "approved"
	NotificationRejected  NotificationKind = "rejected"
)

// Recipient is the person a notification is addressed to.
type Recipient struct {
	UserID string
	Name   string
	Email  string
}

// Notification describes a committed booking event.
type Notification struct {
	Kind       NotificationKind
	Booking    Booking
	Room       Room
	Recipient  Recipient
	OccurredAt time.Time
	// AutoRejected marks rejections caused by another booking's approval.
	AutoRejected bool
}
