package persistence

import "time"

// BookingStatus mirrors the status column of the bookings table.
type BookingStatus string

const (
	BookingStatusPending  BookingStatus = "PENDING"
	BookingStatusApproved BookingStatus = "APPROVED"
	BookingStatusRejected BookingStatus = "REJECTED"
)

// Room represents a bookable room catalog entry.
type Room struct {
	ID        string
	Name      string
	Location  string
	Capacity  int
	Amenities []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Booking represents a reservation request stored in persistence.
// Requester contact details are denormalised from the identity token at
// request time so notifications do not depend on the identity provider.
type Booking struct {
	ID             string
	RoomID         string
	RequesterID    string
	RequesterName  string
	RequesterEmail string
	Start          time.Time
	End            time.Time
	Reason         string
	Status         BookingStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DecidedAt      *time.Time
}
