package scheduler

import "time"

// RoomStatus is the derived occupancy of a room at an instant.
type RoomStatus string

const (
	RoomVacant     RoomStatus = "vacant"
	RoomOccupied   RoomStatus = "occupied"
	RoomEndingSoon RoomStatus = "endingSoon"
)

// EndingSoonThreshold is the remaining time at or below which an occupied room
// is reported as ending soon.
const EndingSoonThreshold = 30 * time.Minute

// ComputeRoomStatus derives the occupancy at asOf from the approved bookings of
// a single room. Bookings in any other status are ignored.
func ComputeRoomStatus(bookings []Booking, asOf time.Time) RoomStatus {
	return ComputeRoomStatusWithThreshold(bookings, asOf, EndingSoonThreshold)
}

// ComputeRoomStatusWithThreshold is ComputeRoomStatus with a caller supplied threshold.
func ComputeRoomStatusWithThreshold(bookings []Booking, asOf time.Time, threshold time.Duration) RoomStatus {
	for _, b := range bookings {
		if b.Status != StatusApproved || !b.Window.Contains(asOf) {
			continue
		}
		if b.Window.End.Sub(asOf) <= threshold {
			return RoomEndingSoon
		}
		return RoomOccupied
	}
	return RoomVacant
}
