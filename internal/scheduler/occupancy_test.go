package scheduler

import (
	"testing"
	"time"
)

func TestComputeRoomStatus(t *testing.T) {
	t.Parallel()

	bookings := []Booking{
		{ID: "a", RoomID: "lt1", Window: window(10, 0, 11, 0), Status: StatusApproved},
		{ID: "b", RoomID: "lt1", Window: window(12, 0, 13, 0), Status: StatusPending},
	}

	tests := []struct {
		name string
		asOf time.Time
		want RoomStatus
	}{
		{name: "before any booking", asOf: at(9, 0), want: RoomVacant},
		{name: "at start", asOf: at(10, 0), want: RoomOccupied},
		{name: "more than threshold left", asOf: at(10, 29), want: RoomOccupied},
		{name: "exactly threshold left", asOf: at(10, 30), want: RoomEndingSoon},
		{name: "one minute left", asOf: at(10, 59), want: RoomEndingSoon},
		{name: "at end is exclusive", asOf: at(11, 0), want: RoomVacant},
		{name: "pending bookings ignored", asOf: at(12, 30), want: RoomVacant},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ComputeRoomStatus(bookings, tc.asOf); got != tc.want {
				t.Fatalf("ComputeRoomStatus = %s, want %s", got, tc.want)
			}
		})
	}
}
