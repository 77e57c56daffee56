package scheduler

import (
	"errors"
	"sort"
	"time"
)

// ErrInvalidWindow is returned when a window does not start strictly before it ends.
var ErrInvalidWindow = errors.New("scheduler: start must be before end")

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates and constructs a window.
func NewWindow(start, end time.Time) (Window, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return Window{}, ErrInvalidWindow
	}
	return Window{Start: start, End: end}, nil
}

// Valid reports whether the window is non-empty.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.Start.Before(w.End)
}

// Overlaps reports whether the two windows intersect. Touching windows do not.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && w.End.After(other.Start)
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Booking is the projection of a reservation the conflict rules operate on.
type Booking struct {
	ID     string
	RoomID string
	Window Window
	Status Status
}

// DetectConflicts returns the approved bookings on the candidate's room whose
// windows overlap the candidate. The candidate itself is never reported.
func DetectConflicts(existing []Booking, candidate Booking) []Booking {
	return filterOverlapping(existing, candidate, StatusApproved)
}

// CascadeTargets returns the pending bookings that must be rejected when
// target is approved.
func CascadeTargets(target Booking, others []Booking) []Booking {
	return filterOverlapping(others, target, StatusPending)
}

func filterOverlapping(bookings []Booking, reference Booking, status Status) []Booking {
	var matched []Booking
	for _, b := range bookings {
		if b.ID != "" && b.ID == reference.ID {
			continue
		}
		if b.RoomID != reference.RoomID || b.Status != status {
			continue
		}
		if !b.Window.Overlaps(reference.Window) {
			continue
		}
		matched = append(matched, b)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Window.Start.Equal(matched[j].Window.Start) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Window.Start.Before(matched[j].Window.Start)
	})
	return matched
}
