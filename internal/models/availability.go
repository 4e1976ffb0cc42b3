package models

import "time"

// Discipline calls may only be offered in the early-morning band.
const (
	DisciplineWindowFloor   = 5 * 60 // 05:00
	DisciplineWindowCeiling = 8 * 60 // 08:00
)

// AvailabilityWindow is one weekly recurring bookable window for a mentor
// and call type. Times are minute-of-day offsets in the mentor's local day.
type AvailabilityWindow struct {
	ID          string    `db:"id" json:"id"`
	MentorID    string    `db:"mentor_id" json:"mentor_id"`
	CallType    CallType  `db:"call_type" json:"call_type"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"` // 0=Sunday .. 6=Saturday
	StartMinute int       `db:"start_minute" json:"start_minute"`
	EndMinute   int       `db:"end_minute" json:"end_minute"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Contains reports whether a session of the given duration starting at the
// given minute-of-day fits entirely inside the window.
func (w AvailabilityWindow) Contains(startMinute, durationMinutes int) bool {
	return startMinute >= w.StartMinute && startMinute+durationMinutes <= w.EndMinute
}

// WindowDeleteConflict lists confirmed future bookings that block removal
// of an availability window.
type WindowDeleteConflict struct {
	WindowID string    `json:"window_id"`
	Bookings []Booking `json:"bookings"`
}

// Error implements the error interface.
func (e *WindowDeleteConflict) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "availability window has confirmed future bookings"
}
