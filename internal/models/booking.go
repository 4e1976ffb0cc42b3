package models

import (
	"fmt"
	"time"
)

// CallType distinguishes short recurring discipline calls from longer
// mentorship sessions.
type CallType string

const (
	CallTypeDiscipline CallType = "DISCIPLINE"
	CallTypeMentorship CallType = "MENTORSHIP"
)

// Valid reports whether the call type is known.
func (t CallType) Valid() bool {
	return t == CallTypeDiscipline || t == CallTypeMentorship
}

// SlotMinutes returns the fixed slot duration for the call type.
func (t CallType) SlotMinutes() int {
	if t == CallTypeDiscipline {
		return 15
	}
	return 60
}

// BookingSource identifies how a booking entered the ledger.
type BookingSource string

const (
	BookingSourceRequest    BookingSource = "REQUEST"
	BookingSourceProgram    BookingSource = "PROGRAM"
	BookingSourceDiscipline BookingSource = "DISCIPLINE"
)

// BookingStatus represents the lifecycle of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusExpired   BookingStatus = "EXPIRED"
)

// Active reports whether the booking still occupies its time interval.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// AttendanceMark records the mentor's per-session decision.
type AttendanceMark string

const (
	AttendancePresent AttendanceMark = "PRESENT"
	AttendanceAbsent  AttendanceMark = "ABSENT"
)

// Booking is the unified ledger entry for every reserved interval: one-off
// mentorship requests and generated recurring calls share one timeline so
// overlap checks have a single code path.
type Booking struct {
	ID              string          `db:"id" json:"id"`
	MentorID        string          `db:"mentor_id" json:"mentor_id"`
	ParticipantID   string          `db:"participant_id" json:"participant_id"`
	CallType        CallType        `db:"call_type" json:"call_type"`
	Source          BookingSource   `db:"source" json:"source"`
	StartAt         time.Time       `db:"start_at" json:"start_at"`
	DurationMinutes int             `db:"duration_minutes" json:"duration_minutes"`
	Status          BookingStatus   `db:"status" json:"status"`
	Attendance      *AttendanceMark `db:"attendance" json:"attendance,omitempty"`
	CommitmentID    *string         `db:"commitment_id" json:"commitment_id,omitempty"`
	WeekNumber      *int            `db:"week_number" json:"week_number,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// EndAt returns the exclusive end of the booking interval.
func (b Booking) EndAt() time.Time {
	return b.StartAt.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [cStart, cEnd) intersect. Adjacent intervals do not overlap.
func Overlaps(aStart, aEnd, cStart, cEnd time.Time) bool {
	return aStart.Before(cEnd) && cStart.Before(aEnd)
}

// BookingFilter describes query params for listing bookings.
type BookingFilter struct {
	MentorID      string
	ParticipantID string
	CallType      CallType
	Status        BookingStatus
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// BookingConflict describes an existing booking that blocks a new one.
type BookingConflict struct {
	BookingID       string    `db:"booking_id" json:"booking_id"`
	MentorID        string    `db:"mentor_id" json:"mentor_id"`
	MentorName      string    `db:"mentor_name" json:"mentor_name,omitempty"`
	ParticipantID   string    `db:"participant_id" json:"participant_id"`
	StartAt         time.Time `db:"start_at" json:"start_at"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Dimension       string    `db:"-" json:"dimension"`
}

// BookingConflictError is returned when a reservation collides with an
// existing ledger entry.
type BookingConflictError struct {
	Type     string          `json:"type"`
	Message  string          `json:"message"`
	Conflict BookingConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *BookingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Slot is a bookable start instant with a display label.
type Slot struct {
	StartAt time.Time `json:"start_at"`
	Label   string    `json:"label"`
}

// Slot resolution reason codes. An empty slot list is not an error; the
// reason tells the caller why nothing is bookable.
const (
	SlotReasonNoAvailability = "NO_AVAILABILITY"
	SlotReasonFullyBooked    = "FULLY_BOOKED"
)

// SlotResolution is the read-path result for a mentor, call type and range.
type SlotResolution struct {
	MentorID string   `json:"mentor_id"`
	CallType CallType `json:"call_type"`
	Slots    []Slot   `json:"slots"`
	Reason   string   `json:"reason,omitempty"`
}

// FormatMinuteOfDay renders a minute offset as an HH:MM label.
func FormatMinuteOfDay(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseTimeOfDay converts an HH:MM string to a minute-of-day offset.
func ParseTimeOfDay(raw string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(raw, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", raw, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("time of day %q out of range", raw)
	}
	return hh*60 + mm, nil
}
