package models

import "time"

// AvailabilityException is a date-range blackout that suppresses a mentor's
// availability regardless of the weekly pattern. Both bounds are inclusive
// calendar dates; overlapping exceptions are allowed (union semantics).
type AvailabilityException struct {
	ID        string    `db:"id" json:"id"`
	MentorID  string    `db:"mentor_id" json:"mentor_id"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Covers reports whether the given calendar date falls inside the blackout.
func (e AvailabilityException) Covers(date time.Time) bool {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	start := time.Date(e.StartDate.Year(), e.StartDate.Month(), e.StartDate.Day(), 0, 0, 0, 0, date.Location())
	end := time.Date(e.EndDate.Year(), e.EndDate.Month(), e.EndDate.Day(), 0, 0, 0, 0, date.Location())
	return !day.Before(start) && !day.After(end)
}
