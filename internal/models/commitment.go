package models

import "time"

// CommitmentKind distinguishes the fixed-length mentorship program from the
// 120-day discipline subscription. Both share the same generated schedule
// and strike machinery; only the shape of the term differs.
type CommitmentKind string

const (
	CommitmentKindProgram    CommitmentKind = "PROGRAM"
	CommitmentKindDiscipline CommitmentKind = "DISCIPLINE"
)

// CommitmentStatus represents the lifecycle of a recurring commitment.
type CommitmentStatus string

const (
	CommitmentStatusActive    CommitmentStatus = "ACTIVE"
	CommitmentStatusGraduated CommitmentStatus = "GRADUATED"
	CommitmentStatusSuspended CommitmentStatus = "SUSPENDED"
	CommitmentStatusDropped   CommitmentStatus = "DROPPED"
)

// Commitment is a participant's recurring engagement with a mentor: a fixed
// number of weeks, two sessions per week, and a strike-based suspension
// policy with a pluggable threshold.
type Commitment struct {
	ID               string           `db:"id" json:"id"`
	ParticipantID    string           `db:"participant_id" json:"participant_id"`
	MentorID         string           `db:"mentor_id" json:"mentor_id"`
	Kind             CommitmentKind   `db:"kind" json:"kind"`
	StartDate        time.Time        `db:"start_date" json:"start_date"`
	EndDate          time.Time        `db:"end_date" json:"end_date"`
	TotalWeeks       int              `db:"total_weeks" json:"total_weeks"`
	MissedCalls      int              `db:"missed_calls" json:"missed_calls"`
	MaxMissedAllowed int              `db:"max_missed_allowed" json:"max_missed_allowed"`
	Status           CommitmentStatus `db:"status" json:"status"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// StrikesRemaining returns how many further absences are tolerated.
func (c Commitment) StrikesRemaining() int {
	remaining := c.MaxMissedAllowed - c.MissedCalls
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WeeklySlot pins one recurring session to a weekday and time of day.
type WeeklySlot struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	TimeOfDay string `json:"time_of_day" validate:"required"` // HH:MM
}

// CommitmentSchedule pairs a commitment with its next upcoming session for
// immediate display after enrollment.
type CommitmentSchedule struct {
	Commitment  Commitment `json:"commitment"`
	NextSession *Booking   `json:"next_session,omitempty"`
	Sessions    int        `json:"sessions"`
}

// WithdrawalOutcome summarises a voluntary withdrawal.
type WithdrawalOutcome struct {
	Commitment        Commitment `json:"commitment"`
	CancelledSessions int        `json:"cancelled_sessions"`
}

// AttendanceOutcome summarises a commitment after an attendance transition.
type AttendanceOutcome struct {
	Booking          Booking          `json:"booking"`
	CommitmentStatus CommitmentStatus `json:"commitment_status,omitempty"`
	StrikesRemaining int              `json:"strikes_remaining"`
	Suspended        bool             `json:"suspended"`
	CancelledFuture  int              `json:"cancelled_future_sessions"`
}
