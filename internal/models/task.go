package models

import "time"

// TaskStatus represents the lifecycle of a mentored task.
type TaskStatus string

const (
	TaskStatusOpen     TaskStatus = "OPEN"
	TaskStatusResolved TaskStatus = "RESOLVED"
	TaskStatusOverdue  TaskStatus = "OVERDUE"
)

// Task is an assigned piece of work with a due date that can be postponed.
// The original due date is preserved on the first postponement so the
// escalation summary can show total slippage.
type Task struct {
	ID            string     `db:"id" json:"id"`
	MentorID      string     `db:"mentor_id" json:"mentor_id"`
	ParticipantID string     `db:"participant_id" json:"participant_id"`
	Title         string     `db:"title" json:"title"`
	DueAt         time.Time  `db:"due_at" json:"due_at"`
	OriginalDueAt *time.Time `db:"original_due_at" json:"original_due_at,omitempty"`
	PostponeCount int        `db:"postpone_count" json:"postpone_count"`
	Status        TaskStatus `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// MentorAlert notifies a mentor that a task crossed the postponement
// threshold. Emitted once per crossing.
type MentorAlert struct {
	ID        string    `db:"id" json:"id"`
	MentorID  string    `db:"mentor_id" json:"mentor_id"`
	TaskID    string    `db:"task_id" json:"task_id"`
	Summary   string    `db:"summary" json:"summary"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
