package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mentorhub/mentorhub-api/internal/models"
)

// AvailabilityRepository provides persistence for weekly availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const availabilityColumns = "id, mentor_id, call_type, day_of_week, start_minute, end_minute, active, created_at, updated_at"

// ListActiveByMentorAndType returns the active windows for a mentor and call type.
func (r *AvailabilityRepository) ListActiveByMentorAndType(ctx context.Context, mentorID string, callType models.CallType) ([]models.AvailabilityWindow, error) {
	query := fmt.Sprintf("SELECT %s FROM availability_windows WHERE mentor_id = $1 AND call_type = $2 AND active = TRUE ORDER BY day_of_week ASC, start_minute ASC", availabilityColumns)
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, mentorID, callType); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

// ListByMentor returns every window for a mentor across call types.
func (r *AvailabilityRepository) ListByMentor(ctx context.Context, mentorID string) ([]models.AvailabilityWindow, error) {
	query := fmt.Sprintf("SELECT %s FROM availability_windows WHERE mentor_id = $1 ORDER BY call_type ASC, day_of_week ASC, start_minute ASC", availabilityColumns)
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, mentorID); err != nil {
		return nil, fmt.Errorf("list mentor availability: %w", err)
	}
	return windows, nil
}

// FindByID loads a window by id.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.AvailabilityWindow, error) {
	query := fmt.Sprintf("SELECT %s FROM availability_windows WHERE id = $1", availabilityColumns)
	var window models.AvailabilityWindow
	if err := r.db.GetContext(ctx, &window, query, id); err != nil {
		return nil, err
	}
	return &window, nil
}

// ReplaceSet replaces the full window set for a mentor and call type in one
// transaction. Windows are never partially patched across types.
func (r *AvailabilityRepository) ReplaceSet(ctx context.Context, mentorID string, callType models.CallType, windows []models.AvailabilityWindow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace availability: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM availability_windows WHERE mentor_id = $1 AND call_type = $2`, mentorID, callType); err != nil {
		return fmt.Errorf("clear availability windows: %w", err)
	}

	now := time.Now().UTC()
	for i := range windows {
		payload := windows[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		payload.MentorID = mentorID
		payload.CallType = callType
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err = sqlx.NamedExecContext(ctx, tx, `INSERT INTO availability_windows (id, mentor_id, call_type, day_of_week, start_minute, end_minute, active, created_at, updated_at) VALUES (:id, :mentor_id, :call_type, :day_of_week, :start_minute, :end_minute, :active, :created_at, :updated_at)`, &payload); err != nil {
			return fmt.Errorf("insert availability window: %w", err)
		}
		windows[i] = payload
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace availability: %w", err)
	}
	return nil
}

// Delete removes a window by id.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM availability_windows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete availability window: %w", err)
	}
	return nil
}
