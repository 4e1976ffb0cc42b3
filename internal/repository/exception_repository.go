package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mentorhub/mentorhub-api/internal/models"
)

// ExceptionRepository provides persistence for blackout periods.
type ExceptionRepository struct {
	db *sqlx.DB
}

// NewExceptionRepository creates a new exception repository.
func NewExceptionRepository(db *sqlx.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// ListOverlapping returns exceptions whose inclusive date range intersects
// [from, to].
func (r *ExceptionRepository) ListOverlapping(ctx context.Context, mentorID string, from, to time.Time) ([]models.AvailabilityException, error) {
	const query = `SELECT id, mentor_id, start_date, end_date, created_at FROM availability_exceptions WHERE mentor_id = $1 AND start_date <= $3 AND end_date >= $2 ORDER BY start_date ASC`
	var exceptions []models.AvailabilityException
	if err := r.db.SelectContext(ctx, &exceptions, query, mentorID, from, to); err != nil {
		return nil, fmt.Errorf("list overlapping exceptions: %w", err)
	}
	return exceptions, nil
}

// ListByMentor returns every exception for a mentor.
func (r *ExceptionRepository) ListByMentor(ctx context.Context, mentorID string) ([]models.AvailabilityException, error) {
	const query = `SELECT id, mentor_id, start_date, end_date, created_at FROM availability_exceptions WHERE mentor_id = $1 ORDER BY start_date ASC`
	var exceptions []models.AvailabilityException
	if err := r.db.SelectContext(ctx, &exceptions, query, mentorID); err != nil {
		return nil, fmt.Errorf("list mentor exceptions: %w", err)
	}
	return exceptions, nil
}

// FindByID loads an exception by id.
func (r *ExceptionRepository) FindByID(ctx context.Context, id string) (*models.AvailabilityException, error) {
	const query = `SELECT id, mentor_id, start_date, end_date, created_at FROM availability_exceptions WHERE id = $1`
	var exception models.AvailabilityException
	if err := r.db.GetContext(ctx, &exception, query, id); err != nil {
		return nil, err
	}
	return &exception, nil
}

// Create stores a new exception.
func (r *ExceptionRepository) Create(ctx context.Context, exception *models.AvailabilityException) error {
	if exception.ID == "" {
		exception.ID = uuid.NewString()
	}
	if exception.CreatedAt.IsZero() {
		exception.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO availability_exceptions (id, mentor_id, start_date, end_date, created_at) VALUES (:id, :mentor_id, :start_date, :end_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exception); err != nil {
		return fmt.Errorf("create exception: %w", err)
	}
	return nil
}

// Delete removes an exception by id.
func (r *ExceptionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM availability_exceptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete exception: %w", err)
	}
	return nil
}
