package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mentorhub/mentorhub-api/internal/models"
)

// CommitmentRepository provides persistence for recurring commitments.
type CommitmentRepository struct {
	db *sqlx.DB
}

// NewCommitmentRepository creates a new commitment repository.
func NewCommitmentRepository(db *sqlx.DB) *CommitmentRepository {
	return &CommitmentRepository{db: db}
}

const commitmentColumns = "id, participant_id, mentor_id, kind, start_date, end_date, total_weeks, missed_calls, max_missed_allowed, status, created_at, updated_at"

// FindByID loads a commitment by id.
func (r *CommitmentRepository) FindByID(ctx context.Context, id string) (*models.Commitment, error) {
	query := fmt.Sprintf("SELECT %s FROM commitments WHERE id = $1", commitmentColumns)
	var commitment models.Commitment
	if err := r.db.GetContext(ctx, &commitment, query, id); err != nil {
		return nil, err
	}
	return &commitment, nil
}

// FindByIDForUpdate loads a commitment inside a transaction with a row lock.
func (r *CommitmentRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Commitment, error) {
	query := fmt.Sprintf("SELECT %s FROM commitments WHERE id = $1 FOR UPDATE", commitmentColumns)
	var commitment models.Commitment
	if err := tx.GetContext(ctx, &commitment, query, id); err != nil {
		return nil, err
	}
	return &commitment, nil
}

// FindActiveByParticipant returns the participant's ACTIVE commitment, or
// nil when none exists.
func (r *CommitmentRepository) FindActiveByParticipant(ctx context.Context, participantID string) (*models.Commitment, error) {
	query := fmt.Sprintf("SELECT %s FROM commitments WHERE participant_id = $1 AND status = 'ACTIVE' LIMIT 1", commitmentColumns)
	var commitment models.Commitment
	if err := r.db.GetContext(ctx, &commitment, query, participantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active commitment: %w", err)
	}
	return &commitment, nil
}

// Create stores a new commitment using the provided executor.
func (r *CommitmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, commitment *models.Commitment) error {
	if exec == nil {
		exec = r.db
	}
	if commitment.ID == "" {
		commitment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if commitment.CreatedAt.IsZero() {
		commitment.CreatedAt = now
	}
	commitment.UpdatedAt = now

	const query = `INSERT INTO commitments (id, participant_id, mentor_id, kind, start_date, end_date, total_weeks, missed_calls, max_missed_allowed, status, created_at, updated_at) VALUES (:id, :participant_id, :mentor_id, :kind, :start_date, :end_date, :total_weeks, :missed_calls, :max_missed_allowed, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, commitment); err != nil {
		return fmt.Errorf("create commitment: %w", err)
	}
	return nil
}

// UpdateStrikes persists the missed-call counter and status transition.
func (r *CommitmentRepository) UpdateStrikes(ctx context.Context, exec sqlx.ExtContext, id string, missedCalls int, status models.CommitmentStatus) error {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE commitments SET missed_calls = $2, status = $3, updated_at = $4 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, id, missedCalls, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update commitment strikes: %w", err)
	}
	return nil
}

// GraduateEndedBefore closes out ACTIVE commitments whose term ended on or
// before the cutoff and returns how many rows changed.
func (r *CommitmentRepository) GraduateEndedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `UPDATE commitments SET status = 'GRADUATED', updated_at = $2 WHERE status = 'ACTIVE' AND end_date <= $1`
	result, err := r.db.ExecContext(ctx, query, cutoff, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("graduate ended commitments: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("graduate ended commitments rows: %w", err)
	}
	return int(affected), nil
}

// UpdateStatus persists a status transition alone.
func (r *CommitmentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.CommitmentStatus) error {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE commitments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update commitment status: %w", err)
	}
	return nil
}
