package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mentorhub/mentorhub-api/internal/models"
)

// TaskRepository provides persistence for mentored tasks and alerts.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = "id, mentor_id, participant_id, title, due_at, original_due_at, postpone_count, status, created_at, updated_at"

// FindByID loads a task by id.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE id = $1", taskColumns)
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByIDForUpdate loads a task inside a transaction with a row lock.
func (r *TaskRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE id = $1 FOR UPDATE", taskColumns)
	var task models.Task
	if err := tx.GetContext(ctx, &task, query, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdatePostponement persists the new due date, preserved original due date
// and bumped counter.
func (r *TaskRepository) UpdatePostponement(ctx context.Context, exec sqlx.ExtContext, task *models.Task) error {
	if exec == nil {
		exec = r.db
	}
	task.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tasks SET due_at = :due_at, original_due_at = :original_due_at, postpone_count = :postpone_count, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, task); err != nil {
		return fmt.Errorf("update task postponement: %w", err)
	}
	return nil
}

// CreateAlert stores a mentor alert using the provided executor.
func (r *TaskRepository) CreateAlert(ctx context.Context, exec sqlx.ExtContext, alert *models.MentorAlert) error {
	if exec == nil {
		exec = r.db
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO mentor_alerts (id, mentor_id, task_id, summary, created_at) VALUES (:id, :mentor_id, :task_id, :summary, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, alert); err != nil {
		return fmt.Errorf("create mentor alert: %w", err)
	}
	return nil
}

// ListAlertsByTask returns alerts already raised for a task.
func (r *TaskRepository) ListAlertsByTask(ctx context.Context, taskID string) ([]models.MentorAlert, error) {
	const query = `SELECT id, mentor_id, task_id, summary, created_at FROM mentor_alerts WHERE task_id = $1 ORDER BY created_at ASC`
	var alerts []models.MentorAlert
	if err := r.db.SelectContext(ctx, &alerts, query, taskID); err != nil {
		return nil, fmt.Errorf("list mentor alerts: %w", err)
	}
	return alerts, nil
}
