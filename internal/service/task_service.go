package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mentorhub/mentorhub-api/internal/models"
	"github.com/mentorhub/mentorhub-api/pkg/clock"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
)

// TaskRepository persists tasks and mentor alerts.
type TaskRepository interface {
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Task, error)
	UpdatePostponement(ctx context.Context, exec sqlx.ExtContext, task *models.Task) error
	CreateAlert(ctx context.Context, exec sqlx.ExtContext, alert *models.MentorAlert) error
	ListAlertsByTask(ctx context.Context, taskID string) ([]models.MentorAlert, error)
}

// TaskService handles due-date postponement and threshold escalation.
type TaskService struct {
	db       *sqlx.DB
	tasks    TaskRepository
	notifier Notifier
	clock    clock.Clock
	validate *validator.Validate
	logger   *zap.Logger

	postponeThreshold int
}

// PostponeRequest moves a task's due date forward.
type PostponeRequest struct {
	TaskID   string    `json:"-" validate:"required"`
	NewDueAt time.Time `json:"new_due_at" validate:"required"`
}

// NewTaskService constructs the task service.
func NewTaskService(
	db *sqlx.DB,
	tasks TaskRepository,
	notifier Notifier,
	clk clock.Clock,
	postponeThreshold int,
	validate *validator.Validate,
	logger *zap.Logger,
) *TaskService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System()
	}
	if postponeThreshold <= 0 {
		postponeThreshold = 2
	}
	return &TaskService{
		db:                db,
		tasks:             tasks,
		notifier:          notifier,
		clock:             clk,
		validate:          validate,
		logger:            logger,
		postponeThreshold: postponeThreshold,
	}
}

// Postpone moves the due date forward, preserving the original due date on
// the first move. Crossing the postponement threshold raises a mentor alert
// exactly once.
func (s *TaskService) Postpone(ctx context.Context, req PostponeRequest) (*models.Task, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid postpone request")
	}

	newDue := req.NewDueAt.UTC()
	if newDue.Before(s.clock.Now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "new due date cannot be in the past")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to open transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	task, err := s.tasks.FindByIDForUpdate(ctx, tx, req.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load task")
	}
	if task.Status != models.TaskStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "only open tasks can be postponed")
	}
	if !newDue.After(task.DueAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "new due date must be later than the current one")
	}

	// Rows seeded with a postpone count but no original due date fall back
	// to the due date they are leaving now.
	if task.OriginalDueAt == nil {
		original := task.DueAt
		task.OriginalDueAt = &original
	}
	task.PostponeCount++
	task.DueAt = newDue

	if err := s.tasks.UpdatePostponement(ctx, tx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to update task")
	}

	escalated := task.PostponeCount == s.postponeThreshold+1
	if escalated {
		alert := &models.MentorAlert{
			MentorID: task.MentorID,
			TaskID:   task.ID,
			Summary: fmt.Sprintf("task %q postponed %d times; originally due %s, now due %s",
				task.Title, task.PostponeCount,
				task.OriginalDueAt.Format("2006-01-02"), task.DueAt.Format("2006-01-02")),
		}
		if err := s.tasks.CreateAlert(ctx, tx, alert); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to create alert")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to commit postponement")
	}

	if escalated {
		if s.notifier != nil {
			s.notifier.Notify(task.MentorID, EventTaskEscalated, map[string]interface{}{
				"task_id":        task.ID,
				"postpone_count": task.PostponeCount,
			})
		}
		s.logger.Warn("task escalated to mentor",
			zap.String("task_id", task.ID),
			zap.String("mentor_id", task.MentorID),
			zap.Int("postpone_count", task.PostponeCount))
	}
	return task, nil
}

// Alerts lists escalation alerts already raised for a task.
func (s *TaskService) Alerts(ctx context.Context, taskID string) ([]models.MentorAlert, error) {
	alerts, err := s.tasks.ListAlertsByTask(ctx, taskID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to list alerts")
	}
	return alerts, nil
}
