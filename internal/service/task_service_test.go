package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorhub/mentorhub-api/internal/models"
	"github.com/mentorhub/mentorhub-api/pkg/clock"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
)

type mockTaskRepo struct {
	task    *models.Task
	updated *models.Task
	alerts  []models.MentorAlert
}

func (m *mockTaskRepo) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Task, error) {
	if m.task == nil {
		return nil, sql.ErrNoRows
	}
	t := *m.task
	return &t, nil
}

func (m *mockTaskRepo) UpdatePostponement(ctx context.Context, exec sqlx.ExtContext, task *models.Task) error {
	t := *task
	m.updated = &t
	return nil
}

func (m *mockTaskRepo) CreateAlert(ctx context.Context, exec sqlx.ExtContext, alert *models.MentorAlert) error {
	m.alerts = append(m.alerts, *alert)
	return nil
}

func (m *mockTaskRepo) ListAlertsByTask(ctx context.Context, taskID string) ([]models.MentorAlert, error) {
	return m.alerts, nil
}

var taskTestNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func openTask(postponeCount int) *models.Task {
	task := &models.Task{
		ID:            "task-1",
		MentorID:      "mentor-1",
		ParticipantID: "part-1",
		Title:         "read chapter four",
		DueAt:         taskTestNow.AddDate(0, 0, 2),
		PostponeCount: postponeCount,
		Status:        models.TaskStatusOpen,
	}
	if postponeCount > 0 {
		original := taskTestNow.AddDate(0, 0, -3)
		task.OriginalDueAt = &original
	}
	return task
}

func newTaskService(db *sqlx.DB, tasks *mockTaskRepo, notifier Notifier) *TaskService {
	return NewTaskService(db, tasks, notifier, clock.Fixed(taskTestNow), 2, nil, nil)
}

func TestTaskServicePostponePreservesOriginalDue(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	tasks := &mockTaskRepo{task: openTask(0)}
	svc := newTaskService(db, tasks, nil)

	newDue := taskTestNow.AddDate(0, 0, 5)
	updated, err := svc.Postpone(context.Background(), PostponeRequest{TaskID: "task-1", NewDueAt: newDue})
	require.NoError(t, err)

	assert.Equal(t, 1, updated.PostponeCount)
	assert.Equal(t, newDue, updated.DueAt)
	require.NotNil(t, updated.OriginalDueAt)
	assert.Equal(t, taskTestNow.AddDate(0, 0, 2), *updated.OriginalDueAt)
	// No alert below the threshold.
	assert.Empty(t, tasks.alerts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskServicePostponeEscalatesOnceAtThresholdCrossing(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	// Third postponement crosses the threshold of two.
	tasks := &mockTaskRepo{task: openTask(2)}
	notifier := &recordingNotifier{}
	svc := newTaskService(db, tasks, notifier)

	updated, err := svc.Postpone(context.Background(), PostponeRequest{TaskID: "task-1", NewDueAt: taskTestNow.AddDate(0, 0, 7)})
	require.NoError(t, err)

	assert.Equal(t, 3, updated.PostponeCount)
	require.Len(t, tasks.alerts, 1)
	assert.Equal(t, "mentor-1", tasks.alerts[0].MentorID)
	assert.Contains(t, tasks.alerts[0].Summary, "postponed 3 times")
	assert.Equal(t, []string{EventTaskEscalated}, notifier.events)
}

func TestTaskServicePostponeDoesNotReEscalate(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	// Already past the crossing; the fourth move stays quiet.
	tasks := &mockTaskRepo{task: openTask(3)}
	notifier := &recordingNotifier{}
	svc := newTaskService(db, tasks, notifier)

	updated, err := svc.Postpone(context.Background(), PostponeRequest{TaskID: "task-1", NewDueAt: taskTestNow.AddDate(0, 0, 9)})
	require.NoError(t, err)

	assert.Equal(t, 4, updated.PostponeCount)
	assert.Empty(t, tasks.alerts)
	assert.Empty(t, notifier.events)
}

func TestTaskServicePostponeEscalatesWithMissingOriginalDue(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	// A row carrying a postpone count but no original due date must still
	// escalate; the date being moved away from stands in as the original.
	task := openTask(2)
	task.OriginalDueAt = nil
	tasks := &mockTaskRepo{task: task}
	notifier := &recordingNotifier{}
	svc := newTaskService(db, tasks, notifier)

	updated, err := svc.Postpone(context.Background(), PostponeRequest{TaskID: "task-1", NewDueAt: taskTestNow.AddDate(0, 0, 7)})
	require.NoError(t, err)

	assert.Equal(t, 3, updated.PostponeCount)
	require.NotNil(t, updated.OriginalDueAt)
	assert.Equal(t, taskTestNow.AddDate(0, 0, 2), *updated.OriginalDueAt)
	require.Len(t, tasks.alerts, 1)
	assert.Contains(t, tasks.alerts[0].Summary, taskTestNow.AddDate(0, 0, 2).Format("2006-01-02"))
	assert.Equal(t, []string{EventTaskEscalated}, notifier.events)
}

func TestTaskServicePostponeRejectsNonOpenTask(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	task := openTask(0)
	task.Status = models.TaskStatusResolved
	tasks := &mockTaskRepo{task: task}
	svc := newTaskService(db, tasks, nil)

	_, err := svc.Postpone(context.Background(), PostponeRequest{TaskID: "task-1", NewDueAt: taskTestNow.AddDate(0, 0, 5)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPolicyViolation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, tasks.updated)
}

func TestTaskServicePostponeRejectsEarlierDue(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	tasks := &mockTaskRepo{task: openTask(0)}
	svc := newTaskService(db, tasks, nil)

	// Later than now but earlier than the current due date.
	_, err := svc.Postpone(context.Background(), PostponeRequest{TaskID: "task-1", NewDueAt: taskTestNow.AddDate(0, 0, 1)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTaskServicePostponeRejectsPastDue(t *testing.T) {
	db, _, cleanup := newTxDB(t)
	defer cleanup()

	svc := newTaskService(db, &mockTaskRepo{task: openTask(0)}, nil)

	_, err := svc.Postpone(context.Background(), PostponeRequest{TaskID: "task-1", NewDueAt: taskTestNow.Add(-time.Hour)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTaskServicePostponeNotFound(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := newTaskService(db, &mockTaskRepo{}, nil)

	_, err := svc.Postpone(context.Background(), PostponeRequest{TaskID: "missing", NewDueAt: taskTestNow.AddDate(0, 0, 5)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
