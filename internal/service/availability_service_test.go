package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorhub/mentorhub-api/internal/models"
	"github.com/mentorhub/mentorhub-api/pkg/clock"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
)

type mockWindowRepo struct {
	window   *models.AvailabilityWindow
	replaced []models.AvailabilityWindow
	deleted  []string
}

func (m *mockWindowRepo) ListByMentor(ctx context.Context, mentorID string) ([]models.AvailabilityWindow, error) {
	return nil, nil
}

func (m *mockWindowRepo) FindByID(ctx context.Context, id string) (*models.AvailabilityWindow, error) {
	if m.window == nil {
		return nil, sql.ErrNoRows
	}
	return m.window, nil
}

func (m *mockWindowRepo) ReplaceSet(ctx context.Context, mentorID string, callType models.CallType, windows []models.AvailabilityWindow) error {
	m.replaced = windows
	return nil
}

func (m *mockWindowRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockExceptionRepo struct {
	exception *models.AvailabilityException
	created   *models.AvailabilityException
	deleted   []string
}

func (m *mockExceptionRepo) ListByMentor(ctx context.Context, mentorID string) ([]models.AvailabilityException, error) {
	return nil, nil
}

func (m *mockExceptionRepo) FindByID(ctx context.Context, id string) (*models.AvailabilityException, error) {
	if m.exception == nil {
		return nil, sql.ErrNoRows
	}
	return m.exception, nil
}

func (m *mockExceptionRepo) Create(ctx context.Context, exception *models.AvailabilityException) error {
	m.created = exception
	return nil
}

func (m *mockExceptionRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockGuardRepo struct {
	blocking []models.Booking
}

func (m *mockGuardRepo) ListConfirmedFutureInWindow(ctx context.Context, window models.AvailabilityWindow, after time.Time) ([]models.Booking, error) {
	return m.blocking, nil
}

var availabilityTestNow = time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)

func newAvailabilityService(windows *mockWindowRepo, exceptions *mockExceptionRepo, guard *mockGuardRepo) *AvailabilityService {
	return NewAvailabilityService(windows, exceptions, guard, nil, clock.Fixed(availabilityTestNow), nil, nil)
}

func TestAvailabilityServiceReplaceWindows(t *testing.T) {
	windows := &mockWindowRepo{}
	svc := newAvailabilityService(windows, &mockExceptionRepo{}, &mockGuardRepo{})

	result, err := svc.ReplaceWindows(context.Background(), "mentor-1", ReplaceWindowsRequest{
		CallType: models.CallTypeDiscipline,
		Windows: []WindowInput{
			{DayOfWeek: 1, Start: "05:00", End: "06:30"},
			{DayOfWeek: 4, Start: "06:00", End: "08:00"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, 300, result[0].StartMinute)
	assert.Equal(t, 390, result[0].EndMinute)
	assert.True(t, result[0].Active)
	assert.Equal(t, result, windows.replaced)
}

func TestAvailabilityServiceReplaceWindowsRejectsInvertedWindow(t *testing.T) {
	svc := newAvailabilityService(&mockWindowRepo{}, &mockExceptionRepo{}, &mockGuardRepo{})

	_, err := svc.ReplaceWindows(context.Background(), "mentor-1", ReplaceWindowsRequest{
		CallType: models.CallTypeMentorship,
		Windows:  []WindowInput{{DayOfWeek: 1, Start: "10:00", End: "09:00"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityServiceReplaceWindowsEnforcesDisciplineBand(t *testing.T) {
	svc := newAvailabilityService(&mockWindowRepo{}, &mockExceptionRepo{}, &mockGuardRepo{})

	_, err := svc.ReplaceWindows(context.Background(), "mentor-1", ReplaceWindowsRequest{
		CallType: models.CallTypeDiscipline,
		Windows:  []WindowInput{{DayOfWeek: 1, Start: "04:30", End: "06:00"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPolicyViolation.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityServiceDeleteWindowBlockedByBookings(t *testing.T) {
	windows := &mockWindowRepo{window: &models.AvailabilityWindow{ID: "win-1", MentorID: "mentor-1"}}
	guard := &mockGuardRepo{blocking: []models.Booking{{ID: "bkg-1"}, {ID: "bkg-2"}}}
	svc := newAvailabilityService(windows, &mockExceptionRepo{}, guard)

	err := svc.DeleteWindow(context.Background(), "win-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, windows.deleted)

	var deleteConflict *models.WindowDeleteConflict
	require.ErrorAs(t, err, &deleteConflict)
	assert.Len(t, deleteConflict.Bookings, 2)
}

func TestAvailabilityServiceDeleteWindowWhenUnused(t *testing.T) {
	windows := &mockWindowRepo{window: &models.AvailabilityWindow{ID: "win-1", MentorID: "mentor-1"}}
	svc := newAvailabilityService(windows, &mockExceptionRepo{}, &mockGuardRepo{})

	err := svc.DeleteWindow(context.Background(), "win-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"win-1"}, windows.deleted)
}

func TestAvailabilityServiceDeleteWindowNotFound(t *testing.T) {
	svc := newAvailabilityService(&mockWindowRepo{}, &mockExceptionRepo{}, &mockGuardRepo{})

	err := svc.DeleteWindow(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityServiceCreateException(t *testing.T) {
	exceptions := &mockExceptionRepo{}
	svc := newAvailabilityService(&mockWindowRepo{}, exceptions, &mockGuardRepo{})

	exception, err := svc.CreateException(context.Background(), "mentor-1", CreateExceptionRequest{
		StartDate: "2026-03-10",
		EndDate:   "2026-03-12",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), exception.StartDate)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), exception.EndDate)
	assert.Equal(t, exception, exceptions.created)
}

func TestAvailabilityServiceCreateExceptionRejectsInvertedRange(t *testing.T) {
	svc := newAvailabilityService(&mockWindowRepo{}, &mockExceptionRepo{}, &mockGuardRepo{})

	_, err := svc.CreateException(context.Background(), "mentor-1", CreateExceptionRequest{
		StartDate: "2026-03-12",
		EndDate:   "2026-03-10",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
