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

type mockAttendanceBookingRepo struct {
	booking   *models.Booking
	marked    *models.AttendanceMark
	status    models.BookingStatus
	cancelled int
}

func (m *mockAttendanceBookingRepo) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Booking, error) {
	if m.booking == nil {
		return nil, sql.ErrNoRows
	}
	b := *m.booking
	return &b, nil
}

func (m *mockAttendanceBookingRepo) SetAttendance(ctx context.Context, exec sqlx.ExtContext, id string, mark models.AttendanceMark, status models.BookingStatus) error {
	m.marked = &mark
	m.status = status
	return nil
}

func (m *mockAttendanceBookingRepo) CancelPendingByCommitment(ctx context.Context, exec sqlx.ExtContext, commitmentID string, after time.Time) (int, error) {
	return m.cancelled, nil
}

type mockAttendanceCommitmentRepo struct {
	commitment *models.Commitment

	updatedMissed int
	updatedStatus models.CommitmentStatus
	updateCalled  bool
}

func (m *mockAttendanceCommitmentRepo) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Commitment, error) {
	if m.commitment == nil {
		return nil, sql.ErrNoRows
	}
	c := *m.commitment
	return &c, nil
}

func (m *mockAttendanceCommitmentRepo) UpdateStrikes(ctx context.Context, exec sqlx.ExtContext, id string, missedCalls int, status models.CommitmentStatus) error {
	m.updateCalled = true
	m.updatedMissed = missedCalls
	m.updatedStatus = status
	return nil
}

type recordingRewards struct {
	credits []int
}

func (r *recordingRewards) Credit(ctx context.Context, userID string, points int, reason string) {
	r.credits = append(r.credits, points)
}

// An hour after the session under test started.
var attendanceTestNow = time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

func pendingSession(commitmentID *string) *models.Booking {
	return &models.Booking{
		ID:              "bkg-1",
		MentorID:        "mentor-1",
		ParticipantID:   "part-1",
		CallType:        models.CallTypeDiscipline,
		StartAt:         time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC),
		DurationMinutes: 15,
		Status:          models.BookingStatusConfirmed,
		CommitmentID:    commitmentID,
	}
}

func newAttendanceService(db *sqlx.DB, bookings *mockAttendanceBookingRepo, commits *mockAttendanceCommitmentRepo, rewards RewardLedger, notifier Notifier) *AttendanceService {
	return NewAttendanceService(db, bookings, commits, rewards, notifier, nil, clock.Fixed(attendanceTestNow), nil, nil)
}

func present(v bool) *bool { return &v }

func TestAttendanceServiceMarkPresentCreditsReward(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	bookings := &mockAttendanceBookingRepo{booking: pendingSession(nil)}
	commits := &mockAttendanceCommitmentRepo{}
	rewards := &recordingRewards{}
	notifier := &recordingNotifier{}
	svc := newAttendanceService(db, bookings, commits, rewards, notifier)

	outcome, err := svc.Mark(context.Background(), MarkAttendanceRequest{BookingID: "bkg-1", Present: present(true)})
	require.NoError(t, err)

	require.NotNil(t, bookings.marked)
	assert.Equal(t, models.AttendancePresent, *bookings.marked)
	assert.Equal(t, models.BookingStatusCompleted, bookings.status)
	assert.False(t, outcome.Suspended)
	assert.Equal(t, []int{10}, rewards.credits)
	assert.Equal(t, []string{EventAttendanceRecorded}, notifier.events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceServiceMarkAbsentConsumesStrike(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	commitmentID := "cmt-1"
	bookings := &mockAttendanceBookingRepo{booking: pendingSession(&commitmentID)}
	commits := &mockAttendanceCommitmentRepo{commitment: &models.Commitment{
		ID:               "cmt-1",
		MissedCalls:      0,
		MaxMissedAllowed: 3,
		Status:           models.CommitmentStatusActive,
	}}
	rewards := &recordingRewards{}
	svc := newAttendanceService(db, bookings, commits, rewards, nil)

	outcome, err := svc.Mark(context.Background(), MarkAttendanceRequest{BookingID: "bkg-1", Present: present(false)})
	require.NoError(t, err)

	assert.True(t, commits.updateCalled)
	assert.Equal(t, 1, commits.updatedMissed)
	assert.Equal(t, models.CommitmentStatusActive, commits.updatedStatus)
	assert.False(t, outcome.Suspended)
	assert.Equal(t, 2, outcome.StrikesRemaining)
	// No reward for an absence.
	assert.Empty(t, rewards.credits)
}

func TestAttendanceServiceThirdAbsenceSuspendsAndCancels(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	commitmentID := "cmt-1"
	bookings := &mockAttendanceBookingRepo{booking: pendingSession(&commitmentID), cancelled: 21}
	commits := &mockAttendanceCommitmentRepo{commitment: &models.Commitment{
		ID:               "cmt-1",
		MissedCalls:      2,
		MaxMissedAllowed: 3,
		Status:           models.CommitmentStatusActive,
	}}
	notifier := &recordingNotifier{}
	svc := newAttendanceService(db, bookings, commits, nil, notifier)

	outcome, err := svc.Mark(context.Background(), MarkAttendanceRequest{BookingID: "bkg-1", Present: present(false)})
	require.NoError(t, err)

	assert.True(t, outcome.Suspended)
	assert.Equal(t, models.CommitmentStatusSuspended, outcome.CommitmentStatus)
	assert.Equal(t, 21, outcome.CancelledFuture)
	assert.Equal(t, 0, outcome.StrikesRemaining)
	assert.Equal(t, 3, commits.updatedMissed)
	assert.Equal(t, models.CommitmentStatusSuspended, commits.updatedStatus)
	// Attendance event plus a suspension notice to each party.
	assert.Equal(t, []string{EventAttendanceRecorded, EventCommitmentSuspended, EventCommitmentSuspended}, notifier.events)
}

func TestAttendanceServiceMarkRejectsDoubleRecording(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	mark := models.AttendancePresent
	booking := pendingSession(nil)
	booking.Attendance = &mark
	booking.Status = models.BookingStatusCompleted
	bookings := &mockAttendanceBookingRepo{booking: booking}
	svc := newAttendanceService(db, bookings, &mockAttendanceCommitmentRepo{}, nil, nil)

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{BookingID: "bkg-1", Present: present(false)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAttendanceRecorded.Code, appErrors.FromError(err).Code)
	assert.Nil(t, bookings.marked)
}

func TestAttendanceServiceMarkRejectsBeforeStart(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	booking := pendingSession(nil)
	booking.StartAt = attendanceTestNow.Add(time.Hour)
	bookings := &mockAttendanceBookingRepo{booking: booking}
	svc := newAttendanceService(db, bookings, &mockAttendanceCommitmentRepo{}, nil, nil)

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{BookingID: "bkg-1", Present: present(true)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPolicyViolation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkNotFound(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := newAttendanceService(db, &mockAttendanceBookingRepo{}, &mockAttendanceCommitmentRepo{}, nil, nil)

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{BookingID: "missing", Present: present(true)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
