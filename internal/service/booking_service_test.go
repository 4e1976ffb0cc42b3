package service

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorhub/mentorhub-api/internal/models"
	"github.com/mentorhub/mentorhub-api/pkg/clock"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
)

type mockLedgerRepo struct {
	mentorConflict      *models.BookingConflict
	participantConflict *models.BookingConflict
	created             []models.Booking
	locked              []string
	expired             int
}

func (m *mockLedgerRepo) LockTimeline(ctx context.Context, tx *sqlx.Tx, ownerID string) error {
	m.locked = append(m.locked, ownerID)
	return nil
}

func (m *mockLedgerRepo) FindMentorOverlap(ctx context.Context, exec sqlx.ExtContext, mentorID string, start, end time.Time) (*models.BookingConflict, error) {
	return m.mentorConflict, nil
}

func (m *mockLedgerRepo) FindParticipantOverlap(ctx context.Context, exec sqlx.ExtContext, participantID string, start, end time.Time) (*models.BookingConflict, error) {
	return m.participantConflict, nil
}

func (m *mockLedgerRepo) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = "bkg-new"
	}
	m.created = append(m.created, *booking)
	return nil
}

func (m *mockLedgerRepo) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	return nil, nil
}

func (m *mockLedgerRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	return nil, 0, nil
}

func (m *mockLedgerRepo) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return m.expired, nil
}

type mockBookingAvailabilityRepo struct {
	windows []models.AvailabilityWindow
}

func (m *mockBookingAvailabilityRepo) ListActiveByMentorAndType(ctx context.Context, mentorID string, callType models.CallType) ([]models.AvailabilityWindow, error) {
	return m.windows, nil
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(userID, eventType string, payload map[string]interface{}) {
	n.events = append(n.events, eventType)
}

func newTxDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

// Monday 2026-03-02, 04:00 UTC.
var bookingTestNow = time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)

func newBookingService(db *sqlx.DB, ledger *mockLedgerRepo, avail *mockBookingAvailabilityRepo, notifier Notifier) *BookingService {
	return NewBookingService(db, ledger, avail, nil, nil, notifier, clock.Fixed(bookingTestNow), 0, nil, nil)
}

func TestBookingServiceReserveMentorship(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	ledger := &mockLedgerRepo{}
	notifier := &recordingNotifier{}
	svc := newBookingService(db, ledger, &mockBookingAvailabilityRepo{}, notifier)

	booking, err := svc.Reserve(context.Background(), ReserveRequest{
		MentorID:      "mentor-1",
		ParticipantID: "part-1",
		CallType:      models.CallTypeMentorship,
		StartAt:       bookingTestNow.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, 60, booking.DurationMinutes)
	assert.Equal(t, models.BookingSourceRequest, booking.Source)
	// Both parties are locked in lexical order.
	assert.Equal(t, []string{"mentor-1", "part-1"}, ledger.locked)
	assert.Equal(t, []string{EventBookingReserved, EventBookingReserved}, notifier.events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceReserveMentorConflict(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	ledger := &mockLedgerRepo{mentorConflict: &models.BookingConflict{
		BookingID: "bkg-existing",
		MentorID:  "mentor-1",
		Dimension: "MENTOR",
	}}
	svc := newBookingService(db, ledger, &mockBookingAvailabilityRepo{}, nil)

	_, err := svc.Reserve(context.Background(), ReserveRequest{
		MentorID:      "mentor-1",
		ParticipantID: "part-1",
		CallType:      models.CallTypeMentorship,
		StartAt:       bookingTestNow.Add(24 * time.Hour),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrMentorSlotTaken.Code, appErr.Code)
	assert.Empty(t, ledger.created)

	var conflictErr *models.BookingConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "bkg-existing", conflictErr.Conflict.BookingID)
}

func TestBookingServiceReserveParticipantConflictNamesMentor(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	ledger := &mockLedgerRepo{participantConflict: &models.BookingConflict{
		BookingID:  "bkg-other",
		MentorID:   "mentor-2",
		MentorName: "Dana Cruz",
		Dimension:  "PARTICIPANT",
	}}
	svc := newBookingService(db, ledger, &mockBookingAvailabilityRepo{}, nil)

	_, err := svc.Reserve(context.Background(), ReserveRequest{
		MentorID:      "mentor-1",
		ParticipantID: "part-1",
		CallType:      models.CallTypeMentorship,
		StartAt:       bookingTestNow.Add(24 * time.Hour),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrParticipantTimeConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Dana Cruz")
}

func TestBookingServiceReserveRejectsPastStart(t *testing.T) {
	db, _, cleanup := newTxDB(t)
	defer cleanup()

	svc := newBookingService(db, &mockLedgerRepo{}, &mockBookingAvailabilityRepo{}, nil)

	_, err := svc.Reserve(context.Background(), ReserveRequest{
		MentorID:      "mentor-1",
		ParticipantID: "part-1",
		CallType:      models.CallTypeMentorship,
		StartAt:       bookingTestNow.Add(-time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceReserveDisciplineOutsideBand(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	ledger := &mockLedgerRepo{}
	svc := newBookingService(db, ledger, &mockBookingAvailabilityRepo{}, nil)

	// 07:50 + 15m spills past the 08:00 ceiling.
	_, err := svc.Reserve(context.Background(), ReserveRequest{
		MentorID:      "mentor-1",
		ParticipantID: "part-1",
		CallType:      models.CallTypeDiscipline,
		StartAt:       time.Date(2026, 3, 3, 7, 50, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPolicyViolation.Code, appErrors.FromError(err).Code)
	// The policy is evaluated under the timeline locks.
	assert.Equal(t, []string{"mentor-1", "part-1"}, ledger.locked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceReserveDisciplineNeedsMatchingWindow(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	// Window on Monday only; the request lands on Tuesday.
	avail := &mockBookingAvailabilityRepo{windows: []models.AvailabilityWindow{{
		MentorID:    "mentor-1",
		CallType:    models.CallTypeDiscipline,
		DayOfWeek:   1,
		StartMinute: 300,
		EndMinute:   480,
		Active:      true,
	}}}
	svc := newBookingService(db, &mockLedgerRepo{}, avail, nil)

	_, err := svc.Reserve(context.Background(), ReserveRequest{
		MentorID:      "mentor-1",
		ParticipantID: "part-1",
		CallType:      models.CallTypeDiscipline,
		StartAt:       time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPolicyViolation.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceReserveDisciplineConfirmedInsideWindow(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	avail := &mockBookingAvailabilityRepo{windows: []models.AvailabilityWindow{{
		MentorID:    "mentor-1",
		CallType:    models.CallTypeDiscipline,
		DayOfWeek:   2,
		StartMinute: 300,
		EndMinute:   480,
		Active:      true,
	}}}
	ledger := &mockLedgerRepo{}
	svc := newBookingService(db, ledger, avail, nil)

	booking, err := svc.Reserve(context.Background(), ReserveRequest{
		MentorID:      "mentor-1",
		ParticipantID: "part-1",
		CallType:      models.CallTypeDiscipline,
		StartAt:       time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC),
		// Ignored for discipline calls.
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, 15, booking.DurationMinutes)
}

func TestBookingServiceExpireOverdue(t *testing.T) {
	db, _, cleanup := newTxDB(t)
	defer cleanup()

	ledger := &mockLedgerRepo{expired: 3}
	svc := newBookingService(db, ledger, &mockBookingAvailabilityRepo{}, nil)

	expired, err := svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, expired)
}
