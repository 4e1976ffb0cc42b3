package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mentorhub/mentorhub-api/internal/models"
	"github.com/mentorhub/mentorhub-api/pkg/clock"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
)

// AttendanceBookingRepository is the ledger slice the attendance path needs.
type AttendanceBookingRepository interface {
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Booking, error)
	SetAttendance(ctx context.Context, exec sqlx.ExtContext, id string, mark models.AttendanceMark, status models.BookingStatus) error
	CancelPendingByCommitment(ctx context.Context, exec sqlx.ExtContext, commitmentID string, after time.Time) (int, error)
}

// AttendanceCommitmentRepository mutates strike counters under row locks.
type AttendanceCommitmentRepository interface {
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Commitment, error)
	UpdateStrikes(ctx context.Context, exec sqlx.ExtContext, id string, missedCalls int, status models.CommitmentStatus) error
}

// AttendanceService applies the mentor's per-session decision and the strike
// policy. Attendance is one-way: once recorded it never changes.
type AttendanceService struct {
	db       *sqlx.DB
	bookings AttendanceBookingRepository
	commits  AttendanceCommitmentRepository
	rewards  RewardLedger
	notifier Notifier
	metrics  *MetricsService
	clock    clock.Clock
	validate *validator.Validate
	logger   *zap.Logger

	presentPoints int
}

// MarkAttendanceRequest records the mentor's decision for one session.
type MarkAttendanceRequest struct {
	BookingID string `json:"-" validate:"required"`
	Present   *bool  `json:"present" validate:"required"`
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(
	db *sqlx.DB,
	bookings AttendanceBookingRepository,
	commits AttendanceCommitmentRepository,
	rewards RewardLedger,
	notifier Notifier,
	metrics *MetricsService,
	clk clock.Clock,
	validate *validator.Validate,
	logger *zap.Logger,
) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System()
	}
	return &AttendanceService{
		db:            db,
		bookings:      bookings,
		commits:       commits,
		rewards:       rewards,
		notifier:      notifier,
		metrics:       metrics,
		clock:         clk,
		validate:      validate,
		logger:        logger,
		presentPoints: 10,
	}
}

// Mark records attendance for a session. An absence on a commitment session
// consumes a strike; the strike that exhausts the allowance suspends the
// commitment and cancels every remaining future session in the same
// transaction.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.AttendanceOutcome, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance request")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to open transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	booking, err := s.bookings.FindByIDForUpdate(ctx, tx, req.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load booking")
	}

	if booking.Attendance != nil {
		return nil, appErrors.Clone(appErrors.ErrAttendanceRecorded, "")
	}
	if !booking.Status.Active() {
		return nil, appErrors.Clone(appErrors.ErrAttendanceRecorded, "session is not awaiting attendance")
	}
	if s.clock.Now().Before(booking.StartAt) {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "attendance cannot be recorded before the session starts")
	}

	mark := models.AttendanceAbsent
	if *req.Present {
		mark = models.AttendancePresent
	}

	if err := s.bookings.SetAttendance(ctx, tx, booking.ID, mark, models.BookingStatusCompleted); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to record attendance")
	}
	booking.Attendance = &mark
	booking.Status = models.BookingStatusCompleted

	outcome := &models.AttendanceOutcome{Booking: *booking}

	var commitment *models.Commitment
	if mark == models.AttendanceAbsent && booking.CommitmentID != nil {
		commitment, err = s.commits.FindByIDForUpdate(ctx, tx, *booking.CommitmentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load commitment")
		}

		commitment.MissedCalls++
		if commitment.MissedCalls >= commitment.MaxMissedAllowed {
			commitment.Status = models.CommitmentStatusSuspended
			cancelled, err := s.bookings.CancelPendingByCommitment(ctx, tx, commitment.ID, s.clock.Now())
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to cancel future sessions")
			}
			outcome.Suspended = true
			outcome.CancelledFuture = cancelled
		}
		if err := s.commits.UpdateStrikes(ctx, tx, commitment.ID, commitment.MissedCalls, commitment.Status); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to update strikes")
		}
		outcome.CommitmentStatus = commitment.Status
		outcome.StrikesRemaining = commitment.StrikesRemaining()
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to commit attendance")
	}

	s.afterCommit(ctx, booking, mark, outcome)
	return outcome, nil
}

func (s *AttendanceService) afterCommit(ctx context.Context, booking *models.Booking, mark models.AttendanceMark, outcome *models.AttendanceOutcome) {
	if mark == models.AttendancePresent && s.rewards != nil {
		s.rewards.Credit(ctx, booking.ParticipantID, s.presentPoints, "session attended")
	}

	if s.notifier != nil {
		s.notifier.Notify(booking.ParticipantID, EventAttendanceRecorded, map[string]interface{}{
			"booking_id": booking.ID,
			"attendance": string(mark),
		})
		if outcome.Suspended {
			payload := map[string]interface{}{
				"commitment_id":      *booking.CommitmentID,
				"cancelled_sessions": outcome.CancelledFuture,
			}
			s.notifier.Notify(booking.ParticipantID, EventCommitmentSuspended, payload)
			s.notifier.Notify(booking.MentorID, EventCommitmentSuspended, payload)
		}
	}

	if outcome.Suspended {
		s.metrics.RecordSuspension()
		s.logger.Warn("commitment suspended",
			zap.String("commitment_id", *booking.CommitmentID),
			zap.String("participant_id", booking.ParticipantID),
			zap.Int("cancelled_sessions", outcome.CancelledFuture))
	}
}
