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

// BookingLedgerRepository is the write-side contract for the unified ledger.
type BookingLedgerRepository interface {
	LockTimeline(ctx context.Context, tx *sqlx.Tx, ownerID string) error
	FindMentorOverlap(ctx context.Context, exec sqlx.ExtContext, mentorID string, start, end time.Time) (*models.BookingConflict, error)
	FindParticipantOverlap(ctx context.Context, exec sqlx.ExtContext, participantID string, start, end time.Time) (*models.BookingConflict, error)
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// BookingAvailabilityRepository exposes windows for the discipline band check.
type BookingAvailabilityRepository interface {
	ListActiveByMentorAndType(ctx context.Context, mentorID string, callType models.CallType) ([]models.AvailabilityWindow, error)
}

// Notifier delivers fire-and-forget domain events. Failures never affect the
// write path.
type Notifier interface {
	Notify(userID, eventType string, payload map[string]interface{})
}

// BookingService owns the reservation write path. All conflict checks run
// inside one transaction under advisory locks so that two concurrent
// reservations for the same timeline serialize.
type BookingService struct {
	db           *sqlx.DB
	bookings     BookingLedgerRepository
	availability BookingAvailabilityRepository
	cache        *CacheService
	metrics      *MetricsService
	notifier     Notifier
	clock        clock.Clock
	validate     *validator.Validate
	logger       *zap.Logger

	pendingTTL time.Duration
}

// ReserveRequest describes a one-off reservation attempt.
type ReserveRequest struct {
	MentorID        string          `json:"mentor_id" validate:"required"`
	ParticipantID   string          `json:"participant_id" validate:"required"`
	CallType        models.CallType `json:"call_type" validate:"required"`
	StartAt         time.Time       `json:"start_at" validate:"required"`
	DurationMinutes int             `json:"duration_minutes" validate:"omitempty,min=15,max=180"`
}

// NewBookingService constructs the booking service.
func NewBookingService(
	db *sqlx.DB,
	bookings BookingLedgerRepository,
	availability BookingAvailabilityRepository,
	cache *CacheService,
	metrics *MetricsService,
	notifier Notifier,
	clk clock.Clock,
	pendingTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System()
	}
	if pendingTTL <= 0 {
		pendingTTL = 48 * time.Hour
	}
	return &BookingService{
		db:           db,
		bookings:     bookings,
		availability: availability,
		cache:        cache,
		metrics:      metrics,
		notifier:     notifier,
		clock:        clk,
		validate:     validate,
		logger:       logger,
		pendingTTL:   pendingTTL,
	}
}

// Reserve atomically writes a one-off booking. Either the ledger accepts the
// interval on both timelines or nothing is written and a typed conflict is
// returned.
func (s *BookingService) Reserve(ctx context.Context, req ReserveRequest) (*models.Booking, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reservation request")
	}
	if !req.CallType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown call type %q", req.CallType))
	}
	if req.MentorID == req.ParticipantID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mentor and participant must differ")
	}

	duration := req.DurationMinutes
	if req.CallType == models.CallTypeDiscipline {
		// Discipline calls have a fixed length regardless of the request.
		duration = models.CallTypeDiscipline.SlotMinutes()
	} else if duration == 0 {
		duration = req.CallType.SlotMinutes()
	}

	start := req.StartAt.UTC()
	end := start.Add(time.Duration(duration) * time.Minute)
	if start.Before(s.clock.Now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reservations cannot start in the past")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to open transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Both timelines are locked in a fixed order so concurrent writers
	// touching the same pair cannot deadlock.
	first, second := req.MentorID, req.ParticipantID
	if second < first {
		first, second = second, first
	}
	if err := s.bookings.LockTimeline(ctx, tx, first); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to lock timeline")
	}
	if err := s.bookings.LockTimeline(ctx, tx, second); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to lock timeline")
	}

	// Checked under the locks so a concurrent window replace cannot slip a
	// reservation past the policy.
	if req.CallType == models.CallTypeDiscipline {
		if err := s.checkDisciplineBand(ctx, req.MentorID, start, duration); err != nil {
			return nil, err
		}
	}

	if conflict, err := s.bookings.FindMentorOverlap(ctx, tx, req.MentorID, start, end); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to check mentor timeline")
	} else if conflict != nil {
		s.metrics.RecordBookingConflict(appErrors.ErrMentorSlotTaken.Code)
		return nil, s.conflictError(appErrors.ErrMentorSlotTaken, *conflict)
	}

	if conflict, err := s.bookings.FindParticipantOverlap(ctx, tx, req.ParticipantID, start, end); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to check participant timeline")
	} else if conflict != nil {
		s.metrics.RecordBookingConflict(appErrors.ErrParticipantTimeConflict.Code)
		msg := appErrors.ErrParticipantTimeConflict.Message
		if conflict.MentorName != "" {
			msg = fmt.Sprintf("the participant already has a session with %s at this time", conflict.MentorName)
		}
		wrapped := appErrors.Clone(appErrors.ErrParticipantTimeConflict, msg)
		wrapped.Err = &models.BookingConflictError{Type: wrapped.Code, Message: msg, Conflict: *conflict}
		return nil, wrapped
	}

	status := models.BookingStatusPending
	if req.CallType == models.CallTypeDiscipline {
		status = models.BookingStatusConfirmed
	}

	booking := &models.Booking{
		MentorID:        req.MentorID,
		ParticipantID:   req.ParticipantID,
		CallType:        req.CallType,
		Source:          models.BookingSourceRequest,
		StartAt:         start,
		DurationMinutes: duration,
		Status:          status,
	}
	if err := s.bookings.Create(ctx, tx, booking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to write booking")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to commit reservation")
	}

	s.cache.InvalidateMentorSlots(ctx, req.MentorID)
	s.notifyReserved(booking)

	s.logger.Info("booking reserved",
		zap.String("booking_id", booking.ID),
		zap.String("mentor_id", booking.MentorID),
		zap.String("participant_id", booking.ParticipantID),
		zap.String("call_type", string(booking.CallType)),
		zap.Time("start_at", booking.StartAt))
	return booking, nil
}

// Get loads a booking by id.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load booking")
	}
	return booking, nil
}

// List returns bookings matching the filter with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to list bookings")
	}
	return bookings, total, nil
}

// ExpireOverdue transitions stale pending requests to EXPIRED and returns the
// number of rows swept. Called periodically by the background sweeper.
func (s *BookingService) ExpireOverdue(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.pendingTTL)
	expired, err := s.bookings.ExpirePendingBefore(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to expire pending bookings")
	}
	if expired > 0 {
		s.metrics.RecordExpired(expired)
		s.logger.Info("expired stale pending bookings", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, nil
}

// StartSweeper runs the TTL sweep on an interval until the context is
// cancelled.
func (s *BookingService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ExpireOverdue(ctx); err != nil {
					s.logger.Warn("pending sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

func (s *BookingService) checkDisciplineBand(ctx context.Context, mentorID string, start time.Time, duration int) error {
	minute := start.Hour()*60 + start.Minute()
	if minute < models.DisciplineWindowFloor || minute+duration > models.DisciplineWindowCeiling {
		return appErrors.Clone(appErrors.ErrPolicyViolation, "discipline calls must fall between 05:00 and 08:00")
	}

	windows, err := s.availability.ListActiveByMentorAndType(ctx, mentorID, models.CallTypeDiscipline)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load availability")
	}
	for _, w := range windows {
		if w.DayOfWeek == int(start.Weekday()) && w.Contains(minute, duration) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrPolicyViolation, "the mentor does not offer a discipline window at this time")
}

func (s *BookingService) conflictError(base *appErrors.Error, conflict models.BookingConflict) *appErrors.Error {
	wrapped := appErrors.Clone(base, "")
	wrapped.Err = &models.BookingConflictError{Type: base.Code, Message: base.Message, Conflict: conflict}
	return wrapped
}

func (s *BookingService) notifyReserved(booking *models.Booking) {
	if s.notifier == nil {
		return
	}
	payload := map[string]interface{}{
		"booking_id": booking.ID,
		"call_type":  string(booking.CallType),
		"start_at":   booking.StartAt,
		"status":     string(booking.Status),
	}
	s.notifier.Notify(booking.MentorID, EventBookingReserved, payload)
	s.notifier.Notify(booking.ParticipantID, EventBookingReserved, payload)
}
