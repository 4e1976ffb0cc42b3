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

// CommitmentRepository is the persistence contract for recurring commitments.
type CommitmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Commitment, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Commitment, error)
	FindActiveByParticipant(ctx context.Context, participantID string) (*models.Commitment, error)
	Create(ctx context.Context, exec sqlx.ExtContext, commitment *models.Commitment) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.CommitmentStatus) error
	GraduateEndedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// CommitmentBookingRepository is the slice of the ledger the generator needs.
type CommitmentBookingRepository interface {
	LockTimeline(ctx context.Context, tx *sqlx.Tx, ownerID string) error
	FindMentorOverlap(ctx context.Context, exec sqlx.ExtContext, mentorID string, start, end time.Time) (*models.BookingConflict, error)
	FindParticipantOverlap(ctx context.Context, exec sqlx.ExtContext, participantID string, start, end time.Time) (*models.BookingConflict, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, bookings []models.Booking) error
	CancelPendingByCommitment(ctx context.Context, exec sqlx.ExtContext, commitmentID string, after time.Time) (int, error)
	ListByCommitment(ctx context.Context, commitmentID string) ([]models.Booking, error)
}

// CommitmentService generates multi-week schedules as single atomic batches:
// either every session lands on both timelines or the whole enrollment is
// rejected with the first conflict found.
type CommitmentService struct {
	db       *sqlx.DB
	commits  CommitmentRepository
	bookings CommitmentBookingRepository
	cache    *CacheService
	notifier Notifier
	clock    clock.Clock
	validate *validator.Validate
	logger   *zap.Logger

	maxMissedAllowed       int
	disciplineDurationDays int
}

// EnrollProgramRequest starts a fixed-length mentorship program.
type EnrollProgramRequest struct {
	ParticipantID string            `json:"participant_id" validate:"required"`
	MentorID      string            `json:"mentor_id" validate:"required"`
	Slot1         models.WeeklySlot `json:"slot1" validate:"required"`
	Slot2         models.WeeklySlot `json:"slot2" validate:"required"`
	TotalWeeks    int               `json:"total_weeks" validate:"required,min=1,max=52"`
}

// SubscribeDisciplineRequest starts a 120-day discipline subscription.
type SubscribeDisciplineRequest struct {
	ParticipantID string            `json:"participant_id" validate:"required"`
	MentorID      string            `json:"mentor_id" validate:"required"`
	Slot1         models.WeeklySlot `json:"slot1" validate:"required"`
	Slot2         models.WeeklySlot `json:"slot2" validate:"required"`
}

// NewCommitmentService constructs the commitment service.
func NewCommitmentService(
	db *sqlx.DB,
	commits CommitmentRepository,
	bookings CommitmentBookingRepository,
	cache *CacheService,
	notifier Notifier,
	clk clock.Clock,
	maxMissedAllowed int,
	disciplineDurationDays int,
	validate *validator.Validate,
	logger *zap.Logger,
) *CommitmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System()
	}
	if maxMissedAllowed <= 0 {
		maxMissedAllowed = 3
	}
	if disciplineDurationDays <= 0 {
		disciplineDurationDays = 120
	}
	return &CommitmentService{
		db:                     db,
		commits:                commits,
		bookings:               bookings,
		cache:                  cache,
		notifier:               notifier,
		clock:                  clk,
		validate:               validate,
		logger:                 logger,
		maxMissedAllowed:       maxMissedAllowed,
		disciplineDurationDays: disciplineDurationDays,
	}
}

// EnrollProgram creates a program commitment and its full session batch.
func (s *CommitmentService) EnrollProgram(ctx context.Context, req EnrollProgramRequest) (*models.CommitmentSchedule, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment request")
	}
	return s.enroll(ctx, enrollment{
		participantID: req.ParticipantID,
		mentorID:      req.MentorID,
		kind:          models.CommitmentKindProgram,
		source:        models.BookingSourceProgram,
		slot1:         req.Slot1,
		slot2:         req.Slot2,
		totalWeeks:    req.TotalWeeks,
		termDays:      req.TotalWeeks * 7,
	})
}

// SubscribeDiscipline creates a discipline commitment spanning the fixed term.
func (s *CommitmentService) SubscribeDiscipline(ctx context.Context, req SubscribeDisciplineRequest) (*models.CommitmentSchedule, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subscription request")
	}
	weeks := s.disciplineDurationDays / 7
	return s.enroll(ctx, enrollment{
		participantID: req.ParticipantID,
		mentorID:      req.MentorID,
		kind:          models.CommitmentKindDiscipline,
		source:        models.BookingSourceDiscipline,
		slot1:         req.Slot1,
		slot2:         req.Slot2,
		totalWeeks:    weeks,
		termDays:      s.disciplineDurationDays,
	})
}

// Get loads a commitment with its generated sessions.
func (s *CommitmentService) Get(ctx context.Context, id string) (*models.CommitmentSchedule, error) {
	commitment, err := s.commits.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "commitment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load commitment")
	}

	sessions, err := s.bookings.ListByCommitment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load sessions")
	}

	schedule := &models.CommitmentSchedule{Commitment: *commitment, Sessions: len(sessions)}
	now := s.clock.Now()
	for i := range sessions {
		if sessions[i].Status.Active() && !sessions[i].StartAt.Before(now) {
			schedule.NextSession = &sessions[i]
			break
		}
	}
	return schedule, nil
}

// Withdraw closes a commitment at the participant's request and cancels every
// remaining pending session. When requesterID is non-empty it must match the
// commitment's participant.
func (s *CommitmentService) Withdraw(ctx context.Context, id, requesterID string) (*models.WithdrawalOutcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to open transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	commitment, err := s.commits.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "commitment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load commitment")
	}
	if requesterID != "" && commitment.ParticipantID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the enrolled participant can withdraw")
	}
	if commitment.Status != models.CommitmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "only active commitments can be withdrawn")
	}

	cancelled, err := s.bookings.CancelPendingByCommitment(ctx, tx, commitment.ID, s.clock.Now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to cancel remaining sessions")
	}
	commitment.Status = models.CommitmentStatusDropped
	if err := s.commits.UpdateStatus(ctx, tx, commitment.ID, models.CommitmentStatusDropped); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to update commitment")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to commit withdrawal")
	}

	s.cache.InvalidateMentorSlots(ctx, commitment.MentorID)
	if s.notifier != nil {
		payload := map[string]interface{}{
			"commitment_id":      commitment.ID,
			"cancelled_sessions": cancelled,
		}
		s.notifier.Notify(commitment.ParticipantID, EventCommitmentWithdrawn, payload)
		s.notifier.Notify(commitment.MentorID, EventCommitmentWithdrawn, payload)
	}

	s.logger.Info("commitment withdrawn",
		zap.String("commitment_id", commitment.ID),
		zap.String("participant_id", commitment.ParticipantID),
		zap.Int("cancelled_sessions", cancelled))
	return &models.WithdrawalOutcome{Commitment: *commitment, CancelledSessions: cancelled}, nil
}

// GraduateEnded transitions ACTIVE commitments whose term has ended to
// GRADUATED and returns how many rows were closed. Called periodically by the
// background sweeper.
func (s *CommitmentService) GraduateEnded(ctx context.Context) (int, error) {
	graduated, err := s.commits.GraduateEndedBefore(ctx, s.clock.Now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to graduate ended commitments")
	}
	if graduated > 0 {
		s.logger.Info("graduated ended commitments", zap.Int("count", graduated))
	}
	return graduated, nil
}

// StartSweeper runs the graduation sweep on an interval until the context is
// cancelled.
func (s *CommitmentService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.GraduateEnded(ctx); err != nil {
					s.logger.Warn("graduation sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Sessions lists every generated session under a commitment.
func (s *CommitmentService) Sessions(ctx context.Context, id string) ([]models.Booking, error) {
	if _, err := s.commits.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "commitment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load commitment")
	}
	sessions, err := s.bookings.ListByCommitment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load sessions")
	}
	return sessions, nil
}

type enrollment struct {
	participantID string
	mentorID      string
	kind          models.CommitmentKind
	source        models.BookingSource
	slot1         models.WeeklySlot
	slot2         models.WeeklySlot
	totalWeeks    int
	termDays      int
}

func (s *CommitmentService) enroll(ctx context.Context, e enrollment) (*models.CommitmentSchedule, error) {
	if e.participantID == e.mentorID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mentor and participant must differ")
	}
	if e.slot1.DayOfWeek == e.slot2.DayOfWeek {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekly slots must fall on different days")
	}
	minute1, err := models.ParseTimeOfDay(e.slot1.TimeOfDay)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot1 time must be HH:MM")
	}
	minute2, err := models.ParseTimeOfDay(e.slot2.TimeOfDay)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot2 time must be HH:MM")
	}

	duration := models.CallTypeDiscipline.SlotMinutes()
	if minute1 < models.DisciplineWindowFloor || minute1+duration > models.DisciplineWindowCeiling {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "sessions must fall between 05:00 and 08:00")
	}
	if minute2 < models.DisciplineWindowFloor || minute2+duration > models.DisciplineWindowCeiling {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "sessions must fall between 05:00 and 08:00")
	}

	now := s.clock.Now()

	active, err := s.commits.FindActiveByParticipant(ctx, e.participantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to check enrollment")
	}
	if active != nil {
		if active.EndDate.After(now) {
			return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "participant already has an active commitment")
		}
		// The previous term ran out but the sweep has not caught it yet;
		// graduate it here instead of blocking re-enrollment.
		if err := s.commits.UpdateStatus(ctx, nil, active.ID, models.CommitmentStatusGraduated); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to graduate ended commitment")
		}
	}
	startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endDate := startDate.AddDate(0, 0, e.termDays)

	instants := s.generate(startDate, e.slot1.DayOfWeek, minute1, e.totalWeeks)
	instants = append(instants, s.generate(startDate, e.slot2.DayOfWeek, minute2, e.totalWeeks)...)

	seen := make(map[int64]struct{}, len(instants))
	for _, inst := range instants {
		key := inst.at.Unix()
		if _, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrDuplicateBatchInstant, "")
		}
		seen[key] = struct{}{}
	}

	commitment := &models.Commitment{
		ParticipantID:    e.participantID,
		MentorID:         e.mentorID,
		Kind:             e.kind,
		StartDate:        startDate,
		EndDate:          endDate,
		TotalWeeks:       e.totalWeeks,
		MaxMissedAllowed: s.maxMissedAllowed,
		Status:           models.CommitmentStatusActive,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to open transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	first, second := e.mentorID, e.participantID
	if second < first {
		first, second = second, first
	}
	if err := s.bookings.LockTimeline(ctx, tx, first); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to lock timeline")
	}
	if err := s.bookings.LockTimeline(ctx, tx, second); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to lock timeline")
	}

	// Every generated instant is rechecked against the live ledger inside
	// the same transaction as the batch insert.
	sessions := make([]models.Booking, 0, len(instants))
	for _, inst := range instants {
		start := inst.at
		end := start.Add(time.Duration(duration) * time.Minute)

		if conflict, err := s.bookings.FindMentorOverlap(ctx, tx, e.mentorID, start, end); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to check mentor timeline")
		} else if conflict != nil {
			return nil, s.batchConflict(appErrors.ErrMentorSlotTaken, *conflict, inst.week)
		}
		if conflict, err := s.bookings.FindParticipantOverlap(ctx, tx, e.participantID, start, end); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to check participant timeline")
		} else if conflict != nil {
			return nil, s.batchConflict(appErrors.ErrParticipantTimeConflict, *conflict, inst.week)
		}

		week := inst.week
		sessions = append(sessions, models.Booking{
			MentorID:        e.mentorID,
			ParticipantID:   e.participantID,
			CallType:        models.CallTypeDiscipline,
			Source:          e.source,
			StartAt:         start,
			DurationMinutes: duration,
			Status:          models.BookingStatusPending,
			WeekNumber:      &week,
		})
	}

	if err := s.commits.Create(ctx, tx, commitment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to write commitment")
	}
	for i := range sessions {
		sessions[i].CommitmentID = &commitment.ID
	}
	if err := s.bookings.BulkCreateWithTx(ctx, tx, sessions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to write sessions")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to commit enrollment")
	}

	s.cache.InvalidateMentorSlots(ctx, e.mentorID)
	if s.notifier != nil {
		s.notifier.Notify(e.participantID, EventCommitmentEnrolled, map[string]interface{}{
			"commitment_id": commitment.ID,
			"kind":          string(e.kind),
			"sessions":      len(sessions),
		})
	}

	schedule := &models.CommitmentSchedule{Commitment: *commitment, Sessions: len(sessions)}
	for i := range sessions {
		if schedule.NextSession == nil || sessions[i].StartAt.Before(schedule.NextSession.StartAt) {
			if !sessions[i].StartAt.Before(now) {
				session := sessions[i]
				schedule.NextSession = &session
			}
		}
	}

	s.logger.Info("commitment enrolled",
		zap.String("commitment_id", commitment.ID),
		zap.String("kind", string(e.kind)),
		zap.String("participant_id", e.participantID),
		zap.String("mentor_id", e.mentorID),
		zap.Int("sessions", len(sessions)))
	return schedule, nil
}

type sessionInstant struct {
	at   time.Time
	week int
}

// generate produces one instant per week anchored on the first occurrence of
// the weekday on or after the start date. Week numbers are 1-based.
func (s *CommitmentService) generate(startDate time.Time, dayOfWeek, minuteOfDay, weeks int) []sessionInstant {
	offset := (dayOfWeek - int(startDate.Weekday()) + 7) % 7
	anchor := startDate.AddDate(0, 0, offset)

	instants := make([]sessionInstant, 0, weeks)
	for week := 0; week < weeks; week++ {
		day := anchor.AddDate(0, 0, week*7)
		instants = append(instants, sessionInstant{
			at:   day.Add(time.Duration(minuteOfDay) * time.Minute),
			week: week + 1,
		})
	}
	return instants
}

func (s *CommitmentService) batchConflict(base *appErrors.Error, conflict models.BookingConflict, week int) *appErrors.Error {
	msg := fmt.Sprintf("%s (week %d)", base.Message, week)
	wrapped := appErrors.Clone(base, msg)
	wrapped.Err = &models.BookingConflictError{Type: base.Code, Message: msg, Conflict: conflict}
	return wrapped
}
