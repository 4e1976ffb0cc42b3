package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mentorhub/mentorhub-api/internal/models"
	"github.com/mentorhub/mentorhub-api/pkg/clock"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
)

// AvailabilityWindowRepository persists weekly windows.
type AvailabilityWindowRepository interface {
	ListByMentor(ctx context.Context, mentorID string) ([]models.AvailabilityWindow, error)
	FindByID(ctx context.Context, id string) (*models.AvailabilityWindow, error)
	ReplaceSet(ctx context.Context, mentorID string, callType models.CallType, windows []models.AvailabilityWindow) error
	Delete(ctx context.Context, id string) error
}

// AvailabilityExceptionRepository persists blackout periods.
type AvailabilityExceptionRepository interface {
	ListByMentor(ctx context.Context, mentorID string) ([]models.AvailabilityException, error)
	FindByID(ctx context.Context, id string) (*models.AvailabilityException, error)
	Create(ctx context.Context, exception *models.AvailabilityException) error
	Delete(ctx context.Context, id string) error
}

// AvailabilityGuardRepository surfaces bookings that block window removal.
type AvailabilityGuardRepository interface {
	ListConfirmedFutureInWindow(ctx context.Context, window models.AvailabilityWindow, after time.Time) ([]models.Booking, error)
}

// AvailabilityService manages weekly windows and blackout exceptions.
type AvailabilityService struct {
	windows    AvailabilityWindowRepository
	exceptions AvailabilityExceptionRepository
	guard      AvailabilityGuardRepository
	cache      *CacheService
	clock      clock.Clock
	validate   *validator.Validate
	logger     *zap.Logger
}

// WindowInput is one weekly window in a replace request.
type WindowInput struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	Start     string `json:"start" validate:"required"` // HH:MM
	End       string `json:"end" validate:"required"`   // HH:MM
	Active    *bool  `json:"active"`
}

// ReplaceWindowsRequest replaces the full window set for one call type.
type ReplaceWindowsRequest struct {
	CallType models.CallType `json:"call_type" validate:"required"`
	Windows  []WindowInput   `json:"windows" validate:"dive"`
}

// CreateExceptionRequest declares a blackout date range, bounds inclusive.
type CreateExceptionRequest struct {
	StartDate string `json:"start_date" validate:"required"` // YYYY-MM-DD
	EndDate   string `json:"end_date" validate:"required"`
}

// NewAvailabilityService constructs the availability service.
func NewAvailabilityService(
	windows AvailabilityWindowRepository,
	exceptions AvailabilityExceptionRepository,
	guard AvailabilityGuardRepository,
	cache *CacheService,
	clk clock.Clock,
	validate *validator.Validate,
	logger *zap.Logger,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System()
	}
	return &AvailabilityService{
		windows:    windows,
		exceptions: exceptions,
		guard:      guard,
		cache:      cache,
		clock:      clk,
		validate:   validate,
		logger:     logger,
	}
}

// ReplaceWindows swaps the full weekly set for a mentor and call type.
func (s *AvailabilityService) ReplaceWindows(ctx context.Context, mentorID string, req ReplaceWindowsRequest) ([]models.AvailabilityWindow, error) {
	if mentorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mentor id is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid windows request")
	}
	if !req.CallType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown call type %q", req.CallType))
	}

	windows := make([]models.AvailabilityWindow, 0, len(req.Windows))
	for i, input := range req.Windows {
		startMinute, err := models.ParseTimeOfDay(input.Start)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window %d start must be HH:MM", i))
		}
		endMinute, err := models.ParseTimeOfDay(input.End)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window %d end must be HH:MM", i))
		}
		if endMinute <= startMinute {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window %d must end after it starts", i))
		}
		if req.CallType == models.CallTypeDiscipline {
			if startMinute < models.DisciplineWindowFloor || endMinute > models.DisciplineWindowCeiling {
				return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "discipline windows must fall between 05:00 and 08:00")
			}
		}

		active := true
		if input.Active != nil {
			active = *input.Active
		}
		windows = append(windows, models.AvailabilityWindow{
			DayOfWeek:   input.DayOfWeek,
			StartMinute: startMinute,
			EndMinute:   endMinute,
			Active:      active,
		})
	}

	if err := s.windows.ReplaceSet(ctx, mentorID, req.CallType, windows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to replace windows")
	}

	s.cache.InvalidateMentorSlots(ctx, mentorID)
	s.logger.Info("availability replaced",
		zap.String("mentor_id", mentorID),
		zap.String("call_type", string(req.CallType)),
		zap.Int("windows", len(windows)))
	return windows, nil
}

// ListWindows returns every window for a mentor.
func (s *AvailabilityService) ListWindows(ctx context.Context, mentorID string) ([]models.AvailabilityWindow, error) {
	windows, err := s.windows.ListByMentor(ctx, mentorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to list windows")
	}
	return windows, nil
}

// DeleteWindow removes a weekly window unless confirmed future bookings still
// depend on it.
func (s *AvailabilityService) DeleteWindow(ctx context.Context, windowID string) error {
	window, err := s.windows.FindByID(ctx, windowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "availability window not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load window")
	}

	blocking, err := s.guard.ListConfirmedFutureInWindow(ctx, *window, s.clock.Now())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to check window usage")
	}
	if len(blocking) > 0 {
		wrapped := appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("window has %d confirmed future bookings", len(blocking)))
		wrapped.Err = &models.WindowDeleteConflict{WindowID: windowID, Bookings: blocking}
		return wrapped
	}

	if err := s.windows.Delete(ctx, windowID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to delete window")
	}
	s.cache.InvalidateMentorSlots(ctx, window.MentorID)
	return nil
}

// CreateException declares a blackout range for a mentor.
func (s *AvailabilityService) CreateException(ctx context.Context, mentorID string, req CreateExceptionRequest) (*models.AvailabilityException, error) {
	if mentorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mentor id is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exception request")
	}

	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
	}
	endDate, err := time.ParseInLocation("2006-01-02", req.EndDate, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD")
	}
	if endDate.Before(startDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date precedes start_date")
	}

	exception := &models.AvailabilityException{
		MentorID:  mentorID,
		StartDate: startDate,
		EndDate:   endDate,
	}
	if err := s.exceptions.Create(ctx, exception); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to create exception")
	}

	s.cache.InvalidateMentorSlots(ctx, mentorID)
	s.logger.Info("blackout created",
		zap.String("mentor_id", mentorID),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate))
	return exception, nil
}

// ListExceptions returns every blackout for a mentor.
func (s *AvailabilityService) ListExceptions(ctx context.Context, mentorID string) ([]models.AvailabilityException, error) {
	exceptions, err := s.exceptions.ListByMentor(ctx, mentorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to list exceptions")
	}
	return exceptions, nil
}

// DeleteException removes a blackout range.
func (s *AvailabilityService) DeleteException(ctx context.Context, exceptionID string) error {
	exception, err := s.exceptions.FindByID(ctx, exceptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "exception not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load exception")
	}

	if err := s.exceptions.Delete(ctx, exceptionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to delete exception")
	}
	s.cache.InvalidateMentorSlots(ctx, exception.MentorID)
	return nil
}
