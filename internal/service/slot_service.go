package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mentorhub/mentorhub-api/internal/models"
	"github.com/mentorhub/mentorhub-api/pkg/clock"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
)

// SlotAvailabilityRepository lists the weekly windows feeding slot resolution.
type SlotAvailabilityRepository interface {
	ListActiveByMentorAndType(ctx context.Context, mentorID string, callType models.CallType) ([]models.AvailabilityWindow, error)
}

// SlotExceptionRepository lists blackout periods intersecting a date range.
type SlotExceptionRepository interface {
	ListOverlapping(ctx context.Context, mentorID string, from, to time.Time) ([]models.AvailabilityException, error)
}

// SlotBookingRepository lists ledger entries that occupy candidate intervals.
type SlotBookingRepository interface {
	ListActiveInRange(ctx context.Context, mentorID string, from, to time.Time) ([]models.Booking, error)
}

// SlotService resolves the bookable start instants for a mentor, call type
// and date range. The read path is advisory; the reservation write path
// re-validates, so serving a slightly stale cached answer is safe.
type SlotService struct {
	availability SlotAvailabilityRepository
	exceptions   SlotExceptionRepository
	bookings     SlotBookingRepository
	cache        *CacheService
	metrics      *MetricsService
	clock        clock.Clock
	validate     *validator.Validate
	logger       *zap.Logger

	cacheTTL     time.Duration
	maxRangeDays int
}

// ResolveSlotsRequest describes one slot resolution query.
type ResolveSlotsRequest struct {
	MentorID string          `validate:"required"`
	CallType models.CallType `validate:"required"`
	From     time.Time       `validate:"required"`
	To       time.Time       `validate:"required"`
}

// NewSlotService constructs the slot resolution service.
func NewSlotService(
	availability SlotAvailabilityRepository,
	exceptions SlotExceptionRepository,
	bookings SlotBookingRepository,
	cache *CacheService,
	metrics *MetricsService,
	clk clock.Clock,
	cacheTTL time.Duration,
	maxRangeDays int,
	validate *validator.Validate,
	logger *zap.Logger,
) *SlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System()
	}
	if maxRangeDays <= 0 {
		maxRangeDays = 62
	}
	return &SlotService{
		availability: availability,
		exceptions:   exceptions,
		bookings:     bookings,
		cache:        cache,
		metrics:      metrics,
		clock:        clk,
		validate:     validate,
		logger:       logger,
		cacheTTL:     cacheTTL,
		maxRangeDays: maxRangeDays,
	}
}

// Resolve computes every bookable start instant in [From, To]. An empty
// result is not an error; Reason explains why nothing is bookable.
func (s *SlotService) Resolve(ctx context.Context, req ResolveSlotsRequest) (*models.SlotResolution, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot query")
	}
	if !req.CallType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown call type %q", req.CallType))
	}
	if req.To.Before(req.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end precedes range start")
	}
	if req.To.Sub(req.From) > time.Duration(s.maxRangeDays)*24*time.Hour {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("range exceeds %d days", s.maxRangeDays))
	}

	cacheKey := fmt.Sprintf("slots:%s:%s:%s:%s", req.MentorID, req.CallType, req.From.UTC().Format("2006-01-02"), req.To.UTC().Format("2006-01-02"))
	if s.cache.Enabled() {
		var cached models.SlotResolution
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			// The key ignores the time of day, so instants cached earlier in
			// the TTL window may have elapsed since.
			cached.Slots = pruneElapsed(cached.Slots, s.clock.Now())
			if len(cached.Slots) == 0 && cached.Reason == "" {
				cached.Reason = models.SlotReasonFullyBooked
			}
			return &cached, nil
		}
	}

	resolution, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, resolution, s.cacheTTL)
	}
	s.metrics.RecordSlotResolution()
	return resolution, nil
}

func (s *SlotService) resolve(ctx context.Context, req ResolveSlotsRequest) (*models.SlotResolution, error) {
	resolution := &models.SlotResolution{
		MentorID: req.MentorID,
		CallType: req.CallType,
		Slots:    []models.Slot{},
	}

	windows, err := s.availability.ListActiveByMentorAndType(ctx, req.MentorID, req.CallType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load availability")
	}
	if len(windows) == 0 {
		resolution.Reason = models.SlotReasonNoAvailability
		return resolution, nil
	}

	from := req.From.UTC()
	to := req.To.UTC()

	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	rangeEnd := lastDay.AddDate(0, 0, 1)

	exceptions, err := s.exceptions.ListOverlapping(ctx, req.MentorID, day, lastDay)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load exceptions")
	}
	bookings, err := s.bookings.ListActiveInRange(ctx, req.MentorID, day, rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load bookings")
	}

	byDay := make(map[int][]models.AvailabilityWindow, len(windows))
	for _, w := range windows {
		byDay[w.DayOfWeek] = append(byDay[w.DayOfWeek], w)
	}

	now := s.clock.Now()
	duration := time.Duration(req.CallType.SlotMinutes()) * time.Minute
	step := req.CallType.SlotMinutes()

	for !day.After(lastDay) {
		if blackedOut(exceptions, day) {
			day = day.AddDate(0, 0, 1)
			continue
		}
		for _, w := range byDay[int(day.Weekday())] {
			for minute := w.StartMinute; minute+step <= w.EndMinute; minute += step {
				start := day.Add(time.Duration(minute) * time.Minute)
				end := start.Add(duration)
				if start.Before(now) || start.Before(from) {
					continue
				}
				if occupied(bookings, start, end) {
					continue
				}
				resolution.Slots = append(resolution.Slots, models.Slot{
					StartAt: start,
					Label:   models.FormatMinuteOfDay(minute),
				})
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	if len(resolution.Slots) == 0 {
		resolution.Reason = models.SlotReasonFullyBooked
	}
	return resolution, nil
}

func pruneElapsed(slots []models.Slot, now time.Time) []models.Slot {
	kept := slots[:0]
	for _, slot := range slots {
		if !slot.StartAt.Before(now) {
			kept = append(kept, slot)
		}
	}
	return kept
}

func blackedOut(exceptions []models.AvailabilityException, day time.Time) bool {
	for _, e := range exceptions {
		if e.Covers(day) {
			return true
		}
	}
	return false
}

func occupied(bookings []models.Booking, start, end time.Time) bool {
	for _, b := range bookings {
		if !b.Status.Active() {
			continue
		}
		if models.Overlaps(start, end, b.StartAt, b.EndAt()) {
			return true
		}
	}
	return false
}
