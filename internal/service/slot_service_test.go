package service

import (
	"context"
	"encoding/json"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorhub/mentorhub-api/internal/models"
	"github.com/mentorhub/mentorhub-api/pkg/clock"
	appErrors "github.com/mentorhub/mentorhub-api/pkg/errors"
)

type mockSlotAvailabilityRepo struct {
	windows []models.AvailabilityWindow
}

func (m *mockSlotAvailabilityRepo) ListActiveByMentorAndType(ctx context.Context, mentorID string, callType models.CallType) ([]models.AvailabilityWindow, error) {
	return m.windows, nil
}

type mockSlotExceptionRepo struct {
	exceptions []models.AvailabilityException
}

func (m *mockSlotExceptionRepo) ListOverlapping(ctx context.Context, mentorID string, from, to time.Time) ([]models.AvailabilityException, error) {
	return m.exceptions, nil
}

type mockSlotBookingRepo struct {
	bookings []models.Booking
}

func (m *mockSlotBookingRepo) ListActiveInRange(ctx context.Context, mentorID string, from, to time.Time) ([]models.Booking, error) {
	return m.bookings, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

// Monday 2026-03-02, 04:00 UTC.
var slotTestNow = time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)

func newSlotService(avail *mockSlotAvailabilityRepo, exc *mockSlotExceptionRepo, book *mockSlotBookingRepo) *SlotService {
	return NewSlotService(avail, exc, book, nil, nil, clock.Fixed(slotTestNow), 0, 0, nil, nil)
}

func disciplineWindow(day, startMinute, endMinute int) models.AvailabilityWindow {
	return models.AvailabilityWindow{
		ID:          "win-1",
		MentorID:    "mentor-1",
		CallType:    models.CallTypeDiscipline,
		DayOfWeek:   day,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		Active:      true,
	}
}

func TestSlotServiceResolveNoAvailability(t *testing.T) {
	svc := newSlotService(&mockSlotAvailabilityRepo{}, &mockSlotExceptionRepo{}, &mockSlotBookingRepo{})

	resolution, err := svc.Resolve(context.Background(), ResolveSlotsRequest{
		MentorID: "mentor-1",
		CallType: models.CallTypeDiscipline,
		From:     slotTestNow,
		To:       slotTestNow.AddDate(0, 0, 6),
	})
	require.NoError(t, err)
	assert.Empty(t, resolution.Slots)
	assert.Equal(t, models.SlotReasonNoAvailability, resolution.Reason)
}

func TestSlotServiceResolveGeneratesDisciplineGrid(t *testing.T) {
	// Monday 06:00-07:00 yields four 15-minute slots.
	avail := &mockSlotAvailabilityRepo{windows: []models.AvailabilityWindow{disciplineWindow(1, 360, 420)}}
	svc := newSlotService(avail, &mockSlotExceptionRepo{}, &mockSlotBookingRepo{})

	resolution, err := svc.Resolve(context.Background(), ResolveSlotsRequest{
		MentorID: "mentor-1",
		CallType: models.CallTypeDiscipline,
		From:     slotTestNow,
		To:       slotTestNow,
	})
	require.NoError(t, err)
	require.Len(t, resolution.Slots, 4)
	assert.Equal(t, "06:00", resolution.Slots[0].Label)
	assert.Equal(t, "06:45", resolution.Slots[3].Label)
	assert.Empty(t, resolution.Reason)
}

func TestSlotServiceResolveSkipsPastInstants(t *testing.T) {
	avail := &mockSlotAvailabilityRepo{windows: []models.AvailabilityWindow{disciplineWindow(1, 360, 420)}}
	now := time.Date(2026, 3, 2, 6, 20, 0, 0, time.UTC)
	svc := NewSlotService(avail, &mockSlotExceptionRepo{}, &mockSlotBookingRepo{}, nil, nil, clock.Fixed(now), 0, 0, nil, nil)

	resolution, err := svc.Resolve(context.Background(), ResolveSlotsRequest{
		MentorID: "mentor-1",
		CallType: models.CallTypeDiscipline,
		From:     now,
		To:       now,
	})
	require.NoError(t, err)
	require.Len(t, resolution.Slots, 2)
	assert.Equal(t, "06:30", resolution.Slots[0].Label)
}

func TestSlotServiceResolveExcludesOccupiedAndKeepsAdjacent(t *testing.T) {
	avail := &mockSlotAvailabilityRepo{windows: []models.AvailabilityWindow{disciplineWindow(1, 360, 420)}}
	book := &mockSlotBookingRepo{bookings: []models.Booking{{
		MentorID:        "mentor-1",
		StartAt:         time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC),
		DurationMinutes: 15,
		Status:          models.BookingStatusConfirmed,
	}}}
	svc := newSlotService(avail, &mockSlotExceptionRepo{}, book)

	resolution, err := svc.Resolve(context.Background(), ResolveSlotsRequest{
		MentorID: "mentor-1",
		CallType: models.CallTypeDiscipline,
		From:     slotTestNow,
		To:       slotTestNow,
	})
	require.NoError(t, err)
	require.Len(t, resolution.Slots, 3)
	// The adjacent 06:15 slot survives because intervals are half-open.
	assert.Equal(t, "06:15", resolution.Slots[0].Label)
}

func TestSlotServiceResolveIgnoresCancelledBookings(t *testing.T) {
	avail := &mockSlotAvailabilityRepo{windows: []models.AvailabilityWindow{disciplineWindow(1, 360, 375)}}
	book := &mockSlotBookingRepo{bookings: []models.Booking{{
		MentorID:        "mentor-1",
		StartAt:         time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC),
		DurationMinutes: 15,
		Status:          models.BookingStatusCancelled,
	}}}
	svc := newSlotService(avail, &mockSlotExceptionRepo{}, book)

	resolution, err := svc.Resolve(context.Background(), ResolveSlotsRequest{
		MentorID: "mentor-1",
		CallType: models.CallTypeDiscipline,
		From:     slotTestNow,
		To:       slotTestNow,
	})
	require.NoError(t, err)
	require.Len(t, resolution.Slots, 1)
}

func TestSlotServiceResolveSuppressesBlackoutDays(t *testing.T) {
	avail := &mockSlotAvailabilityRepo{windows: []models.AvailabilityWindow{disciplineWindow(1, 360, 420)}}
	exc := &mockSlotExceptionRepo{exceptions: []models.AvailabilityException{{
		MentorID:  "mentor-1",
		StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}}}
	svc := newSlotService(avail, exc, &mockSlotBookingRepo{})

	// The blackout removes Monday the 2nd; Monday the 9th still resolves.
	resolution, err := svc.Resolve(context.Background(), ResolveSlotsRequest{
		MentorID: "mentor-1",
		CallType: models.CallTypeDiscipline,
		From:     slotTestNow,
		To:       slotTestNow.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	require.Len(t, resolution.Slots, 4)
	assert.Equal(t, time.Date(2026, 3, 9, 6, 0, 0, 0, time.UTC), resolution.Slots[0].StartAt)
}

func TestSlotServiceResolveFullyBooked(t *testing.T) {
	avail := &mockSlotAvailabilityRepo{windows: []models.AvailabilityWindow{disciplineWindow(1, 360, 375)}}
	book := &mockSlotBookingRepo{bookings: []models.Booking{{
		MentorID:        "mentor-1",
		StartAt:         time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC),
		DurationMinutes: 15,
		Status:          models.BookingStatusPending,
	}}}
	svc := newSlotService(avail, &mockSlotExceptionRepo{}, book)

	resolution, err := svc.Resolve(context.Background(), ResolveSlotsRequest{
		MentorID: "mentor-1",
		CallType: models.CallTypeDiscipline,
		From:     slotTestNow,
		To:       slotTestNow,
	})
	require.NoError(t, err)
	assert.Empty(t, resolution.Slots)
	assert.Equal(t, models.SlotReasonFullyBooked, resolution.Reason)
}

func TestSlotServiceResolveRejectsInvertedRange(t *testing.T) {
	svc := newSlotService(&mockSlotAvailabilityRepo{}, &mockSlotExceptionRepo{}, &mockSlotBookingRepo{})

	_, err := svc.Resolve(context.Background(), ResolveSlotsRequest{
		MentorID: "mentor-1",
		CallType: models.CallTypeDiscipline,
		From:     slotTestNow,
		To:       slotTestNow.AddDate(0, 0, -1),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSlotServiceCachedResolutionDropsElapsedInstants(t *testing.T) {
	avail := &mockSlotAvailabilityRepo{windows: []models.AvailabilityWindow{disciplineWindow(1, 360, 420)}}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	req := ResolveSlotsRequest{
		MentorID: "mentor-1",
		CallType: models.CallTypeDiscipline,
		From:     slotTestNow,
		To:       slotTestNow,
	}

	early := NewSlotService(avail, &mockSlotExceptionRepo{}, &mockSlotBookingRepo{}, cache, nil, clock.Fixed(slotTestNow), 0, 0, nil, nil)
	first, err := early.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Slots, 4)

	// A booking written after the entry was cached would hide 06:30 on a
	// fresh resolve, so its survival below proves the cache was hit.
	occupied := &mockSlotBookingRepo{bookings: []models.Booking{{
		MentorID:        "mentor-1",
		StartAt:         time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC),
		DurationMinutes: 15,
		Status:          models.BookingStatusConfirmed,
	}}}
	later := NewSlotService(avail, &mockSlotExceptionRepo{}, occupied, cache, nil, clock.Fixed(time.Date(2026, 3, 2, 6, 20, 0, 0, time.UTC)), 0, 0, nil, nil)
	resolution, err := later.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resolution.Slots, 2)
	assert.Equal(t, "06:30", resolution.Slots[0].Label)
	assert.Equal(t, "06:45", resolution.Slots[1].Label)

	// Once every cached instant has elapsed the day reads as fully booked.
	spent := NewSlotService(avail, &mockSlotExceptionRepo{}, occupied, cache, nil, clock.Fixed(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)), 0, 0, nil, nil)
	resolution, err = spent.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, resolution.Slots)
	assert.Equal(t, models.SlotReasonFullyBooked, resolution.Reason)
}

func TestSlotServiceResolveMentorshipUsesHourSlots(t *testing.T) {
	avail := &mockSlotAvailabilityRepo{windows: []models.AvailabilityWindow{{
		MentorID:    "mentor-1",
		CallType:    models.CallTypeMentorship,
		DayOfWeek:   1,
		StartMinute: 9 * 60,
		EndMinute:   11 * 60,
		Active:      true,
	}}}
	svc := newSlotService(avail, &mockSlotExceptionRepo{}, &mockSlotBookingRepo{})

	resolution, err := svc.Resolve(context.Background(), ResolveSlotsRequest{
		MentorID: "mentor-1",
		CallType: models.CallTypeMentorship,
		From:     slotTestNow,
		To:       slotTestNow,
	})
	require.NoError(t, err)
	require.Len(t, resolution.Slots, 2)
	assert.Equal(t, "09:00", resolution.Slots[0].Label)
	assert.Equal(t, "10:00", resolution.Slots[1].Label)
}
