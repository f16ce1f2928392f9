package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/timeutil"
	"github.com/noah-isme/tutor-booking-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
)

type bookingReaderStub struct {
	once      []models.Booking
	weekly    []models.Booking
	onceAfter []models.Booking
}

func (s *bookingReaderStub) ListActiveOnceBetween(ctx context.Context, teacherID string, from, to time.Time) ([]models.Booking, error) {
	return s.once, nil
}

func (s *bookingReaderStub) ListActiveWeeklyByDay(ctx context.Context, teacherID string, day timeutil.Weekday) ([]models.Booking, error) {
	return s.weekly, nil
}

func (s *bookingReaderStub) ListActiveOnceAfter(ctx context.Context, teacherID string, after time.Time) ([]models.Booking, error) {
	return s.onceAfter, nil
}

type profileStub struct {
	tz string
}

func (s profileStub) GetTimezone(ctx context.Context, userID string) (string, error) {
	return s.tz, nil
}

type slotCacheStub struct {
	entries map[string][]string
	hits    int
	sets    int
}

func (s *slotCacheStub) Get(ctx context.Context, teacherID, date string, durationMinutes int) ([]string, error) {
	if cached, ok := s.entries[date]; ok {
		s.hits++
		return cached, nil
	}
	return nil, appErrors.ErrCacheMiss
}

func (s *slotCacheStub) Set(ctx context.Context, teacherID, date string, durationMinutes int, slots []string, ttl time.Duration) error {
	if s.entries == nil {
		s.entries = map[string][]string{}
	}
	s.entries[date] = slots
	s.sets++
	return nil
}

// mondaySchedule is 09:00-12:00 on Mondays.
func mondaySchedule() *availabilityRepoStub {
	return &availabilityRepoStub{stored: &models.Availability{
		TeacherID: "t-1",
		Week:      models.WeekSchedule{timeutil.Monday: {{FromMinute: 540, ToMinute: 720}}},
	}}
}

// monday is 2025-09-01, a Monday.
var monday = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

func newTestSlotService(avail *availabilityRepoStub, bookings *bookingReaderStub, tz string, cache slotCache) *SlotService {
	cfg := config.BookingConfig{
		DefaultDurationMinutes: 60,
		DefaultTimezone:        "UTC",
		SlotCacheTTL:           time.Minute,
		MaxRangeDays:           28,
	}
	svc := NewSlotService(avail, bookings, profileStub{tz: tz}, cache, nil, cfg, nil)
	svc.now = func() time.Time { return time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestGenerateSlotsBasic(t *testing.T) {
	svc := newTestSlotService(mondaySchedule(), &bookingReaderStub{}, "UTC", nil)

	slots, err := svc.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, slots)
}

func TestGenerateSlotsSkipsBookedOnce(t *testing.T) {
	bookings := &bookingReaderStub{once: []models.Booking{{
		ID:         "b-1",
		Recurrence: models.RecurrenceOnce,
		Once: &models.OnceTiming{
			StartUTC: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
			EndUTC:   time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC),
		},
	}}}
	svc := newTestSlotService(mondaySchedule(), bookings, "UTC", nil)

	slots, err := svc.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00"}, slots)
}

func TestGenerateSlotsSkipsBookedWeekly(t *testing.T) {
	bookings := &bookingReaderStub{weekly: []models.Booking{{
		ID:         "b-1",
		Recurrence: models.RecurrenceWeekly,
		Weekly:     &models.WeeklyTiming{Weekday: timeutil.Monday, StartMinute: 600, EndMinute: 660},
	}}}
	svc := newTestSlotService(mondaySchedule(), bookings, "UTC", nil)

	slots, err := svc.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00"}, slots)
}

func TestGenerateSlotsDurationStep(t *testing.T) {
	svc := newTestSlotService(mondaySchedule(), &bookingReaderStub{}, "UTC", nil)

	slots, err := svc.GenerateSlots(context.Background(), "t-1", monday, 90, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:30"}, slots)
}

func TestGenerateSlotsPartialOverlapBlocks(t *testing.T) {
	// 10:30-11:30 straddles both the 10:00 and the 11:00 candidate.
	bookings := &bookingReaderStub{once: []models.Booking{{
		ID:         "b-1",
		Recurrence: models.RecurrenceOnce,
		Once: &models.OnceTiming{
			StartUTC: time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC),
			EndUTC:   time.Date(2025, 9, 1, 11, 30, 0, 0, time.UTC),
		},
	}}}
	svc := newTestSlotService(mondaySchedule(), bookings, "UTC", nil)

	slots, err := svc.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, slots)
}

func TestGenerateSlotsTouchingBookingDoesNotBlock(t *testing.T) {
	// A lesson ending exactly at 10:00 leaves the 10:00 slot free.
	bookings := &bookingReaderStub{once: []models.Booking{{
		ID:         "b-1",
		Recurrence: models.RecurrenceOnce,
		Once: &models.OnceTiming{
			StartUTC: time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC),
			EndUTC:   time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		},
	}}}
	svc := newTestSlotService(mondaySchedule(), bookings, "UTC", nil)

	slots, err := svc.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00"}, slots)
}

func TestGenerateSlotsNoAvailability(t *testing.T) {
	svc := newTestSlotService(&availabilityRepoStub{}, &bookingReaderStub{}, "UTC", nil)

	slots, err := svc.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateSlotsTodayCutoff(t *testing.T) {
	svc := newTestSlotService(mondaySchedule(), &bookingReaderStub{}, "UTC", nil)
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC) }

	slots, err := svc.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00"}, slots)

	all, err := svc.GenerateSlots(context.Background(), "t-1", monday, 60, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, all)
}

func TestGenerateSlotsCrossTimezoneBooking(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2025-09-01 00:00 UTC is 09:00 in Tokyo; the stored UTC booking must
	// block the teacher's local 09:00 slot.
	bookings := &bookingReaderStub{once: []models.Booking{{
		ID:         "b-1",
		Recurrence: models.RecurrenceOnce,
		Once: &models.OnceTiming{
			StartUTC: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			EndUTC:   time.Date(2025, 9, 1, 1, 0, 0, 0, time.UTC),
		},
	}}}
	avail := &availabilityRepoStub{stored: &models.Availability{
		TeacherID: "t-1",
		Week:      models.WeekSchedule{timeutil.Monday: {{FromMinute: 540, ToMinute: 660}}},
	}}
	svc := newTestSlotService(avail, bookings, "Asia/Tokyo", nil)

	slots, err := svc.GenerateSlots(context.Background(), "t-1", time.Date(2025, 9, 1, 0, 0, 0, 0, tokyo), 60, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, slots)
}

func TestGenerateSlotsUsesCacheForFutureDates(t *testing.T) {
	cache := &slotCacheStub{entries: map[string][]string{"2025-09-01": {"09:00"}}}
	svc := newTestSlotService(mondaySchedule(), &bookingReaderStub{}, "UTC", cache)

	slots, err := svc.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, slots)
	assert.Equal(t, 1, cache.hits)
	assert.Zero(t, cache.sets)
}

func TestGenerateSlotsFillsCacheOnMiss(t *testing.T) {
	cache := &slotCacheStub{}
	svc := newTestSlotService(mondaySchedule(), &bookingReaderStub{}, "UTC", cache)

	_, err := svc.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, cache.entries["2025-09-01"])
}

func TestGenerateSlotsNeverCachesToday(t *testing.T) {
	cache := &slotCacheStub{}
	svc := newTestSlotService(mondaySchedule(), &bookingReaderStub{}, "UTC", cache)
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) }

	_, err := svc.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	assert.Zero(t, cache.sets)
}

func TestTeacherLocationFallsBackOnInvalidStoredZone(t *testing.T) {
	svc := newTestSlotService(mondaySchedule(), &bookingReaderStub{}, "Mars/Olympus", nil)

	loc, tz, err := svc.TeacherLocation(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
	assert.Equal(t, "UTC", tz)
}

func TestOnceConflictsExcludesRescheduleTarget(t *testing.T) {
	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	bookings := &bookingReaderStub{once: []models.Booking{{
		ID:         "b-1",
		Recurrence: models.RecurrenceOnce,
		Once:       &models.OnceTiming{StartUTC: start, EndUTC: end},
	}}}
	svc := newTestSlotService(mondaySchedule(), bookings, "UTC", nil)

	conflict, err := svc.OnceConflicts(context.Background(), bookings, "t-1", start, end, time.UTC, "")
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = svc.OnceConflicts(context.Background(), bookings, "t-1", start, end, time.UTC, "b-1")
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestWeeklyConflictsWithFutureOnceBooking(t *testing.T) {
	// A one-time lesson on a future Monday 10:00-11:00 blocks a weekly
	// Monday 10:00 series.
	bookings := &bookingReaderStub{onceAfter: []models.Booking{{
		ID:         "b-1",
		Recurrence: models.RecurrenceOnce,
		Once: &models.OnceTiming{
			StartUTC: time.Date(2025, 9, 8, 10, 0, 0, 0, time.UTC),
			EndUTC:   time.Date(2025, 9, 8, 11, 0, 0, 0, time.UTC),
		},
	}}}
	svc := newTestSlotService(mondaySchedule(), bookings, "UTC", nil)

	conflict, err := svc.WeeklyConflicts(context.Background(), bookings, "t-1", timeutil.Monday, 600, 660, time.UTC, "")
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = svc.WeeklyConflicts(context.Background(), bookings, "t-1", timeutil.Monday, 660, 720, time.UTC, "")
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestGenerateSlotsRangeProjectsViewerTimes(t *testing.T) {
	svc := newTestSlotService(mondaySchedule(), &bookingReaderStub{}, "UTC", nil)

	days, err := svc.GenerateSlotsRange(context.Background(), "t-1", monday, 2, 60, "Asia/Jakarta")
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, "2025-09-01", days[0].Date)
	assert.Equal(t, timeutil.Monday, days[0].Weekday)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, days[0].Times)
	// Jakarta is UTC+7.
	assert.Equal(t, []string{"2025-09-01T16:00", "2025-09-01T17:00", "2025-09-01T18:00"}, days[0].ViewerTimes)

	assert.Equal(t, "2025-09-02", days[1].Date)
	assert.Empty(t, days[1].Times)
}

func TestGenerateSlotsRangeRejectsBadViewerZone(t *testing.T) {
	svc := newTestSlotService(mondaySchedule(), &bookingReaderStub{}, "UTC", nil)

	_, err := svc.GenerateSlotsRange(context.Background(), "t-1", monday, 1, 60, "Not/AZone")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrInvalidTimezone.Code, appErr.Code)
}
