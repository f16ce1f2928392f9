package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/repository"
	"github.com/noah-isme/tutor-booking-api/internal/timeutil"
	"github.com/noah-isme/tutor-booking-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
)

// bookingStoreFake keeps bookings in memory and reproduces the repository's
// filtering semantics so the shared conflict logic sees realistic reads.
type bookingStoreFake struct {
	bookings  map[string]*models.Booking
	deleted   []string
	lockCalls int
	// injectOnCreate simulates a row another writer slipped in between our
	// insert and the post-insert re-check.
	injectOnCreate *models.Booking
}

func newBookingStoreFake(existing ...*models.Booking) *bookingStoreFake {
	f := &bookingStoreFake{bookings: map[string]*models.Booking{}}
	for _, b := range existing {
		f.bookings[b.ID] = b
	}
	return f
}

func (f *bookingStoreFake) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, nil
	}
	clone := *b
	return &clone, nil
}

func (f *bookingStoreFake) ListActiveOnceBetween(ctx context.Context, teacherID string, from, to time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range f.bookings {
		if b.TeacherID != teacherID || b.Once == nil || !b.Status.Active() {
			continue
		}
		if b.Once.StartUTC.Before(to) && from.Before(b.Once.EndUTC) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *bookingStoreFake) ListActiveWeeklyByDay(ctx context.Context, teacherID string, day timeutil.Weekday) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range f.bookings {
		if b.TeacherID != teacherID || b.Weekly == nil || !b.Status.Active() {
			continue
		}
		if b.Weekly.Weekday == day {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *bookingStoreFake) ListActiveOnceAfter(ctx context.Context, teacherID string, after time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range f.bookings {
		if b.TeacherID != teacherID || b.Once == nil || !b.Status.Active() {
			continue
		}
		if b.Once.StartUTC.After(after) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *bookingStoreFake) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = fmt.Sprintf("b-%d", len(f.bookings)+1)
	}
	clone := *booking
	f.bookings[booking.ID] = &clone
	if f.injectOnCreate != nil {
		f.bookings[f.injectOnCreate.ID] = f.injectOnCreate
		f.injectOnCreate = nil
	}
	return nil
}

func (f *bookingStoreFake) UpdateTiming(ctx context.Context, booking *models.Booking) error {
	clone := *booking
	f.bookings[booking.ID] = &clone
	return nil
}

func (f *bookingStoreFake) Delete(ctx context.Context, id string) error {
	delete(f.bookings, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *bookingStoreFake) InTeacherLock(ctx context.Context, teacherID string, fn func(tx repository.BookingTxn) error) error {
	f.lockCalls++
	return fn(f)
}

type directoryStub struct {
	enrolled   bool
	instructor bool
	err        error
}

func (s directoryStub) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	return s.enrolled, s.err
}

func (s directoryStub) IsInstructor(ctx context.Context, userID, courseID string) (bool, error) {
	return s.instructor, s.err
}

func newTestBookingService(store *bookingStoreFake, dir directoryStub) (*BookingService, *invalidatorStub) {
	cfg := config.BookingConfig{DefaultDurationMinutes: 60, DefaultTimezone: "UTC"}
	slots := newTestSlotService(mondaySchedule(), &bookingReaderStub{}, "UTC", nil)
	cache := &invalidatorStub{}
	svc := NewBookingService(store, slots, dir, cache, nil, cfg, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC) }
	return svc, cache
}

func onceBooking(id string, start, end time.Time) *models.Booking {
	return &models.Booking{
		ID:              id,
		TeacherID:       "t-1",
		StudentID:       "s-2",
		CourseID:        "c-1",
		Recurrence:      models.RecurrenceOnce,
		Status:          models.BookingStatusPublished,
		DurationMinutes: int(end.Sub(start).Minutes()),
		Once:            &models.OnceTiming{StartUTC: start, EndUTC: end},
	}
}

func TestReserveOnce(t *testing.T) {
	store := newBookingStoreFake()
	svc, cache := newTestBookingService(store, directoryStub{enrolled: true})

	booking, err := svc.Reserve(context.Background(), "s-1", ReserveRequest{
		TeacherID: "t-1", CourseID: "c-1", Date: "2025-09-01", Time: "10:00",
	})
	require.NoError(t, err)
	require.NotNil(t, booking.Once)
	assert.Equal(t, time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC), booking.Once.StartUTC)
	assert.Equal(t, time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC), booking.Once.EndUTC)
	assert.Equal(t, models.BookingStatusPublished, booking.Status)
	assert.Equal(t, models.RecurrenceOnce, booking.Recurrence)
	assert.Equal(t, 1, store.lockCalls)
	assert.Contains(t, store.bookings, booking.ID)
	assert.Equal(t, []string{"t-1"}, cache.teachers)
}

func TestReserveWeekly(t *testing.T) {
	store := newBookingStoreFake()
	svc, _ := newTestBookingService(store, directoryStub{enrolled: true})

	booking, err := svc.Reserve(context.Background(), "s-1", ReserveRequest{
		TeacherID: "t-1", CourseID: "c-1", Date: "2025-09-01", Time: "10:00",
		Recurrence: models.RecurrenceWeekly,
	})
	require.NoError(t, err)
	require.NotNil(t, booking.Weekly)
	assert.Nil(t, booking.Once)
	assert.Equal(t, timeutil.Monday, booking.Weekly.Weekday)
	assert.Equal(t, 600, booking.Weekly.StartMinute)
	assert.Equal(t, 660, booking.Weekly.EndMinute)
}

func TestReserveNotEnrolledFailsClosed(t *testing.T) {
	store := newBookingStoreFake()
	svc, _ := newTestBookingService(store, directoryStub{enrolled: false})

	_, err := svc.Reserve(context.Background(), "s-1", ReserveRequest{
		TeacherID: "t-1", CourseID: "c-1", Date: "2025-09-01", Time: "10:00",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Zero(t, store.lockCalls)

	svc, _ = newTestBookingService(store, directoryStub{err: fmt.Errorf("directory down")})
	_, err = svc.Reserve(context.Background(), "s-1", ReserveRequest{
		TeacherID: "t-1", CourseID: "c-1", Date: "2025-09-01", Time: "10:00",
	})
	require.Error(t, err)
	appErr = appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestReserveAcceptsEveryGeneratedSlot(t *testing.T) {
	// Discovery and reservation must agree: wire the slot engine to the
	// same store the scheduler writes to, then reserve each offered time.
	existing := onceBooking("b-1",
		time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC))
	store := newBookingStoreFake(existing)

	cfg := config.BookingConfig{
		DefaultDurationMinutes: 60,
		DefaultTimezone:        "UTC",
		SlotCacheTTL:           time.Minute,
		MaxRangeDays:           28,
	}
	now := func() time.Time { return time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC) }
	slots := NewSlotService(mondaySchedule(), store, profileStub{tz: "UTC"}, nil, nil, cfg, nil)
	slots.now = now
	svc := NewBookingService(store, slots, directoryStub{enrolled: true}, &invalidatorStub{}, nil, cfg, nil, nil)
	svc.now = now

	offered, err := slots.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	require.Equal(t, []string{"09:00", "11:00"}, offered)

	for _, start := range offered {
		booking, err := svc.Reserve(context.Background(), "s-1", ReserveRequest{
			TeacherID: "t-1", CourseID: "c-1", Date: "2025-09-01", Time: start,
		})
		require.NoError(t, err, "offered slot %s must reserve", start)
		require.NotNil(t, booking)
	}
	assert.Len(t, store.bookings, 3)

	// Nothing is offered anymore once everything is taken.
	offered, err = slots.GenerateSlots(context.Background(), "t-1", monday, 60, false)
	require.NoError(t, err)
	assert.Empty(t, offered)
}

func TestReserveConflictLeavesNoWrites(t *testing.T) {
	existing := onceBooking("b-1",
		time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC))
	store := newBookingStoreFake(existing)
	svc, cache := newTestBookingService(store, directoryStub{enrolled: true})

	_, err := svc.Reserve(context.Background(), "s-1", ReserveRequest{
		TeacherID: "t-1", CourseID: "c-1", Date: "2025-09-01", Time: "10:30",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErr.Code)
	assert.Len(t, store.bookings, 1)
	assert.Empty(t, cache.teachers)
}

func TestReserveRecoversFromRacingInsert(t *testing.T) {
	store := newBookingStoreFake()
	store.injectOnCreate = onceBooking("b-racer",
		time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC))
	svc, _ := newTestBookingService(store, directoryStub{enrolled: true})

	_, err := svc.Reserve(context.Background(), "s-1", ReserveRequest{
		TeacherID: "t-1", CourseID: "c-1", Date: "2025-09-01", Time: "10:00",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErr.Code)

	// Our own insert was rolled back; the racer's row survives.
	require.Len(t, store.deleted, 1)
	assert.NotEqual(t, "b-racer", store.deleted[0])
	assert.Len(t, store.bookings, 1)
	assert.Contains(t, store.bookings, "b-racer")
}

func TestReserveWeeklyBlockedByFutureOnce(t *testing.T) {
	existing := onceBooking("b-1",
		time.Date(2025, 9, 8, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 8, 11, 0, 0, 0, time.UTC))
	store := newBookingStoreFake(existing)
	svc, _ := newTestBookingService(store, directoryStub{enrolled: true})

	_, err := svc.Reserve(context.Background(), "s-1", ReserveRequest{
		TeacherID: "t-1", CourseID: "c-1", Date: "2025-09-01", Time: "10:00",
		Recurrence: models.RecurrenceWeekly,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErr.Code)
}

func TestReserveRejectsCrossMidnight(t *testing.T) {
	store := newBookingStoreFake()
	svc, _ := newTestBookingService(store, directoryStub{enrolled: true})

	_, err := svc.Reserve(context.Background(), "s-1", ReserveRequest{
		TeacherID: "t-1", CourseID: "c-1", Date: "2025-09-01", Time: "23:30",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestRescheduleOwnSlotDoesNotSelfConflict(t *testing.T) {
	existing := onceBooking("b-1",
		time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC))
	store := newBookingStoreFake(existing)
	svc, cache := newTestBookingService(store, directoryStub{})

	// Moving by 30 minutes overlaps only the booking's own old interval.
	booking, err := svc.Reschedule(context.Background(), "b-1", "t-1", false, RescheduleRequest{
		Date: "2025-09-01", Time: "10:30",
	})
	require.NoError(t, err)
	require.NotNil(t, booking.Once)
	assert.Equal(t, time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC), booking.Once.StartUTC)
	assert.Equal(t, []string{"t-1"}, cache.teachers)
	assert.Equal(t, store.bookings["b-1"].Once.StartUTC, booking.Once.StartUTC)
}

func TestRescheduleConflict(t *testing.T) {
	existing := onceBooking("b-1",
		time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC))
	other := onceBooking("b-2",
		time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC))
	store := newBookingStoreFake(existing, other)
	svc, _ := newTestBookingService(store, directoryStub{})

	_, err := svc.Reschedule(context.Background(), "b-1", "t-1", false, RescheduleRequest{
		Date: "2025-09-01", Time: "11:00",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErr.Code)
	assert.Equal(t, time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC), store.bookings["b-1"].Once.StartUTC)
}

func TestRescheduleForbiddenForOthers(t *testing.T) {
	existing := onceBooking("b-1",
		time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC))
	store := newBookingStoreFake(existing)
	svc, _ := newTestBookingService(store, directoryStub{})

	_, err := svc.Reschedule(context.Background(), "b-1", "s-2", false, RescheduleRequest{
		Date: "2025-09-01", Time: "11:00",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// Admins can always move it.
	_, err = svc.Reschedule(context.Background(), "b-1", "admin-1", true, RescheduleRequest{
		Date: "2025-09-01", Time: "11:00",
	})
	require.NoError(t, err)
}

func TestRescheduleNotFound(t *testing.T) {
	svc, _ := newTestBookingService(newBookingStoreFake(), directoryStub{})

	_, err := svc.Reschedule(context.Background(), "missing", "t-1", true, RescheduleRequest{
		Date: "2025-09-01", Time: "11:00",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestRescheduleCanSwitchRecurrence(t *testing.T) {
	existing := onceBooking("b-1",
		time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC))
	store := newBookingStoreFake(existing)
	svc, _ := newTestBookingService(store, directoryStub{})

	booking, err := svc.Reschedule(context.Background(), "b-1", "t-1", false, RescheduleRequest{
		Date: "2025-09-01", Time: "09:00", Recurrence: models.RecurrenceWeekly,
	})
	require.NoError(t, err)
	assert.Nil(t, booking.Once)
	require.NotNil(t, booking.Weekly)
	assert.Equal(t, timeutil.Monday, booking.Weekly.Weekday)
	assert.Equal(t, 540, booking.Weekly.StartMinute)
}

func TestNextOccurrenceOnce(t *testing.T) {
	existing := onceBooking("b-1",
		time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC))
	store := newBookingStoreFake(existing)
	svc, _ := newTestBookingService(store, directoryStub{})

	next, err := svc.NextOccurrence(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "UTC", next.Timezone)
	assert.True(t, next.WhenLocal.Equal(time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)))
}

func TestNextOccurrenceWeeklySkipsTodayOncePassed(t *testing.T) {
	weekly := &models.Booking{
		ID:         "b-1",
		TeacherID:  "t-1",
		Recurrence: models.RecurrenceWeekly,
		Status:     models.BookingStatusPublished,
		Weekly:     &models.WeeklyTiming{Weekday: timeutil.Monday, StartMinute: 600, EndMinute: 660},
	}
	store := newBookingStoreFake(weekly)
	svc, _ := newTestBookingService(store, directoryStub{})

	// Monday 09:00, before the slot: today counts.
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC) }
	next, err := svc.NextOccurrence(context.Background(), "b-1")
	require.NoError(t, err)
	assert.True(t, next.WhenLocal.Equal(time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)))

	// Monday 10:00 sharp: this occurrence already started, skip a week.
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC) }
	next, err = svc.NextOccurrence(context.Background(), "b-1")
	require.NoError(t, err)
	assert.True(t, next.WhenLocal.Equal(time.Date(2025, 9, 8, 10, 0, 0, 0, time.UTC)))
}
