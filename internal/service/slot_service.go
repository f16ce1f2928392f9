package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/timeutil"
	"github.com/noah-isme/tutor-booking-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
)

// BookingReader is the read-side of booking persistence used for slot
// generation and conflict checks. Both the plain repository and its
// transaction-scoped view implement it, so discovery and reserve-time
// re-validation run the exact same code path.
type BookingReader interface {
	ListActiveOnceBetween(ctx context.Context, teacherID string, from, to time.Time) ([]models.Booking, error)
	ListActiveWeeklyByDay(ctx context.Context, teacherID string, day timeutil.Weekday) ([]models.Booking, error)
	ListActiveOnceAfter(ctx context.Context, teacherID string, after time.Time) ([]models.Booking, error)
}

type timezoneReader interface {
	GetTimezone(ctx context.Context, userID string) (string, error)
}

type slotCache interface {
	Get(ctx context.Context, teacherID, date string, durationMinutes int) ([]string, error)
	Set(ctx context.Context, teacherID, date string, durationMinutes int, slots []string, ttl time.Duration) error
}

// SlotService turns weekly availability plus existing bookings into free,
// non-conflicting start times in the teacher's local zone.
type SlotService struct {
	availability availabilityRepository
	bookings     BookingReader
	profiles     timezoneReader
	cache        slotCache
	metrics      *MetricsService
	cfg          config.BookingConfig
	logger       *zap.Logger
	now          func() time.Time
}

// NewSlotService constructs SlotService.
func NewSlotService(availability availabilityRepository, bookings BookingReader, profiles timezoneReader, cache slotCache, metrics *MetricsService, cfg config.BookingConfig, logger *zap.Logger) *SlotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{
		availability: availability,
		bookings:     bookings,
		profiles:     profiles,
		cache:        cache,
		metrics:      metrics,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// TeacherLocation resolves the teacher's timezone: stored preference, then
// platform default, then UTC.
func (s *SlotService) TeacherLocation(ctx context.Context, teacherID string) (*time.Location, string, error) {
	tz, err := s.profiles.GetTimezone(ctx, teacherID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher timezone")
	}
	if tz == "" {
		tz = s.cfg.DefaultTimezone
	}
	loc, err := timeutil.LoadLocation(tz)
	if err != nil {
		// A broken stored preference must not make the teacher unbookable.
		s.logger.Warn("stored timezone invalid, falling back to UTC", zap.String("teacher_id", teacherID), zap.String("tz", tz))
		return time.UTC, "UTC", nil
	}
	return loc, tz, nil
}

// GenerateSlots produces the free start times (HH:MM, ascending, deduped)
// for one calendar date, interpreted in the teacher's zone. When the date
// is today and includePastToday is false, times already passed are omitted.
func (s *SlotService) GenerateSlots(ctx context.Context, teacherID string, date time.Time, durationMinutes int, includePastToday bool) ([]string, error) {
	if durationMinutes <= 0 {
		durationMinutes = s.cfg.DefaultDurationMinutes
	}
	if durationMinutes <= 0 || durationMinutes > timeutil.MinutesPerDay {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid slot duration")
	}

	loc, _, err := s.TeacherLocation(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	localDate := date.In(loc)
	dateKey := localDate.Format("2006-01-02")
	today := s.now().In(loc).Format("2006-01-02") == dateKey

	// Only non-today dates are cached: today's list shrinks as the clock
	// advances, and includePastToday changes it further.
	if s.cache != nil && !today {
		if cached, err := s.cache.Get(ctx, teacherID, dateKey, durationMinutes); err == nil {
			s.metrics.RecordCacheLookup(true)
			return cached, nil
		}
		s.metrics.RecordCacheLookup(false)
	}

	started := time.Now()
	slots, err := s.generateSlotsUncached(ctx, s.bookings, teacherID, localDate, loc, durationMinutes, includePastToday, today)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSlotGeneration(time.Since(started))

	if s.cache != nil && !today {
		if err := s.cache.Set(ctx, teacherID, dateKey, durationMinutes, slots, s.cfg.SlotCacheTTL); err != nil {
			s.logger.Warn("slot cache write failed", zap.String("teacher_id", teacherID), zap.Error(err))
		}
	}
	return slots, nil
}

func (s *SlotService) generateSlotsUncached(ctx context.Context, reader BookingReader, teacherID string, localDate time.Time, loc *time.Location, durationMinutes int, includePastToday, today bool) ([]string, error) {
	day := timeutil.WeekdayKey(localDate, loc)

	availability, err := s.availability.Get(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if availability == nil {
		return []string{}, nil
	}
	ranges := availability.Week.Ranges(day)
	if len(ranges) == 0 {
		return []string{}, nil
	}

	booked, err := s.bookedIntervals(ctx, reader, teacherID, localDate, loc, day)
	if err != nil {
		return nil, err
	}

	nowCutoff := -1
	if today && !includePastToday {
		now := s.now().In(loc)
		nowCutoff = now.Hour()*60 + now.Minute()
	}

	seen := make(map[int]struct{})
	var minutes []int
	for _, r := range ranges {
		for m := r.FromMinute; m+durationMinutes <= r.ToMinute; m += durationMinutes {
			if nowCutoff >= 0 && m < nowCutoff {
				continue
			}
			candidate := models.Interval{StartMinute: m, EndMinute: m + durationMinutes}
			if intersectsAny(candidate, booked) {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			minutes = append(minutes, m)
		}
	}
	sort.Ints(minutes)

	slots := make([]string, 0, len(minutes))
	for _, m := range minutes {
		slots = append(slots, timeutil.HHMM(m))
	}
	return slots, nil
}

// bookedIntervals collects the occupied minute ranges of the teacher's
// local day: one-time bookings whose UTC interval intersects the day,
// clamped at the day boundaries, plus weekly bookings on the day's weekday.
func (s *SlotService) bookedIntervals(ctx context.Context, reader BookingReader, teacherID string, localDate time.Time, loc *time.Location, day timeutil.Weekday) ([]models.Interval, error) {
	dayStart, dayEnd := timeutil.DayBounds(localDate, loc)

	once, err := reader.ListActiveOnceBetween(ctx, teacherID, dayStart, dayEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	weekly, err := reader.ListActiveWeeklyByDay(ctx, teacherID, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}

	intervals := make([]models.Interval, 0, len(once)+len(weekly))
	for _, b := range once {
		if b.Once == nil {
			continue
		}
		start := b.Once.StartUTC
		end := b.Once.EndUTC
		startMinute := 0
		if !start.Before(dayStart) {
			startMinute = timeutil.MinuteOfDayIn(start, loc)
		}
		endMinute := timeutil.MinutesPerDay
		if !end.After(dayEnd) {
			endMinute = timeutil.MinuteOfDayIn(end, loc)
			if endMinute == 0 && end.After(dayStart) {
				endMinute = timeutil.MinutesPerDay
			}
		}
		if endMinute > startMinute {
			intervals = append(intervals, models.Interval{StartMinute: startMinute, EndMinute: endMinute})
		}
	}
	for _, b := range weekly {
		if b.Weekly == nil {
			continue
		}
		intervals = append(intervals, models.Interval{StartMinute: b.Weekly.StartMinute, EndMinute: b.Weekly.EndMinute})
	}
	return intervals, nil
}

func intersectsAny(candidate models.Interval, booked []models.Interval) bool {
	for _, b := range booked {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// OnceConflicts reports whether a candidate one-time interval collides with
// any active booking, optionally excluding one booking id (the reschedule
// target). It applies the same overlap rules as GenerateSlots against the
// reader's current state, so a slot the engine returned reserves cleanly
// absent a concurrent writer.
func (s *SlotService) OnceConflicts(ctx context.Context, reader BookingReader, teacherID string, startUTC, endUTC time.Time, loc *time.Location, excludeID string) (bool, error) {
	once, err := reader.ListActiveOnceBetween(ctx, teacherID, startUTC, endUTC)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	for _, b := range once {
		if b.ID != excludeID {
			return true, nil
		}
	}

	day := timeutil.WeekdayKey(startUTC, loc)
	weekly, err := reader.ListActiveWeeklyByDay(ctx, teacherID, day)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	startMinute := timeutil.MinuteOfDayIn(startUTC, loc)
	endMinute := startMinute + int(endUTC.Sub(startUTC).Minutes())
	for _, b := range weekly {
		if b.ID == excludeID || b.Weekly == nil {
			continue
		}
		if timeutil.Overlaps(startMinute, endMinute, b.Weekly.StartMinute, b.Weekly.EndMinute) {
			return true, nil
		}
	}
	return false, nil
}

// WeeklyConflicts reports whether a candidate weekly slot collides with any
// active booking. A weekly booking conflicts with every future occurrence,
// so one-time bookings on matching future weekdays count too.
func (s *SlotService) WeeklyConflicts(ctx context.Context, reader BookingReader, teacherID string, day timeutil.Weekday, startMinute, endMinute int, loc *time.Location, excludeID string) (bool, error) {
	weekly, err := reader.ListActiveWeeklyByDay(ctx, teacherID, day)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	for _, b := range weekly {
		if b.ID == excludeID || b.Weekly == nil {
			continue
		}
		if timeutil.Overlaps(startMinute, endMinute, b.Weekly.StartMinute, b.Weekly.EndMinute) {
			return true, nil
		}
	}

	once, err := reader.ListActiveOnceAfter(ctx, teacherID, s.now().UTC())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	for _, b := range once {
		if b.ID == excludeID || b.Once == nil {
			continue
		}
		if timeutil.WeekdayKey(b.Once.StartUTC, loc) != day {
			continue
		}
		bStart := timeutil.MinuteOfDayIn(b.Once.StartUTC, loc)
		bEnd := bStart + int(b.Once.EndUTC.Sub(b.Once.StartUTC).Minutes())
		if timeutil.Overlaps(startMinute, endMinute, bStart, bEnd) {
			return true, nil
		}
	}
	return false, nil
}

// GenerateSlotsRange applies the per-day algorithm independently across a
// run of days and projects each slot into the viewer's timezone purely for
// display.
func (s *SlotService) GenerateSlotsRange(ctx context.Context, teacherID string, from time.Time, days, durationMinutes int, viewerTZ string) ([]models.DaySlots, error) {
	if days <= 0 {
		days = 7
	}
	if s.cfg.MaxRangeDays > 0 && days > s.cfg.MaxRangeDays {
		days = s.cfg.MaxRangeDays
	}

	var viewerLoc *time.Location
	if viewerTZ != "" {
		loc, err := timeutil.LoadLocation(viewerTZ)
		if err != nil {
			return nil, err
		}
		viewerLoc = loc
	}

	teacherLoc, _, err := s.TeacherLocation(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	result := make([]models.DaySlots, 0, days)
	for i := 0; i < days; i++ {
		date := from.In(teacherLoc).AddDate(0, 0, i)
		times, err := s.GenerateSlots(ctx, teacherID, date, durationMinutes, false)
		if err != nil {
			return nil, err
		}
		entry := models.DaySlots{
			Date:    date.Format("2006-01-02"),
			Weekday: timeutil.WeekdayKey(date, teacherLoc),
			Times:   times,
		}
		if viewerLoc != nil {
			entry.ViewerTimes = make([]string, 0, len(times))
			for _, hhmm := range times {
				minutes, err := timeutil.MinutesOfDay(hhmm)
				if err != nil {
					continue
				}
				local := time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, teacherLoc)
				entry.ViewerTimes = append(entry.ViewerTimes, local.In(viewerLoc).Format("2006-01-02T15:04"))
			}
		}
		result = append(result, entry)
	}
	return result, nil
}
