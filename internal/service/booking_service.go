package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/platform"
	"github.com/noah-isme/tutor-booking-api/internal/repository"
	"github.com/noah-isme/tutor-booking-api/internal/timeutil"
	"github.com/noah-isme/tutor-booking-api/pkg/config"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
)

type bookingStore interface {
	repository.BookingTxn
	InTeacherLock(ctx context.Context, teacherID string, fn func(tx repository.BookingTxn) error) error
}

// ReserveRequest describes a reservation attempt. Date is the calendar day
// in the teacher's zone, Time the local HH:MM start.
type ReserveRequest struct {
	TeacherID       string            `json:"teacher_id" validate:"required"`
	CourseID        string            `json:"course_id" validate:"required"`
	Date            string            `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string            `json:"time" validate:"required"`
	DurationMinutes int               `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
	Recurrence      models.Recurrence `json:"recurrence" validate:"omitempty,oneof=once weekly"`
	EntitlementRef  *string           `json:"entitlement_ref,omitempty"`
}

// RescheduleRequest moves an existing booking to a new time, optionally
// switching its recurrence shape.
type RescheduleRequest struct {
	Date            string            `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string            `json:"time" validate:"required"`
	DurationMinutes int               `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
	Recurrence      models.Recurrence `json:"recurrence" validate:"omitempty,oneof=once weekly"`
}

// BookingService reserves and reschedules teacher time. The conflict check
// shares the slot engine's overlap rules and runs inside a per-teacher
// transaction so that two callers racing for the same slot produce exactly
// one booking.
type BookingService struct {
	bookings  bookingStore
	slots     *SlotService
	directory platform.Directory
	slotCache slotCacheInvalidator
	metrics   *MetricsService
	cfg       config.BookingConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBookingService constructs BookingService.
func NewBookingService(bookings bookingStore, slots *SlotService, directory platform.Directory, slotCache slotCacheInvalidator, metrics *MetricsService, cfg config.BookingConfig, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:  bookings,
		slots:     slots,
		directory: directory,
		slotCache: slotCache,
		metrics:   metrics,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// candidateTiming is the normalized shape of a requested slot.
type candidateTiming struct {
	recurrence models.Recurrence
	duration   int
	once       *models.OnceTiming
	weekly     *models.WeeklyTiming
	loc        *time.Location
}

func (s *BookingService) buildTiming(ctx context.Context, teacherID, dateStr, hhmm string, duration int, recurrence models.Recurrence) (*candidateTiming, error) {
	if duration <= 0 {
		duration = s.cfg.DefaultDurationMinutes
	}
	if recurrence == "" {
		recurrence = models.RecurrenceOnce
	}

	loc, tz, err := s.slots.TeacherLocation(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	startMinute, err := timeutil.MinutesOfDay(hhmm)
	if err != nil {
		return nil, err
	}
	endMinute := startMinute + duration
	if endMinute > timeutil.MinutesPerDay {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson may not cross midnight")
	}

	timing := &candidateTiming{recurrence: recurrence, duration: duration, loc: loc}
	switch recurrence {
	case models.RecurrenceOnce:
		startUTC, err := timeutil.LocalToUTC(date.Year(), date.Month(), date.Day(), hhmm, tz)
		if err != nil {
			return nil, err
		}
		timing.once = &models.OnceTiming{StartUTC: startUTC, EndUTC: startUTC.Add(time.Duration(duration) * time.Minute)}
	case models.RecurrenceWeekly:
		timing.weekly = &models.WeeklyTiming{
			Weekday:     timeutil.WeekdayKey(date, loc),
			StartMinute: startMinute,
			EndMinute:   endMinute,
			AnchorDate:  date,
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "recurrence must be once or weekly")
	}
	return timing, nil
}

func (s *BookingService) timingConflicts(ctx context.Context, tx repository.BookingTxn, teacherID string, timing *candidateTiming, excludeID string) (bool, error) {
	if timing.once != nil {
		return s.slots.OnceConflicts(ctx, tx, teacherID, timing.once.StartUTC, timing.once.EndUTC, timing.loc, excludeID)
	}
	return s.slots.WeeklyConflicts(ctx, tx, teacherID, timing.weekly.Weekday, timing.weekly.StartMinute, timing.weekly.EndMinute, timing.loc, excludeID)
}

// Reserve books a slot for a student. The enrollment check is authoritative
// and fails closed; a conflicting time fails with SlotTaken and leaves no
// writes behind.
func (s *BookingService) Reserve(ctx context.Context, studentID string, req ReserveRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reservation payload")
	}

	enrolled, err := s.directory.IsEnrolled(ctx, studentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "enrollment could not be verified")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not enrolled in this course")
	}

	timing, err := s.buildTiming(ctx, req.TeacherID, req.Date, req.Time, req.DurationMinutes, req.Recurrence)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		TeacherID:       req.TeacherID,
		StudentID:       studentID,
		CourseID:        req.CourseID,
		EntitlementRef:  req.EntitlementRef,
		Recurrence:      timing.recurrence,
		Status:          models.BookingStatusPublished,
		DurationMinutes: timing.duration,
		Once:            timing.once,
		Weekly:          timing.weekly,
	}

	err = s.bookings.InTeacherLock(ctx, req.TeacherID, func(tx repository.BookingTxn) error {
		conflict, err := s.timingConflicts(ctx, tx, req.TeacherID, timing, "")
		if err != nil {
			return err
		}
		if conflict {
			return appErrors.ErrSlotTaken
		}
		if err := tx.Create(ctx, booking); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
		}
		// Re-validate after the insert; a row that snuck in despite the
		// teacher lock rolls our own insert back.
		conflict, err = s.timingConflicts(ctx, tx, req.TeacherID, timing, booking.ID)
		if err != nil {
			return err
		}
		if conflict {
			if err := tx.Delete(ctx, booking.ID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to roll back booking")
			}
			return appErrors.ErrSlotTaken
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordReservation(reservationOutcome(err))
		return nil, err
	}
	s.metrics.RecordReservation("reserved")

	if s.slotCache != nil {
		s.slotCache.InvalidateTeacher(ctx, req.TeacherID)
	}
	s.logger.Info("booking reserved",
		zap.String("booking_id", booking.ID),
		zap.String("teacher_id", booking.TeacherID),
		zap.String("student_id", booking.StudentID),
		zap.String("recurrence", string(booking.Recurrence)))
	return booking, nil
}

func reservationOutcome(err error) string {
	if appErr := appErrors.FromError(err); appErr != nil && appErr.Code == appErrors.ErrSlotTaken.Code {
		return "slot_taken"
	}
	return "error"
}

// Reschedule moves a booking, keeping its identity. Only the owning teacher
// or an administrator may move it; the booking's own prior occurrence is
// excluded from the conflict set.
func (s *BookingService) Reschedule(ctx context.Context, bookingID, actorID string, isAdmin bool, req RescheduleRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if booking == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}
	if booking.TeacherID != actorID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the booking's teacher or an administrator may reschedule")
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = booking.DurationMinutes
	}
	recurrence := req.Recurrence
	if recurrence == "" {
		recurrence = booking.Recurrence
	}

	timing, err := s.buildTiming(ctx, booking.TeacherID, req.Date, req.Time, duration, recurrence)
	if err != nil {
		return nil, err
	}

	err = s.bookings.InTeacherLock(ctx, booking.TeacherID, func(tx repository.BookingTxn) error {
		conflict, err := s.timingConflicts(ctx, tx, booking.TeacherID, timing, booking.ID)
		if err != nil {
			return err
		}
		if conflict {
			return appErrors.ErrSlotTaken
		}
		booking.Recurrence = timing.recurrence
		booking.DurationMinutes = timing.duration
		booking.Once = timing.once
		booking.Weekly = timing.weekly
		booking.Status = models.BookingStatusPublished
		if err := tx.UpdateTiming(ctx, booking); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.slotCache != nil {
		s.slotCache.InvalidateTeacher(ctx, booking.TeacherID)
	}
	s.logger.Info("booking rescheduled", zap.String("booking_id", booking.ID), zap.String("actor_id", actorID))
	return booking, nil
}

// NextOccurrence reports when the booking next takes place, in the
// teacher's local time. Weekly bookings skip today once the start time has
// passed.
func (s *BookingService) NextOccurrence(ctx context.Context, bookingID string) (*models.NextOccurrence, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if booking == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}

	loc, tz, err := s.slots.TeacherLocation(ctx, booking.TeacherID)
	if err != nil {
		return nil, err
	}

	switch {
	case booking.Once != nil:
		return &models.NextOccurrence{WhenLocal: booking.Once.StartUTC.In(loc), Timezone: tz}, nil
	case booking.Weekly != nil:
		now := s.now().In(loc)
		nowMinute := now.Hour()*60 + now.Minute()
		for offset := 0; offset < 8; offset++ {
			date := now.AddDate(0, 0, offset)
			if timeutil.WeekdayKey(date, loc) != booking.Weekly.Weekday {
				continue
			}
			if offset == 0 && booking.Weekly.StartMinute <= nowMinute {
				continue
			}
			when := time.Date(date.Year(), date.Month(), date.Day(), booking.Weekly.StartMinute/60, booking.Weekly.StartMinute%60, 0, 0, loc)
			return &models.NextOccurrence{WhenLocal: when, Timezone: tz}, nil
		}
		return nil, appErrors.Clone(appErrors.ErrInternal, "could not resolve next occurrence")
	default:
		return nil, appErrors.Clone(appErrors.ErrInternal, "booking has no timing")
	}
}
