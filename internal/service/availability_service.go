package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/timeutil"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
)

type availabilityRepository interface {
	Get(ctx context.Context, teacherID string) (*models.Availability, error)
	Upsert(ctx context.Context, availability *models.Availability) error
}

type slotCacheInvalidator interface {
	InvalidateTeacher(ctx context.Context, teacherID string)
}

// AvailabilityService owns the sanitize-and-overwrite lifecycle of a
// teacher's weekly availability.
type AvailabilityService struct {
	repo      availabilityRepository
	slotCache slotCacheInvalidator
	logger    *zap.Logger
}

// NewAvailabilityService constructs AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, slotCache slotCacheInvalidator, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, slotCache: slotCache, logger: logger}
}

// Get returns the teacher's availability, an all-empty schedule when none
// was ever saved. Never fails with not-found.
func (s *AvailabilityService) Get(ctx context.Context, teacherID string) (*models.Availability, error) {
	availability, err := s.repo.Get(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if availability == nil {
		return models.EmptyAvailability(teacherID), nil
	}
	return availability, nil
}

// Set sanitizes the submitted week and overwrites the teacher's entire
// record. Only the teacher themselves or an administrator may write.
// Sanitizing already-sanitized input is a no-op, so re-saving a stored
// schedule leaves it unchanged.
func (s *AvailabilityService) Set(ctx context.Context, teacherID string, raw models.RawWeek, actorID string, isAdmin bool) (*models.Availability, error) {
	if actorID != teacherID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the teacher or an administrator may edit availability")
	}

	availability := &models.Availability{
		TeacherID: teacherID,
		Week:      SanitizeWeek(raw),
	}
	if err := s.repo.Upsert(ctx, availability); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}

	if s.slotCache != nil {
		s.slotCache.InvalidateTeacher(ctx, teacherID)
	}
	s.logger.Info("availability saved", zap.String("teacher_id", teacherID), zap.String("actor_id", actorID))
	return availability, nil
}

// SanitizeWeek normalizes an editor payload into a stored schedule:
// unknown day keys are ignored, ranges whose endpoints do not parse are
// dropped, and a range with to <= from is dropped unless "to" is 00:00,
// which means end of day.
func SanitizeWeek(raw models.RawWeek) models.WeekSchedule {
	week := models.WeekSchedule{}
	for key, ranges := range raw {
		day := timeutil.Weekday(key)
		if !day.Valid() {
			continue
		}
		sanitized := make([]models.TimeRange, 0, len(ranges))
		for _, r := range ranges {
			from, err := timeutil.SanitizeHHMM(r.From)
			if err != nil {
				continue
			}
			to, err := timeutil.SanitizeHHMM(r.To)
			if err != nil {
				continue
			}
			fromMinute, err := timeutil.MinutesOfDay(from)
			if err != nil {
				continue
			}
			toMinute, err := timeutil.MinutesOfDay(to)
			if err != nil {
				continue
			}
			if to == "00:00" {
				toMinute = timeutil.MinutesPerDay
			}
			if toMinute <= fromMinute {
				continue
			}
			sanitized = append(sanitized, models.TimeRange{FromMinute: fromMinute, ToMinute: toMinute})
		}
		week[day] = sanitized
	}
	return week
}
