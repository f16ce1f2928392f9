package models

import (
	"time"

	"github.com/noah-isme/tutor-booking-api/internal/timeutil"
)

// Recurrence distinguishes the two booking shapes.
type Recurrence string

const (
	RecurrenceOnce   Recurrence = "once"
	RecurrenceWeekly Recurrence = "weekly"
)

// BookingStatus is the lifecycle state of a reservation.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusPublished BookingStatus = "published"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Active reports whether a booking in this status occupies teacher time.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusPublished
}

// OnceTiming is the timing variant of a one-time booking: a concrete UTC
// interval.
type OnceTiming struct {
	StartUTC time.Time `json:"start_utc"`
	EndUTC   time.Time `json:"end_utc"`
}

// WeeklyTiming is the timing variant of a weekly-recurring booking: a
// weekday plus a minute range in the teacher's local day. AnchorDate is the
// first occurrence's local calendar date.
type WeeklyTiming struct {
	Weekday     timeutil.Weekday `json:"weekday"`
	StartMinute int              `json:"start_minute"`
	EndMinute   int              `json:"end_minute"`
	AnchorDate  time.Time        `json:"anchor_date"`
}

// Booking is a reservation of teacher time for one student and course.
// Exactly one of Once/Weekly is set, matching Recurrence; a reschedule that
// switches shape clears the opposing variant.
type Booking struct {
	ID              string        `json:"id"`
	TeacherID       string        `json:"teacher_id"`
	StudentID       string        `json:"student_id"`
	CourseID        string        `json:"course_id"`
	EntitlementRef  *string       `json:"entitlement_ref,omitempty"`
	Recurrence      Recurrence    `json:"recurrence"`
	Status          BookingStatus `json:"status"`
	DurationMinutes int           `json:"duration_minutes"`
	Once            *OnceTiming   `json:"once,omitempty"`
	Weekly          *WeeklyTiming `json:"weekly,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Interval is a half-open [StartMinute, EndMinute) range within a teacher's
// local day, used for conflict checks.
type Interval struct {
	StartMinute int
	EndMinute   int
}

// Overlaps reports whether two intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return timeutil.Overlaps(i.StartMinute, i.EndMinute, other.StartMinute, other.EndMinute)
}

// NextOccurrence describes when a booking next takes place, in the
// teacher's local time.
type NextOccurrence struct {
	WhenLocal time.Time `json:"when_local"`
	Timezone  string    `json:"timezone"`
}
