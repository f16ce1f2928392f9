package models

import "github.com/noah-isme/tutor-booking-api/internal/timeutil"

// DaySlots is one day's worth of free start times. Times are HH:MM in the
// teacher's zone; ViewerTimes, when a viewer timezone was requested, carry
// the same slots projected for display as "2006-01-02T15:04" in the
// viewer's zone. Display projection never feeds back into conflict checks.
type DaySlots struct {
	Date        string           `json:"date"`
	Weekday     timeutil.Weekday `json:"weekday"`
	Times       []string         `json:"times"`
	ViewerTimes []string         `json:"viewer_times,omitempty"`
}
