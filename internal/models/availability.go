package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/tutor-booking-api/internal/timeutil"
)

// TimeRange is an open window within a day, in minutes since local midnight.
// Ranges satisfy To > From; To may be 1440 meaning end of day.
type TimeRange struct {
	FromMinute int `json:"from_minute"`
	ToMinute   int `json:"to_minute"`
}

// WeekSchedule maps weekday keys to that day's open ranges. Absent days are
// treated as empty. Stored ranges may overlap; slot generation handles
// overlap without double-counting capacity.
type WeekSchedule map[timeutil.Weekday][]TimeRange

// Value implements driver.Valuer so the schedule persists as JSONB.
func (w WeekSchedule) Value() (driver.Value, error) {
	if w == nil {
		w = WeekSchedule{}
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner for JSONB columns.
func (w *WeekSchedule) Scan(src interface{}) error {
	if src == nil {
		*w = WeekSchedule{}
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported week schedule source %T", src)
	}
	return json.Unmarshal(raw, w)
}

// Ranges returns the day's ranges, never nil.
func (w WeekSchedule) Ranges(day timeutil.Weekday) []TimeRange {
	if w == nil {
		return nil
	}
	return w[day]
}

// Availability is a teacher's recurring weekly open time, kept in the
// teacher's local timezone. It is overwritten wholesale on every save.
type Availability struct {
	TeacherID string       `db:"teacher_id" json:"teacher_id"`
	Week      WeekSchedule `db:"week" json:"week"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// EmptyAvailability returns an all-empty schedule for a teacher who has
// never saved one.
func EmptyAvailability(teacherID string) *Availability {
	return &Availability{TeacherID: teacherID, Week: WeekSchedule{}}
}

// RawRange is an unsanitized availability window as submitted by the
// profile editor.
type RawRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RawWeek is the unsanitized editor payload: day key to submitted ranges.
// Unknown day keys are ignored during sanitization.
type RawWeek map[string][]RawRange

// ToRaw converts a stored schedule back to the editor representation.
func (w WeekSchedule) ToRaw() RawWeek {
	raw := RawWeek{}
	for day, ranges := range w {
		out := make([]RawRange, 0, len(ranges))
		for _, r := range ranges {
			to := r.ToMinute
			if to >= timeutil.MinutesPerDay {
				out = append(out, RawRange{From: timeutil.HHMM(r.FromMinute), To: "00:00"})
				continue
			}
			out = append(out, RawRange{From: timeutil.HHMM(r.FromMinute), To: timeutil.HHMM(to)})
		}
		raw[string(day)] = out
	}
	return raw
}
