package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
)

// Weekday is the lowercase three-letter key used for weekly availability
// and weekly booking rows.
type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"

	// MinutesPerDay is the exclusive upper bound for a minute-of-day value.
	MinutesPerDay = 1440
)

// Weekdays lists all keys in ISO order (Monday first).
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayKeys = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

// Valid reports whether w is one of the seven known keys.
func (w Weekday) Valid() bool {
	for _, d := range Weekdays {
		if d == w {
			return true
		}
	}
	return false
}

var hhmmPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// MinutesOfDay parses a strict HH:MM 24-hour value into minutes since
// midnight, in [0, 1440).
func MinutesOfDay(hhmm string) (int, error) {
	if !hhmmPattern.MatchString(hhmm) {
		return 0, appErrors.Clone(appErrors.ErrInvalidTime, fmt.Sprintf("%q is not a valid HH:MM time", hhmm))
	}
	hour, _ := strconv.Atoi(hhmm[:2])
	minute, _ := strconv.Atoi(hhmm[3:])
	if hour > 23 || minute > 59 {
		return 0, appErrors.Clone(appErrors.ErrInvalidTime, fmt.Sprintf("%q is out of range", hhmm))
	}
	return hour*60 + minute, nil
}

// HHMM renders minutes since midnight as HH:MM, clamping to [0, 1439].
func HHMM(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes > MinutesPerDay-1 {
		minutes = MinutesPerDay - 1
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// LoadLocation resolves a timezone identifier, returning ErrInvalidTimezone
// for anything the zone database does not recognize.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidTimezone.Code, appErrors.ErrInvalidTimezone.Status, fmt.Sprintf("unrecognized timezone %q", tz))
	}
	return loc, nil
}

// WeekdayKey resolves the weekday of a calendar date as seen in loc.
func WeekdayKey(date time.Time, loc *time.Location) Weekday {
	return weekdayKeys[date.In(loc).Weekday()]
}

// LocalToUTC converts a wall-clock HH:MM on the given calendar date in tz
// to a UTC instant. Wall-clock values inside a DST gap resolve to the
// instant the zone's standard normalization picks (time.Date semantics),
// which is deterministic for a given zone database.
func LocalToUTC(year int, month time.Month, day int, hhmm string, tz string) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := MinutesOfDay(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	local := time.Date(year, month, day, minutes/60, minutes%60, 0, 0, loc)
	return local.UTC(), nil
}

// UTCToLocal converts a UTC instant into the wall-clock representation in tz.
func UTCToLocal(instant time.Time, tz string) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	return instant.In(loc), nil
}

// DayBounds returns the UTC instants delimiting the local calendar day
// [midnight, next midnight) of date as seen in loc.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	local := date.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// MinuteOfDayIn returns the minute-of-day of a UTC instant as seen in loc.
func MinuteOfDayIn(instant time.Time, loc *time.Location) int {
	local := instant.In(loc)
	return local.Hour()*60 + local.Minute()
}

// SanitizeHHMM normalizes the loose time formats the availability editor
// emits: bare hours ("9:00"), 12-hour AM/PM suffixes, and non-breaking or
// stray spaces. Returns the canonical HH:MM or an error when the value
// cannot be understood as a time of day.
func SanitizeHHMM(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == ' ' {
			return ' '
		}
		return r
	}, raw)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", appErrors.Clone(appErrors.ErrInvalidTime, "empty time value")
	}

	upper := strings.ToUpper(cleaned)
	meridiem := ""
	for _, suffix := range []string{"AM", "PM", "A.M.", "P.M."} {
		if strings.HasSuffix(upper, suffix) {
			meridiem = string(suffix[0])
			cleaned = strings.TrimSpace(cleaned[:len(cleaned)-len(suffix)])
			break
		}
	}

	parts := strings.SplitN(cleaned, ":", 2)
	hourPart := strings.TrimSpace(parts[0])
	minutePart := "00"
	if len(parts) == 2 {
		minutePart = strings.TrimSpace(parts[1])
	}

	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrInvalidTime, fmt.Sprintf("%q is not a valid time", raw))
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrInvalidTime, fmt.Sprintf("%q is not a valid time", raw))
	}

	switch meridiem {
	case "P":
		if hour < 12 {
			hour += 12
		}
	case "A":
		if hour == 12 {
			hour = 0
		}
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", appErrors.Clone(appErrors.ErrInvalidTime, fmt.Sprintf("%q is out of range", raw))
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// Overlaps reports whether the half-open minute intervals [aStart, aEnd)
// and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return bStart < aEnd && aStart < bEnd
}
