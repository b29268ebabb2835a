package reminder

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// TimeParts is the date/time as entered on a 12-hour clock form.
type TimeParts struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Hour     int    `json:"hour"` // 1-12
	Minute   int    `json:"minute"`
	Meridiem string `json:"meridiem"` // AM or PM
}

// To24Hour converts a 12-hour clock hour to 0-23.
//
//	12 AM -> 0, 1-11 AM unchanged
//	12 PM -> 12, 1-11 PM +12
func To24Hour(hour int, meridiem string) (int, error) {
	if hour < 1 || hour > 12 {
		return 0, invalid("hour", "must be between 1 and 12")
	}
	switch strings.ToUpper(strings.TrimSpace(meridiem)) {
	case "AM":
		if hour == 12 {
			return 0, nil
		}
		return hour, nil
	case "PM":
		if hour == 12 {
			return 12, nil
		}
		return hour + 12, nil
	default:
		return 0, invalid("meridiem", "must be AM or PM")
	}
}

// BuildTime resolves the parts to an absolute instant in loc (time.Local if
// nil). The result is never re-resolved, so later zone changes on the host
// do not move an existing reminder.
func BuildTime(p TimeParts, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	date := strings.TrimSpace(p.Date)
	if date == "" {
		return time.Time{}, invalid("date", "is required")
	}
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, invalid("date", "must be a valid YYYY-MM-DD date")
	}
	hour, err := To24Hour(p.Hour, p.Meridiem)
	if err != nil {
		return time.Time{}, err
	}
	if p.Minute < 0 || p.Minute > 59 {
		return time.Time{}, invalid("minute", "must be between 0 and 59")
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, p.Minute, 0, 0, loc), nil
}

// SplitTime is the inverse of BuildTime, truncated to the minute. The view
// uses it to prefill the form with the current time.
func SplitTime(t time.Time, loc *time.Location) TimeParts {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	h := t.Hour()
	meridiem := "AM"
	if h >= 12 {
		meridiem = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return TimeParts{
		Date:     t.Format(dateLayout),
		Hour:     h,
		Minute:   t.Minute(),
		Meridiem: meridiem,
	}
}
