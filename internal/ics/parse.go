package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "remindcal/internal/log"
)

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion will operate on this type.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary  string
	Location string

	Start  time.Time
	End    time.Time
	AllDay bool

	// Alarm is the offset of the first VALARM relative to Start (usually
	// negative). HasAlarm is false when the event carries no usable VALARM,
	// in which case the reminder fires at Start.
	Alarm    time.Duration
	HasAlarm bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present) in event's own timezone
	IsOverride bool       // true if this VEVENT is an override for a recurring instance
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - It relies on the underlying library's VTIMEZONE/TZID handling to
//     construct proper time.Time values (with Location set).
//   - It detects all-day events by inspecting the DTSTART value format.
//   - It records RRULE/EXDATE/RECURRENCE-ID but does not expand recurrences;
//     expansion is done in expand.go.
//   - It reads the first VALARM trigger so imported reminders fire when the
//     calendar owner asked to be reminded.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar %s: %w", src.ID, err)
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent skipped", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)
	if strings.TrimSpace(out.Summary) == "" {
		// A reminder needs a title.
		out.Summary = "(untitled event)"
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("uid %s: missing DTSTART", out.UID)
	}
	out.AllDay = isDateValue(dtStart)

	if out.AllDay {
		start, err := parsePropTime(dtStart, dtStart.Value)
		if err != nil {
			return out, fmt.Errorf("uid %s: DTSTART: %w", out.UID, err)
		}
		out.Start = start
		out.End = start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parsePropTime(dtEnd, dtEnd.Value); err == nil && end.After(start) {
				out.End = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, fmt.Errorf("uid %s: DTSTART: %w", out.UID, err)
		}
		out.Start = start
		out.End = start
		if end, err := ve.GetEndAt(); err == nil && !end.Before(start) {
			out.End = end
		}
	}

	out.Alarm, out.HasAlarm = firstAlarm(ve, out.Start, out.End)

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each with a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parsePropTime(p, part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); ridProp != nil {
		if t, err := parsePropTime(ridProp, ridProp.Value); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

// isDateValue reports VALUE=DATE or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// firstAlarm returns the offset of the first VALARM whose TRIGGER can be
// understood. Absolute triggers and RELATED=END triggers are converted to
// an offset from start.
func firstAlarm(ve *ical.VEvent, start, end time.Time) (time.Duration, bool) {
	for _, alarm := range ve.Alarms() {
		trig := alarm.GetProperty(ical.ComponentProperty("TRIGGER"))
		if trig == nil {
			continue
		}
		if vs, ok := trig.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE-TIME") {
			at, err := parsePropTime(trig, trig.Value)
			if err != nil {
				continue
			}
			return at.Sub(start), true
		}
		d, err := parseICSDuration(trig.Value)
		if err != nil {
			appLog.Debug("ics alarm trigger ignored", "trigger", trig.Value, "err", err)
			continue
		}
		if vs, ok := trig.ICalParameters["RELATED"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "END") {
			d += end.Sub(start)
		}
		return d, true
	}
	return 0, false
}

// parseICSDuration parses an RFC 5545 duration such as "-PT15M", "P1D",
// "-P1DT2H30M" or "P2W".
func parseICSDuration(v string) (time.Duration, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return 0, errors.New("empty duration")
	}
	sign := time.Duration(1)
	switch v[0] {
	case '-':
		sign = -1
		v = v[1:]
	case '+':
		v = v[1:]
	}
	if !strings.HasPrefix(v, "P") || len(v) < 3 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	v = v[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
			continue
		case r == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("invalid duration %q", v)
			}
			inTime = true
			continue
		}
		if num == "" {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, err
		}
		num = ""
		var unit time.Duration
		switch {
		case r == 'W' && !inTime:
			unit = 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			unit = 24 * time.Hour
		case r == 'H' && inTime:
			unit = time.Hour
		case r == 'M' && inTime:
			unit = time.Minute
		case r == 'S' && inTime:
			unit = time.Second
		default:
			return 0, fmt.Errorf("invalid duration unit %q", r)
		}
		total += time.Duration(n) * unit
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q: trailing number", v)
	}
	return sign * total, nil
}

// parsePropTime parses value (the property's own value, or one entry of a
// list such as EXDATE) in the zone named by the property's TZID parameter.
// An unknown TZID falls back to the host's local zone.
func parsePropTime(p *ical.IANAProperty, value string) (time.Time, error) {
	vs, ok := p.ICalParameters["TZID"]
	if !ok || len(vs) == 0 || vs[0] == "" {
		return parseICSTime(value)
	}
	loc, err := time.LoadLocation(strings.Trim(vs[0], `"`))
	if err != nil {
		appLog.Debug("ics unknown TZID, using local zone", "tzid", vs[0], "err", err)
		return parseICSTime(value)
	}
	return parseICSTimeIn(value, loc)
}

// parseICSTime parses a basic ICS date/date-time string into time.Time.
// Floating times and dates are read in the host's local zone.
func parseICSTime(v string) (time.Time, error) {
	return parseICSTimeIn(v, time.Local)
}

// parseICSTimeIn is parseICSTime with floating values read in loc.
func parseICSTimeIn(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}
