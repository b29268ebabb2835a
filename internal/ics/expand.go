package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "remindcal/internal/log"
	"remindcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound RemindAt, inclusive on both ends.
	RangeStart time.Time
	RangeEnd   time.Time

	// CatchUp also keeps occurrences whose reminder time is before
	// RangeStart while their start is not, with RemindAt moved up to
	// RangeStart.
	CatchUp bool

	// MaxOccurrencesPerEvent is a safety cap to avoid infinite or extremely
	// large expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	// Occurrences are sorted by RemindAt.
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed events into concrete occurrences whose
// reminder time falls inside the configured window. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY, etc.)
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//   - All-day semantics (reminder at local midnight unless a VALARM says otherwise)
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID.
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	uids := make([]string, 0)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	occurrences := make([]model.Occurrence, 0)
	for _, uid := range uids {
		truncated := false
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			occurrences = append(occurrences, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].RemindAt.Before(occurrences[j].RemindAt)
	})
	result.Occurrences = occurrences
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Occurrence {
	start, end := ev.Start, ev.End
	if o, ok := findOverrideForStart(overrides, start); ok {
		ev, start, end = o, o.Start, o.End
	}
	occ := makeOccurrence(ev, start, end, cfg.DisplayLocation)
	if !admit(&occ, cfg) {
		return nil
	}
	return []model.Occurrence{occ}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// The window bounds RemindAt; shift it back to instance starts.
	loc := ev.Start.Location()
	rangeStart := cfg.RangeStart.Add(-ev.Alarm).In(loc)
	if cfg.CatchUp && rangeStart.After(cfg.RangeStart) {
		rangeStart = cfg.RangeStart.In(loc)
	}
	rangeEnd := cfg.RangeEnd.Add(-ev.Alarm).In(loc)
	starts := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	duration := ev.End.Sub(ev.Start)
	out := make([]model.Occurrence, 0, len(starts))
	for _, start := range starts {
		end := start.Add(duration)
		if ev.AllDay {
			day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			start, end = day, day.AddDate(0, 0, 1)
		}

		slot := start
		instance := ev
		if o, ok := findOverrideForStart(overrides, slot); ok {
			instance, start, end = o, o.Start, o.End
		}
		occ := makeOccurrence(instance, start, end, cfg.DisplayLocation)
		// Key by the original slot so a moved instance keeps its identity.
		occ.InstanceKey = instanceKey(slot, cfg.DisplayLocation)
		if !admit(&occ, cfg) {
			continue
		}
		out = append(out, occ)
	}
	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeOccurrence converts a (possibly overridden) ParsedEvent + specific
// start/end time into a model.Occurrence normalized into displayLoc.
func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	remindAt := start
	if ev.HasAlarm {
		remindAt = start.Add(ev.Alarm)
	}
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: instanceKey(start, displayLoc),
		Summary:     ev.Summary,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       startLocal,
		End:         end.In(displayLoc),
		RemindAt:    remindAt.In(displayLoc),
	}
}

func instanceKey(start time.Time, loc *time.Location) string {
	return start.In(loc).Format(time.RFC3339Nano)
}

func inWindow(t time.Time, cfg ExpandConfig) bool {
	return !t.Before(cfg.RangeStart) && !t.After(cfg.RangeEnd)
}

// admit reports whether occ belongs in the result, clamping a late
// reminder to RangeStart when cfg.CatchUp is set.
func admit(occ *model.Occurrence, cfg ExpandConfig) bool {
	if inWindow(occ.RemindAt, cfg) {
		return true
	}
	if !cfg.CatchUp || !occ.RemindAt.Before(cfg.RangeStart) {
		return false
	}
	if occ.Start.Before(cfg.RangeStart) || occ.Start.After(cfg.RangeEnd) {
		return false
	}
	occ.RemindAt = cfg.RangeStart.In(cfg.DisplayLocation)
	return true
}
