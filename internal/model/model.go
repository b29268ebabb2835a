package model

import "time"

// Event is a single reminder owned by the scheduler.
//
// ScheduledAt is an absolute instant. It is resolved from the user's local
// date/time parts once, at creation, and never re-resolved afterwards.
// Notified flips from false to true exactly once, when the alert fires.
type Event struct {
	ID          string
	Title       string
	ScheduledAt time.Time
	Notified    bool

	// Source is empty for reminders entered by the user and holds the
	// calendar subscription ID for imported ones.
	Source string
}

// Due reports whether the event should fire at now.
func (e Event) Due(now time.Time) bool {
	return !e.Notified && !e.ScheduledAt.After(now)
}

// Occurrence represents a single concrete instance of a calendar event
// (after recurrence expansion and timezone normalization). Occurrences are
// turned into reminders by the calendar importer.
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string

	Summary  string
	Location string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time

	// RemindAt is when the reminder for this occurrence should fire: Start
	// shifted by the event's VALARM trigger, or Start itself.
	RemindAt time.Time
}

// Title is the reminder title for the occurrence: the summary, followed
// by the location when the event has one.
func (o Occurrence) Title() string {
	if o.Location == "" {
		return o.Summary
	}
	return o.Summary + " @ " + o.Location
}

// Key identifies an occurrence across repeated imports of the same feed.
func (o Occurrence) Key() string {
	return o.SourceID + "|" + o.UID + "|" + o.InstanceKey
}
