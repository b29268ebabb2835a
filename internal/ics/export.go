package ics

import (
	"errors"
	"time"

	ical "github.com/arran4/golang-ical"

	"remindcal/internal/model"
)

const productID = "-//remindcal//reminders//EN"

// Export renders reminders as an iCalendar document. Every reminder becomes
// a VEVENT with a display VALARM at its start, so a calendar client that
// imports the file alerts at the same instant. Already-notified reminders
// are kept but marked with STATUS:CANCELLED.
func Export(events []model.Event, calName string) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if calName != "" {
		cal.SetXWRCalName(calName)
	}

	stamp := time.Now().UTC()
	for _, ev := range events {
		if ev.ID == "" {
			return nil, errors.New("export: reminder without ID")
		}
		ve := cal.AddEvent(ev.ID + "@remindcal")
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.ScheduledAt.UTC())
		ve.SetEndAt(ev.ScheduledAt.UTC())
		ve.SetSummary(ev.Title)
		if ev.Notified {
			ve.SetStatus(ical.ObjectStatusCancelled)
		}

		alarm := ve.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger("PT0M")
		alarm.SetProperty(ical.ComponentPropertyDescription, ev.Title)
	}
	return []byte(cal.Serialize()), nil
}
