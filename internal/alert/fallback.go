package alert

import (
	"context"
	"time"

	appLog "remindcal/internal/log"
	"remindcal/internal/model"
)

// LogFallback writes due reminders to the application log. It is always
// wired so that a reminder is visible somewhere even with no browser open.
type LogFallback struct {
	Location *time.Location
}

func (l LogFallback) Show(_ context.Context, ev model.Event) error {
	appLog.Warn(FallbackText(ev),
		"id", ev.ID,
		"scheduled_at", model.FormatLocal(ev.ScheduledAt, l.Location),
	)
	return nil
}
