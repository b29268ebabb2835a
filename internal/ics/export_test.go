package ics

import (
	"strings"
	"testing"
	"time"

	"remindcal/internal/model"
)

func TestExportParsesBack(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 3, 14, 19, 30, 0, 0, time.FixedZone("EST", -5*3600))
	events := []model.Event{
		{ID: "ev_1", Title: "Dinner with friends", ScheduledAt: at},
		{ID: "ev_2", Title: "Done", ScheduledAt: at.Add(-time.Hour), Notified: true},
	}

	body, err := Export(events, "Reminders")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(string(body), "STATUS:CANCELLED") {
		t.Fatalf("notified reminder not marked:\n%s", body)
	}

	parsed, err := ParseICS(Source{ID: "export"}, body)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("parsed %d events, want 2", len(parsed))
	}
	first := parsed[0]
	if first.UID != "ev_1@remindcal" || first.Summary != "Dinner with friends" {
		t.Fatalf("first = %+v", first)
	}
	if !first.Start.Equal(at) {
		t.Fatalf("start = %v, want %v", first.Start, at)
	}
	if !first.HasAlarm || first.Alarm != 0 {
		t.Fatalf("alarm = %v (has %v)", first.Alarm, first.HasAlarm)
	}
}

func TestExportRejectsMissingID(t *testing.T) {
	t.Parallel()
	if _, err := Export([]model.Event{{Title: "x", ScheduledAt: time.Now()}}, ""); err == nil {
		t.Fatal("expected error")
	}
}
