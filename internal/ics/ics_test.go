package ics

import (
	"strings"
	"testing"
	"time"
)

func calendar(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var teamCalendar = calendar(
	"BEGIN:VEVENT",
	"UID:standup@example.com",
	"DTSTAMP:20250301T000000Z",
	"DTSTART:20250314T090000Z",
	"DTEND:20250314T091500Z",
	"SUMMARY:Standup",
	"BEGIN:VALARM",
	"ACTION:DISPLAY",
	"TRIGGER:-PT10M",
	"DESCRIPTION:Standup",
	"END:VALARM",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:holiday@example.com",
	"DTSTAMP:20250301T000000Z",
	"DTSTART;VALUE=DATE:20250317",
	"SUMMARY:Holiday",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:broken@example.com",
	"DTSTAMP:20250301T000000Z",
	"SUMMARY:No start",
	"END:VEVENT",
)

func TestParseICS(t *testing.T) {
	t.Parallel()
	events, err := ParseICS(Source{ID: "team"}, teamCalendar)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (event without DTSTART skipped)", len(events))
	}

	standup := events[0]
	if standup.UID != "standup@example.com" || standup.Summary != "Standup" || standup.AllDay {
		t.Fatalf("standup = %+v", standup)
	}
	if !standup.Start.Equal(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("standup start = %v", standup.Start)
	}
	if !standup.HasAlarm || standup.Alarm != -10*time.Minute {
		t.Fatalf("standup alarm = %v (has %v)", standup.Alarm, standup.HasAlarm)
	}
	if standup.Source.ID != "team" {
		t.Fatalf("source = %+v", standup.Source)
	}

	holiday := events[1]
	if !holiday.AllDay || holiday.HasAlarm {
		t.Fatalf("holiday = %+v", holiday)
	}
	if got := holiday.End.Sub(holiday.Start); got != 24*time.Hour {
		t.Fatalf("holiday length = %v", got)
	}
}

func TestParseICSAlarmRelatedToEnd(t *testing.T) {
	t.Parallel()
	cal := calendar(
		"BEGIN:VEVENT",
		"UID:review@example.com",
		"DTSTAMP:20250301T000000Z",
		"DTSTART:20250314T140000Z",
		"DTEND:20250314T150000Z",
		"SUMMARY:Review",
		"BEGIN:VALARM",
		"ACTION:DISPLAY",
		"TRIGGER;RELATED=END:-PT15M",
		"DESCRIPTION:Wrap up",
		"END:VALARM",
		"END:VEVENT",
	)
	events, err := ParseICS(Source{ID: "team"}, cal)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	// 15 minutes before the 15:00 end.
	if ev := events[0]; !ev.HasAlarm || ev.Alarm != 45*time.Minute {
		t.Fatalf("alarm = %v (has %v)", ev.Alarm, ev.HasAlarm)
	}
}

func TestParseICSRejectsEmptyBody(t *testing.T) {
	t.Parallel()
	if _, err := ParseICS(Source{ID: "x"}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseICSDuration(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"-PT15M", -15 * time.Minute},
		{"PT0M", 0},
		{"P1D", 24 * time.Hour},
		{"-P1DT2H30M", -(26*time.Hour + 30*time.Minute)},
		{"+PT45S", 45 * time.Second},
		{"P2W", 14 * 24 * time.Hour},
		{"pt1h", time.Hour},
	}
	for _, tc := range cases {
		got, err := parseICSDuration(tc.in)
		if err != nil {
			t.Errorf("parseICSDuration(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseICSDuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "P", "15M", "PT", "P1H", "PT1D", "PT5", "P1T"} {
		if _, err := parseICSDuration(bad); err == nil {
			t.Errorf("parseICSDuration(%q): expected error", bad)
		}
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"https://example.com/private/cal.ics?token=abc": "https://example.com/...(redacted)",
		"http://host:8080":                              "http://host:8080/...(redacted)",
		"not a url":                                     "ics://...(redacted)",
	}
	for in, want := range cases {
		if got := redactURL(in); got != want {
			t.Errorf("redactURL(%q) = %q, want %q", in, got, want)
		}
	}
}
