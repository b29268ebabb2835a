package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"remindcal/internal/model"
	"remindcal/internal/reminder"
)

func newScheduler(now time.Time) *reminder.Scheduler {
	return reminder.New(nil,
		reminder.WithLocation(time.UTC),
		reminder.WithClock(func() time.Time { return now }),
	)
}

func titles(events []model.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Title
	}
	return out
}

func TestFetcherHonorsETagAndFallsBackToCache(t *testing.T) {
	t.Parallel()
	var hits, notModified atomic.Int32
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if failing.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(teamCalendar)
	}))
	defer srv.Close()

	f := NewFetcher(afero.NewMemMapFs(), "/cache", srv.Client())
	src := Source{ID: "team", URL: srv.URL + "/team.ics?token=secret"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, src)
	if err != nil || first.FromCache || string(first.Body) != string(teamCalendar) {
		t.Fatalf("first fetch = %+v, %v", first, err)
	}

	second, err := f.FetchOne(ctx, src)
	if err != nil || !second.FromCache || string(second.Body) != string(teamCalendar) {
		t.Fatalf("second fetch = %+v, %v", second, err)
	}
	if notModified.Load() != 1 {
		t.Fatalf("conditional requests = %d, want 1", notModified.Load())
	}

	failing.Store(true)
	third, err := f.FetchOne(ctx, src)
	if err != nil || !third.FromCache {
		t.Fatalf("outage fetch = %+v, %v", third, err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestFetcherErrorWithoutCache(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(afero.NewMemMapFs(), "/cache", srv.Client())
	results, errs := f.FetchAll(context.Background(), []Source{{ID: "gone", URL: srv.URL}, {ID: "empty"}})
	if len(results) != 0 || len(errs) != 2 {
		t.Fatalf("results = %d, errs = %v", len(results), errs)
	}
}

func TestImporterSchedulesEachOccurrenceOnce(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/cal/team.ics", teamCalendar, 0o600); err != nil {
		t.Fatal(err)
	}
	s := newScheduler(time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC))
	im := NewImporter(s, NewFetcher(fs, "/cache", nil), nil, 7*24*time.Hour)

	n, err := im.ImportFile("/cal/team.ics")
	if err != nil || n != 2 {
		t.Fatalf("first import = %d, %v", n, err)
	}
	list := s.List()
	if got := strings.Join(titles(list), ","); got != "Standup,Holiday" {
		t.Fatalf("titles = %s", got)
	}
	if !list[0].ScheduledAt.Equal(time.Date(2025, 3, 14, 8, 50, 0, 0, time.UTC)) {
		t.Fatalf("standup scheduled at %v", list[0].ScheduledAt)
	}
	if list[0].Source != "file:team.ics" {
		t.Fatalf("source = %q", list[0].Source)
	}

	if n, err := im.ImportFile("/cal/team.ics"); err != nil || n != 0 {
		t.Fatalf("re-import = %d, %v", n, err)
	}

	// A reminder the user dismissed stays dismissed.
	s.Remove(list[0].ID)
	if n, err := im.ImportFile("/cal/team.ics"); err != nil || n != 0 {
		t.Fatalf("import after remove = %d, %v", n, err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestImporterSkipsPastReminders(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/team.ics", teamCalendar, 0o600)
	s := newScheduler(time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
	im := NewImporter(s, NewFetcher(fs, "/cache", nil), nil, 0)

	if n, err := im.ImportFile("/team.ics"); err != nil || n != 0 {
		t.Fatalf("import = %d, %v", n, err)
	}
}

func TestImporterSchedulesLateAlarmImmediately(t *testing.T) {
	t.Parallel()
	cal := calendar(
		"BEGIN:VEVENT",
		"UID:planning@example.com",
		"DTSTAMP:20250301T000000Z",
		"DTSTART:20250314T090000Z",
		"DTEND:20250314T100000Z",
		"SUMMARY:Planning",
		"LOCATION:Room 4",
		"BEGIN:VALARM",
		"ACTION:DISPLAY",
		"TRIGGER:-PT1H",
		"DESCRIPTION:Planning",
		"END:VALARM",
		"END:VEVENT",
	)
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/planning.ics", cal, 0o600)

	// The 08:00 alarm has passed but the meeting has not started.
	now := time.Date(2025, 3, 14, 8, 30, 0, 0, time.UTC)
	s := newScheduler(now)
	im := NewImporter(s, NewFetcher(fs, "/cache", nil), nil, 24*time.Hour)

	n, err := im.ImportFile("/planning.ics")
	if err != nil || n != 1 {
		t.Fatalf("import = %d, %v", n, err)
	}
	ev := s.List()[0]
	if !ev.ScheduledAt.Equal(now) {
		t.Fatalf("scheduled at %v, want %v", ev.ScheduledAt, now)
	}
	if ev.Title != "Planning @ Room 4" {
		t.Fatalf("title = %q", ev.Title)
	}

	// After the start there is nothing left to remind about.
	late := newScheduler(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))
	im = NewImporter(late, NewFetcher(fs, "/cache", nil), nil, 24*time.Hour)
	if n, err := im.ImportFile("/planning.ics"); err != nil || n != 0 {
		t.Fatalf("import after start = %d, %v", n, err)
	}
}

func TestImporterSync(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(gymCalendar)
	}))
	defer srv.Close()

	s := newScheduler(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	sources := []Source{{ID: "gym", URL: srv.URL}}
	im := NewImporter(s, NewFetcher(afero.NewMemMapFs(), "/cache", srv.Client()), sources, 3*24*time.Hour)

	n, err := im.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	// 14th and the moved 15th; the 16th is excluded.
	if n != 2 {
		t.Fatalf("added %d, want 2", n)
	}
	if n, _ := im.Sync(context.Background()); n != 0 {
		t.Fatalf("second sync added %d", n)
	}
}

func TestImporterRunRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	s := newScheduler(time.Now())
	im := NewImporter(s, NewFetcher(afero.NewMemMapFs(), "/cache", nil), nil, time.Hour)
	if err := im.Run(context.Background(), "not a cron line"); err == nil {
		t.Fatal("expected error")
	}
}

func TestWatchImportsNewFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "team.ics"), teamCalendar, 0o600); err != nil {
		t.Fatal(err)
	}
	s := newScheduler(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	im := NewImporter(s, NewFetcher(afero.NewOsFs(), t.TempDir(), nil), nil, 7*24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- im.Watch(ctx, dir) }()
	defer func() {
		cancel()
		<-done
	}()

	waitLen(t, s, 2)
	if err := os.WriteFile(filepath.Join(dir, "gym.ics"), gymCalendar, 0o600); err != nil {
		t.Fatal(err)
	}
	// Gym on the 14th, 15th (moved), 17th and 18th.
	waitLen(t, s, 6)
}

func waitLen(t *testing.T, s *reminder.Scheduler, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.Len() == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Len = %d, want %d", s.Len(), want)
}
