package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPreviewPrintsImportedReminders(t *testing.T) {
	dir := t.TempDir()
	start := time.Now().Add(2 * time.Hour).UTC().Format("20060102T150405Z")
	cal := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:review@example.com",
		"DTSTAMP:20250101T000000Z",
		"DTSTART:" + start,
		"SUMMARY:Design review",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	calPath := filepath.Join(dir, "team.ics")
	if err := os.WriteFile(calPath, []byte(cal), 0o600); err != nil {
		t.Fatal(err)
	}

	confPath := filepath.Join(dir, "remindcal.yaml")
	conf := fmt.Sprintf(`timezone: UTC
log:
  level: error
import:
  horizon_days: 1
  cache_dir: %s
  ics:
    - id: team
      url: file://%s
`, filepath.Join(dir, "cache"), calPath)
	if err := os.WriteFile(confPath, []byte(conf), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := newApp(&out).Run([]string{"remindcal", "--config", confPath, "preview"}); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(out.String(), "SUMMARY:Design review") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestPreviewWithoutSources(t *testing.T) {
	confPath := filepath.Join(t.TempDir(), "remindcal.yaml")
	if err := newApp(&bytes.Buffer{}).Run([]string{"remindcal", "--config", confPath, "--log-level", "error", "preview"}); err == nil {
		t.Fatal("expected error without sources")
	}
}

func TestBackgroundOnlyCriticalFailureCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bg := &background{cancel: cancel}

	// A missing watch directory must not take the scheduler down.
	bg.Go("ics watch", false, func() error { return errors.New("no such directory") })
	bg.Wait()
	if ctx.Err() != nil {
		t.Fatal("non-critical failure cancelled the context")
	}

	bg.Go("scheduler", true, func() error { return errors.New("tick failed") })
	bg.Wait()
	if ctx.Err() == nil {
		t.Fatal("critical failure did not cancel the context")
	}
}
