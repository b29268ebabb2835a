package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONOutputCarriesPairs(t *testing.T) {
	var buf bytes.Buffer
	Configure(LevelDebug, "json", &buf)
	defer Configure(LevelInfo, "console", nil)

	Error("tick failed", errors.New("boom"), "event_id", "ev_1", 42, "ignored", "dangling")

	var got map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if got["message"] != "tick failed" {
		t.Fatalf("message = %v", got["message"])
	}
	if got["err"] != "boom" {
		t.Fatalf("err = %v", got["err"])
	}
	if got["event_id"] != "ev_1" {
		t.Fatalf("event_id = %v", got["event_id"])
	}
	if _, ok := got["dangling"]; ok {
		t.Fatal("odd trailing value should be dropped")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Configure(LevelWarn, "json", &buf)
	defer Configure(LevelInfo, "console", nil)

	Info("hidden")
	Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn line missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
