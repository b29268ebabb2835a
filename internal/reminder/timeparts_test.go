package reminder

import (
	"errors"
	"testing"
	"time"
)

func TestTo24Hour(t *testing.T) {
	t.Parallel()
	tests := []struct {
		hour     int
		meridiem string
		want     int
	}{
		{12, "AM", 0},
		{1, "AM", 1},
		{11, "AM", 11},
		{12, "PM", 12},
		{7, "PM", 19},
		{11, "pm", 23},
		{1, " am ", 1},
	}
	for _, tt := range tests {
		got, err := To24Hour(tt.hour, tt.meridiem)
		if err != nil {
			t.Fatalf("To24Hour(%d, %q): %v", tt.hour, tt.meridiem, err)
		}
		if got != tt.want {
			t.Errorf("To24Hour(%d, %q) = %d, want %d", tt.hour, tt.meridiem, got, tt.want)
		}
	}
}

func TestTo24HourInvalid(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		hour     int
		meridiem string
	}{
		{0, "AM"}, {13, "PM"}, {7, ""}, {7, "XM"},
	} {
		if _, err := To24Hour(tc.hour, tc.meridiem); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("To24Hour(%d, %q) err = %v, want ErrInvalidInput", tc.hour, tc.meridiem, err)
		}
	}
}

func TestBuildTime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		parts TimeParts
		want  time.Time
	}{
		{"midnight", TimeParts{"2025-06-01", 12, 0, "AM"}, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"noon", TimeParts{"2025-06-01", 12, 0, "PM"}, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		{"evening", TimeParts{"2025-06-01", 7, 30, "PM"}, time.Date(2025, 6, 1, 19, 30, 0, 0, time.UTC)},
		{"leap day", TimeParts{"2024-02-29", 9, 5, "AM"}, time.Date(2024, 2, 29, 9, 5, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildTime(tt.parts, time.UTC)
			if err != nil {
				t.Fatalf("BuildTime: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("BuildTime = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildTimeInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		parts TimeParts
		field string
	}{
		{"no date", TimeParts{"", 9, 0, "AM"}, "date"},
		{"impossible date", TimeParts{"2025-02-30", 9, 0, "AM"}, "date"},
		{"not a date", TimeParts{"tomorrow", 9, 0, "AM"}, "date"},
		{"hour zero", TimeParts{"2025-06-01", 0, 0, "AM"}, "hour"},
		{"minute 60", TimeParts{"2025-06-01", 9, 60, "AM"}, "minute"},
		{"negative minute", TimeParts{"2025-06-01", 9, -1, "AM"}, "minute"},
		{"bad meridiem", TimeParts{"2025-06-01", 9, 0, "noon"}, "meridiem"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTime(tt.parts, time.UTC)
			var ie *InputError
			if !errors.As(err, &ie) || ie.Field != tt.field {
				t.Fatalf("err = %v, want InputError on %q", err, tt.field)
			}
		})
	}
}

func TestSplitTimeRoundTrip(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("test", -5*3600)
	for _, h := range []int{0, 1, 11, 12, 13, 23} {
		in := time.Date(2025, 12, 31, h, 45, 0, 0, loc)
		parts := SplitTime(in, loc)
		out, err := BuildTime(parts, loc)
		if err != nil {
			t.Fatalf("BuildTime(%+v): %v", parts, err)
		}
		if !out.Equal(in) {
			t.Fatalf("round trip %v -> %+v -> %v", in, parts, out)
		}
	}
	if p := SplitTime(time.Date(2025, 1, 1, 0, 15, 0, 0, loc), loc); p.Hour != 12 || p.Meridiem != "AM" {
		t.Fatalf("midnight split = %+v", p)
	}
}
