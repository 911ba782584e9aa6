package command

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		transcript string
		want       int
		ok         bool
	}{
		{"set a timer for 5 minutes", 300, true},
		{"set a timer for 1 minute", 60, true},
		{"set a timer for 90 seconds", 90, true},
		{"set a timer for 2 hours", 7200, true},
		{"set a timer for 1 day", 86400, true},
		{"set a timer for 1 hour and 30 minutes", 5400, true},
		{"set a timer for 1 day, 1 hour, 1 minute and 1 second", 90061, true},
		{"set a timer", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseDuration(tt.transcript)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDuration(%q) = (%d, %v), want (%d, %v)", tt.transcript, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		transcript   string
		hour, minute int
		ok           bool
	}{
		{"set an alarm for 7:30 AM", 7, 30, true},
		{"set an alarm for 7:30 a.m.", 7, 30, true},
		{"wake me up at 7 pm", 19, 0, true},
		{"set the alarm for 12:00 AM", 0, 0, true},
		{"set the alarm for 12:15 PM", 12, 15, true},
		{"set an alarm for 11:59 p.m.", 23, 59, true},
		{"set an alarm", 0, 0, false},
		{"set an alarm for 13:00 PM", 0, 0, false},
	}

	for _, tt := range tests {
		hour, minute, ok := ParseClockTime(tt.transcript)
		if hour != tt.hour || minute != tt.minute || ok != tt.ok {
			t.Errorf("ParseClockTime(%q) = (%d, %d, %v), want (%d, %d, %v)",
				tt.transcript, hour, minute, ok, tt.hour, tt.minute, tt.ok)
		}
	}
}

func TestDecomposeDuration(t *testing.T) {
	days, hours, minutes, secs := DecomposeDuration(90061)
	if days != 1 || hours != 1 || minutes != 1 || secs != 1 {
		t.Fatalf("DecomposeDuration(90061) = (%d, %d, %d, %d), want (1, 1, 1, 1)", days, hours, minutes, secs)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{300, "5 minutes"},
		{60, "1 minute"},
		{1, "1 second"},
		{90061, "1 day, 1 hour, 1 minute and 1 second"},
		{5400, "1 hour and 30 minutes"},
		{172800, "2 days"},
		{0, "0 seconds"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

// Formatting then re-parsing the spoken confirmation must recover the
// original number of seconds.
func TestDurationRoundTrip(t *testing.T) {
	for _, seconds := range []int{1, 60, 300, 3661, 5400, 86400, 90061} {
		spoken := FormatDuration(seconds)
		parsed, ok := ParseDuration(spoken)
		if !ok || parsed != seconds {
			t.Errorf("round trip %d → %q → (%d, %v)", seconds, spoken, parsed, ok)
		}
	}
}

func TestFormatTimeOfDay(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         string
	}{
		{15, 4, "3:04 p.m."},
		{7, 30, "7:30 a.m."},
		{0, 5, "12:05 a.m."},
		{12, 0, "12:00 p.m."},
	}

	for _, tt := range tests {
		ts := time.Date(2024, 6, 1, tt.hour, tt.minute, 0, 0, time.UTC)
		if got := FormatTimeOfDay(ts); got != tt.want {
			t.Errorf("FormatTimeOfDay(%02d:%02d) = %q, want %q", tt.hour, tt.minute, got, tt.want)
		}
	}
}
