package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationRe = regexp.MustCompile(`(\d+)\s*(second|minute|hour|day)s?`)
	clockRe    = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)`)
)

var unitSeconds = map[string]int{
	"second": 1,
	"minute": 60,
	"hour":   3600,
	"day":    86400,
}

// ParseDuration extracts every value+unit pair from a transcript and
// returns their sum in seconds. "a timer for 1 hour and 30 minutes"
// yields 5400. Zero with ok=false means no duration was found.
func ParseDuration(transcript string) (seconds int, ok bool) {
	matches := durationRe.FindAllStringSubmatch(strings.ToLower(transcript), -1)
	for _, m := range matches {
		value, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		seconds += value * unitSeconds[m[2]]
		ok = true
	}
	return seconds, ok
}

// ParseClockTime extracts an "h:mm am/pm" style time of day.
// "7:30 AM" and "7:30 a.m." both yield 07:30; "7 pm" yields 19:00.
func ParseClockTime(transcript string) (hour, minute int, ok bool) {
	m := clockRe.FindStringSubmatch(strings.ToLower(transcript))
	if m == nil {
		return 0, 0, false
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return 0, 0, false
	}
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}

	pm := strings.HasPrefix(m[3], "p")
	if pm && hour != 12 {
		hour += 12
	} else if !pm && hour == 12 {
		hour = 0
	}
	return hour, minute, true
}

// DecomposeDuration breaks total seconds into maximal whole units.
func DecomposeDuration(seconds int) (days, hours, minutes, secs int) {
	days = seconds / 86400
	seconds %= 86400
	hours = seconds / 3600
	seconds %= 3600
	minutes = seconds / 60
	secs = seconds % 60
	return
}

// FormatDuration renders seconds as a spoken phrase:
// 300 → "5 minutes", 90061 → "1 day, 1 hour, 1 minute and 1 second".
func FormatDuration(seconds int) string {
	days, hours, minutes, secs := DecomposeDuration(seconds)

	var parts []string
	appendPart := func(value int, unit string) {
		if value == 0 {
			return
		}
		if value > 1 {
			unit += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", value, unit))
	}
	appendPart(days, "day")
	appendPart(hours, "hour")
	appendPart(minutes, "minute")
	appendPart(secs, "second")

	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

// FormatTimeOfDay renders a clock time the way it should be spoken:
// leading zero stripped, AM/PM as "a.m."/"p.m.". 15:04 → "3:04 p.m.".
func FormatTimeOfDay(t time.Time) string {
	s := t.Format("3:04 PM")
	s = strings.Replace(s, "AM", "a.m.", 1)
	s = strings.Replace(s, "PM", "p.m.", 1)
	return s
}
