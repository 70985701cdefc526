package tools

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	relativePattern = regexp.MustCompile(`^in\s+(\d+)\s+(minute|minutes|min|mins|hour|hours|hr|hrs|day|days|week|weeks)$`)
	clockPattern    = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// defaultHour is used when a phrase names a day but no clock time.
const defaultHour = 9

// ParseWhen resolves a natural due-date phrase against a reference time.
// Supported forms: absolute dates ("2026-09-02", "2026-09-02 15:04",
// RFC3339), relative offsets ("in 20 minutes", "in 2 days"), day words
// ("today", "tomorrow", "tonight"), weekday names ("friday",
// "next friday"), and clock times ("at 9am", "9:30pm", "15:00"),
// alone or combined with a day word.
func ParseWhen(phrase string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(phrase))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty due phrase")
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, phrase, now.Location()); err == nil {
			if layout == "2006-01-02" {
				t = t.Add(defaultHour * time.Hour)
			}
			return t, nil
		}
	}

	if m := relativePattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch {
		case strings.HasPrefix(m[2], "min"):
			return now.Add(time.Duration(n) * time.Minute), nil
		case strings.HasPrefix(m[2], "h"):
			return now.Add(time.Duration(n) * time.Hour), nil
		case strings.HasPrefix(m[2], "day"):
			return now.AddDate(0, 0, n), nil
		default:
			return now.AddDate(0, 0, 7*n), nil
		}
	}

	switch s {
	case "noon":
		return atClock(dayOf(now), 12, 0, now), nil
	case "midnight":
		return atClock(dayOf(now).AddDate(0, 0, 1), 0, 0, now), nil
	case "tonight", "this evening":
		return atClock(dayOf(now), 20, 0, now), nil
	}

	day := dayOf(now)
	rest := s
	dated := false

	switch {
	case strings.HasPrefix(s, "today"):
		rest = strings.TrimSpace(strings.TrimPrefix(s, "today"))
		dated = true
	case strings.HasPrefix(s, "tomorrow"):
		day = day.AddDate(0, 0, 1)
		rest = strings.TrimSpace(strings.TrimPrefix(s, "tomorrow"))
		dated = true
	default:
		candidate := strings.TrimPrefix(s, "next ")
		for name, wd := range weekdays {
			if candidate == name || strings.HasPrefix(candidate, name+" ") {
				// "friday" and "next friday" both resolve to the soonest
				// future occurrence of that weekday.
				ahead := (int(wd) - int(now.Weekday()) + 7) % 7
				if ahead == 0 {
					ahead = 7
				}
				day = day.AddDate(0, 0, ahead)
				rest = strings.TrimSpace(strings.TrimPrefix(candidate, name))
				dated = true
				break
			}
		}
	}

	rest = strings.TrimSpace(strings.TrimPrefix(rest, "at "))
	if rest == "at" {
		rest = ""
	}

	if rest == "" {
		if !dated {
			return time.Time{}, fmt.Errorf("unrecognized due phrase %q", phrase)
		}
		t := atClock(day, defaultHour, 0, now)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	hour, minute, err := parseClock(rest)
	if err != nil {
		if !dated {
			return time.Time{}, fmt.Errorf("unrecognized due phrase %q", phrase)
		}
		return time.Time{}, fmt.Errorf("unrecognized time %q in due phrase", rest)
	}
	t := atClock(day, hour, minute, now)
	if !dated && !t.After(now) {
		// Bare clock times roll to the next day once passed.
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func parseClock(s string) (int, int, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("not a clock time: %q", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "":
		if m[2] == "" {
			return 0, 0, fmt.Errorf("ambiguous bare hour %q", s)
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("clock time out of range: %q", s)
	}
	return hour, minute, nil
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func atClock(day time.Time, hour, minute int, ref time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, ref.Location())
}
