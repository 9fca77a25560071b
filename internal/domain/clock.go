package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrBadTimeOfDay = errors.New("invalid time of day, expected HH:MM")

// DurationUntil returns how long to wait from now until the next occurrence
// of the given wall-clock time ("HH:MM") in now's location. If that time has
// already passed today (or is exactly now), the target rolls to tomorrow.
func DurationUntil(now time.Time, timeOfDay string) (time.Duration, error) {
	h, m, err := parseHHMM(timeOfDay)
	if err != nil {
		return 0, err
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(now), nil
}

func parseHHMM(s string) (h, m int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, ErrBadTimeOfDay
	}
	h, err = strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, ErrBadTimeOfDay
	}
	m, err = strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, ErrBadTimeOfDay
	}
	return h, m, nil
}

// FormatRemaining renders a duration as user-facing remaining-time text,
// e.g. "2 д. 3 ч. 15 м.". Seconds are dropped; a sub-minute duration
// renders as an empty string, matching how deadlines are announced.
func FormatRemaining(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 0 {
		secs = 0
	}

	var parts []string
	if days := secs / 86400; days > 0 {
		parts = append(parts, fmt.Sprintf("%d д.", days))
		secs -= days * 86400
	}
	if hours := secs / 3600; hours > 0 {
		parts = append(parts, fmt.Sprintf("%d ч.", hours))
		secs -= hours * 3600
	}
	if mins := secs / 60; mins > 0 {
		parts = append(parts, fmt.Sprintf("%d м.", mins))
	}
	return strings.Join(parts, " ")
}

// OffsetsText renders a reminder ladder for the settings screen,
// e.g. "За 24 ч., за 3 ч. и за 30 м.".
func OffsetsText(o ReminderOffsets) string {
	n := o.Count()
	if n == 0 {
		return "—"
	}

	var b strings.Builder
	for i := 0; i < n; i++ {
		switch {
		case i == 0:
			b.WriteString("За ")
		case i == n-1:
			b.WriteString(" и за ")
		default:
			b.WriteString(", за ")
		}
		b.WriteString(FormatRemaining(*o[i]))
	}
	return b.String()
}

// ParseDueDate parses a "DD.MM.YYYY" deadline entered by the user. The due
// instant is the end of that day (23:59 local), matching how deadlines are
// stored at note creation.
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("02.01.2006", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 0, 0, loc), nil
}
