// Package timewindow handles clock-time parsing and formatting for shop
// opening hours and slot labels. Times are minutes since midnight, which
// keeps slot arithmetic free of time zones and dates.
package timewindow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidTime = errors.New("invalid time of day")

const MinutesPerDay = 24 * 60

// Parse accepts "HH:MM" (24-hour) or "H:MM AM"/"H:MM PM" (12-hour) and
// returns minutes since midnight.
func Parse(s string) (int, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)

	meridiem := ""
	switch {
	case strings.HasSuffix(upper, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(upper, "PM"):
		meridiem = "PM"
	}
	if meridiem != "" {
		upper = strings.TrimSpace(upper[:len(upper)-2])
	}

	parts := strings.Split(upper, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	switch meridiem {
	case "":
		if hour < 0 || hour > 23 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	case "AM":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		if hour != 12 {
			hour += 12
		}
	}

	return hour*60 + minute, nil
}

// Format renders minutes since midnight as a zero-padded 12-hour label,
// e.g. 570 -> "09:30 AM". Midnight and noon both render as hour 12.
func Format(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	hour := minutes / 60
	min := minutes % 60

	meridiem := "AM"
	if hour >= 12 {
		meridiem = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%02d:%02d %s", display, min, meridiem)
}

// Format24 renders minutes since midnight as "HH:MM" in 24-hour form.
func Format24(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
