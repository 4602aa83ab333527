package prayer

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock parses a time-of-day such as "15:02", "05:17:30" or
// "15:02 (BST)" into hour and minute. Seconds and any suffix after the
// first space are ignored.
func ParseClock(raw string) (hour, min int, err error) {
	s := strings.TrimSpace(raw)
	if idx := strings.IndexAny(s, " \t"); idx != -1 {
		s = s[:idx]
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("invalid time format: %q", raw)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	min, err = strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}

	return hour, min, nil
}

// NormalizeClock rewrites an upstream time-of-day as zero-padded "HH:MM".
func NormalizeClock(raw string) (string, error) {
	hour, min, err := ParseClock(raw)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", hour, min), nil
}

// NormalizeTimes applies NormalizeClock to every slot.
func NormalizeTimes(t Times) (Times, error) {
	var out Times
	var err error
	if out.Fajr, err = NormalizeClock(t.Fajr); err != nil {
		return Times{}, fmt.Errorf("Fajr: %w", err)
	}
	if out.Sunrise, err = NormalizeClock(t.Sunrise); err != nil {
		return Times{}, fmt.Errorf("Sunrise: %w", err)
	}
	if out.Dhuhr, err = NormalizeClock(t.Dhuhr); err != nil {
		return Times{}, fmt.Errorf("Dhuhr: %w", err)
	}
	if out.Asr, err = NormalizeClock(t.Asr); err != nil {
		return Times{}, fmt.Errorf("Asr: %w", err)
	}
	if out.Maghrib, err = NormalizeClock(t.Maghrib); err != nil {
		return Times{}, fmt.Errorf("Maghrib: %w", err)
	}
	if out.Isha, err = NormalizeClock(t.Isha); err != nil {
		return Times{}, fmt.Errorf("Isha: %w", err)
	}
	return out, nil
}
