// Package prayer holds the canonical prayer schedule model and the pure
// schedule engine that decides which prayer is current, which is next, and
// how long remains until it.
package prayer

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Name identifies one of the six daily schedule slots.
type Name string

const (
	Fajr    Name = "Fajr"
	Sunrise Name = "Sunrise"
	Dhuhr   Name = "Dhuhr"
	Asr     Name = "Asr"
	Maghrib Name = "Maghrib"
	Isha    Name = "Isha"
)

// Names lists the slots in chronological order.
var Names = []Name{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}

// ShortNames maps slot names to single-character abbreviations.
var ShortNames = map[Name]string{
	Fajr:    "F",
	Sunrise: "S",
	Dhuhr:   "D",
	Asr:     "A",
	Maghrib: "M",
	Isha:    "I",
}

// ParseName matches a slot name case-insensitively.
func ParseName(s string) (Name, error) {
	for _, n := range Names {
		if strings.EqualFold(string(n), strings.TrimSpace(s)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown prayer %q", s)
}

// Times holds one day's six slots as "HH:MM" local-clock strings.
type Times struct {
	Fajr    string `json:"Fajr"`
	Sunrise string `json:"Sunrise"`
	Dhuhr   string `json:"Dhuhr"`
	Asr     string `json:"Asr"`
	Maghrib string `json:"Maghrib"`
	Isha    string `json:"Isha"`
}

// Get returns the clock string for the named slot, or "" for an unknown name.
func (t Times) Get(n Name) string {
	switch n {
	case Fajr:
		return t.Fajr
	case Sunrise:
		return t.Sunrise
	case Dhuhr:
		return t.Dhuhr
	case Asr:
		return t.Asr
	case Maghrib:
		return t.Maghrib
	case Isha:
		return t.Isha
	}
	return ""
}

// Validate checks that every slot is a parseable clock time.
func (t Times) Validate() error {
	for _, n := range Names {
		if _, _, err := ParseClock(t.Get(n)); err != nil {
			return fmt.Errorf("%s: %w", n, err)
		}
	}
	return nil
}

// ResolvedDay is what a source returns for "today". TimeZone is empty when
// the upstream did not report one.
type ResolvedDay struct {
	Times    Times
	TimeZone string
}

// Day is everything the engine needs to evaluate a schedule.
type Day struct {
	Times        Times  `json:"times"`
	TomorrowFajr string `json:"tomorrowFajr,omitempty"`
	TimeZone     string `json:"timeZone,omitempty"`
}

// DateLayout is the "DD.MM.YYYY" convention used for schedule rows.
const DateLayout = "02.01.2006"

// DailyEntry is one row of a multi-day schedule.
type DailyEntry struct {
	Date  string `json:"date"`
	Times Times  `json:"times"`
}

// Day returns the row's calendar date at midnight UTC.
func (e DailyEntry) Day() (time.Time, error) {
	t, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule date %q: %w", e.Date, err)
	}
	return t, nil
}

// FormatDate renders t's calendar date as "DD.MM.YYYY".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Info describes the state of the schedule at one instant.
type Info struct {
	Current     Name
	Next        Name
	NextTime    string
	Remaining   time.Duration
	IsAfterIsha bool
}

// Evaluate determines the current and next prayer at now.
//
// If timeZone names a loadable IANA zone, now is projected into that zone;
// otherwise now's own location is the frame. All comparisons are between
// wall-clock readings in that single frame. tomorrowFajr may be empty, in
// which case today's Fajr is reused for tomorrow.
func Evaluate(times Times, tomorrowFajr, timeZone string, now time.Time) (Info, error) {
	wall := wallClock(now, timeZone)

	slots := make([]time.Time, len(Names))
	for i, n := range Names {
		t, err := attach(times.Get(n), wall)
		if err != nil {
			return Info{}, fmt.Errorf("failed to parse time for %s (%q): %w", n, times.Get(n), err)
		}
		slots[i] = t
	}

	for i := len(slots) - 1; i >= 0; i-- {
		if wall.Before(slots[i]) {
			continue
		}

		info := Info{Current: Names[i]}
		if i < len(slots)-1 {
			info.Next = Names[i+1]
			info.NextTime = times.Get(Names[i+1])
			info.Remaining = truncate(slots[i+1].Sub(wall))
			return info, nil
		}

		info.IsAfterIsha = true
		info.Next = Fajr
		info.NextTime = times.Fajr
		if tomorrowFajr != "" {
			info.NextTime = tomorrowFajr
		}
		next, err := attach(info.NextTime, wall.AddDate(0, 0, 1))
		if err != nil {
			return Info{}, fmt.Errorf("failed to parse tomorrow's Fajr (%q): %w", info.NextTime, err)
		}
		info.Remaining = truncate(next.Sub(wall))
		return info, nil
	}

	// Before today's Fajr: last night's Isha is still running.
	return Info{
		Current:   Isha,
		Next:      Fajr,
		NextTime:  times.Fajr,
		Remaining: truncate(slots[0].Sub(wall)),
	}, nil
}

// TimeUntil returns the time remaining until the given slot, attaching it to
// today in the schedule frame and rolling to tomorrow once it has passed.
// When rolling Fajr over, tomorrowFajr is used if provided.
func TimeUntil(times Times, tomorrowFajr string, target Name, timeZone string, now time.Time) (time.Duration, error) {
	clock := times.Get(target)
	if clock == "" {
		return 0, fmt.Errorf("unknown prayer %q", target)
	}

	wall := wallClock(now, timeZone)
	at, err := attach(clock, wall)
	if err != nil {
		return 0, fmt.Errorf("failed to parse time for %s (%q): %w", target, clock, err)
	}
	if at.After(wall) {
		return truncate(at.Sub(wall)), nil
	}

	if target == Fajr && tomorrowFajr != "" {
		clock = tomorrowFajr
	}
	at, err = attach(clock, wall.AddDate(0, 0, 1))
	if err != nil {
		return 0, fmt.Errorf("failed to parse time for %s (%q): %w", target, clock, err)
	}
	return truncate(at.Sub(wall)), nil
}

var zoneCache sync.Map // name -> *time.Location

func loadZone(name string) (*time.Location, bool) {
	if v, ok := zoneCache.Load(name); ok {
		return v.(*time.Location), true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	zoneCache.Store(name, loc)
	return loc, true
}

// wallClock returns now's wall-clock reading in the schedule frame,
// expressed as a UTC instant so that arithmetic ignores DST offsets.
func wallClock(now time.Time, timeZone string) time.Time {
	if timeZone != "" {
		if loc, ok := loadZone(timeZone); ok {
			now = now.In(loc)
		}
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC)
}

// attach places an "HH:MM" clock reading on day's calendar date.
func attach(clock string, day time.Time) (time.Time, error) {
	hour, min, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, min, 0, 0, time.UTC), nil
}

func truncate(d time.Duration) time.Duration {
	return d.Truncate(time.Millisecond)
}
