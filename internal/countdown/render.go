// Package countdown turns a day's schedule into display state and keeps it
// current with a cancellable once-a-second tick.
package countdown

import (
	"fmt"
	"strings"
	"time"

	"github.com/smokyabdulrahman/salahnow/internal/prayer"
)

// Mode selects what the countdown counts down to.
type Mode string

const (
	ModeNextPrayer Mode = "next-prayer"
	ModePreDawn    Mode = "pre-dawn" // Fajr
	ModeSunset     Mode = "sunset"   // Maghrib
)

// Modes lists every accepted mode.
var Modes = []Mode{ModeNextPrayer, ModePreDawn, ModeSunset}

// ParseMode validates a mode name. Empty input is ModeNextPrayer.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeNextPrayer, nil
	}
	for _, m := range Modes {
		if s == string(m) {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid countdown mode %q (valid: %s, %s, %s)", s, ModeNextPrayer, ModePreDawn, ModeSunset)
}

// Target is the slot the mode pins, or "" for ModeNextPrayer.
func (m Mode) Target() prayer.Name {
	switch m {
	case ModePreDawn:
		return prayer.Fajr
	case ModeSunset:
		return prayer.Maghrib
	}
	return ""
}

// Item is one row of the six-slot display list.
type Item struct {
	Name     prayer.Name
	Time     string
	IsActive bool
}

// State is what a consumer draws.
type State struct {
	Loading bool

	Current     prayer.Name
	Next        prayer.Name
	NextTime    string
	Target      prayer.Name // slot the countdown runs to
	TargetTime  string      // "HH:MM" of Target on the day the countdown ends
	Countdown   string      // HH:MM:SS
	Remaining   time.Duration
	IsAfterIsha bool
	Items       []Item

	// Date and Stale describe the schedule the state was computed from.
	Date  string
	Stale bool

	// Err is the last fetch error. It can be set alongside values computed
	// from the last good schedule.
	Err error
}

// Render computes the display state for day at now.
func Render(day prayer.Day, mode Mode, now time.Time) (State, error) {
	info, err := prayer.Evaluate(day.Times, day.TomorrowFajr, day.TimeZone, now)
	if err != nil {
		return State{}, err
	}

	st := State{
		Current:     info.Current,
		Next:        info.Next,
		NextTime:    info.NextTime,
		Target:      info.Next,
		TargetTime:  info.NextTime,
		Remaining:   info.Remaining,
		IsAfterIsha: info.IsAfterIsha,
		Items:       make([]Item, 0, len(prayer.Names)),
	}

	if target := mode.Target(); target != "" {
		d, err := prayer.TimeUntil(day.Times, day.TomorrowFajr, target, day.TimeZone, now)
		if err != nil {
			return State{}, err
		}
		st.Target = target
		st.TargetTime = day.Times.Get(target)
		st.Remaining = d

		// A Fajr target that rolled over to tomorrow ends at tomorrow's Fajr.
		if target == prayer.Fajr && day.TomorrowFajr != "" && day.TomorrowFajr != day.Times.Fajr {
			today, err := prayer.TimeUntil(day.Times, "", target, day.TimeZone, now)
			if err != nil {
				return State{}, err
			}
			if today != d {
				st.TargetTime = day.TomorrowFajr
			}
		}
	}
	st.Countdown = prayer.FormatCountdown(st.Remaining)

	for _, n := range prayer.Names {
		st.Items = append(st.Items, Item{
			Name:     n,
			Time:     day.Times.Get(n),
			IsActive: info.Current == n && info.Current != prayer.Sunrise,
		})
	}
	return st, nil
}
