package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/smokyabdulrahman/salahnow/internal/countdown"
	"github.com/smokyabdulrahman/salahnow/internal/prayer"
)

// ClockLayout maps the time_format setting to a Go time layout.
func ClockLayout(timeFormat string) string {
	if timeFormat == "12h" {
		return "3:04 PM"
	}
	return "15:04"
}

// PrayerList renders the six slots of st, one per line, with the active
// prayer highlighted and the next one marked.
func PrayerList(st countdown.State, layout string) string {
	var sb strings.Builder
	for _, it := range st.Items {
		line := pad(string(it.Name), 8) + "  " + pad(prayer.FormatClock(it.Time, layout), 8)
		switch {
		case it.IsActive:
			sb.WriteString(Accent("▸ " + line))
		case it.Name == st.Next:
			sb.WriteString("  " + line + Dim("next"))
		default:
			sb.WriteString("  " + line)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// StatusLine renders the one-line countdown shown by watch and today.
func StatusLine(st countdown.State, layout string) string {
	if st.Loading {
		return Dim("loading prayer times...")
	}
	if len(st.Items) == 0 {
		if st.Err != nil {
			return Alert("error: " + st.Err.Error())
		}
		return ""
	}

	clock := st.TargetTime
	if clock == "" {
		for _, it := range st.Items {
			if it.Name == st.Target {
				clock = it.Time
			}
		}
	}

	line := fmt.Sprintf("%s in %s (%s)", Bold(string(st.Target)), st.Countdown, prayer.FormatClock(clock, layout))
	if st.Stale {
		line += " " + Warn("[cached "+st.Date+"]")
	}
	if st.Err != nil {
		line += " " + Alert("[refresh failed]")
	}
	return line
}

// WindowTable renders a multi-day schedule with today's row highlighted.
func WindowTable(entries []prayer.DailyEntry, today time.Time, layout string) string {
	headers := make([]string, 0, len(prayer.Names)+1)
	headers = append(headers, "Date")
	for _, n := range prayer.Names {
		headers = append(headers, string(n))
	}

	tbl := NewTable(headers)
	todayStr := prayer.FormatDate(today)
	for i, e := range entries {
		label := e.Date
		if d, err := e.Day(); err == nil {
			label = d.Format("Mon 02 Jan")
		}
		row := []string{label}
		for _, n := range prayer.Names {
			row = append(row, prayer.FormatClock(e.Times.Get(n), layout))
		}
		tbl.AddRow(row)
		if e.Date == todayStr {
			tbl.SetHighlightRow(i)
		}
	}
	return tbl.Render()
}
