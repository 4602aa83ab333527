package prayer

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Format constants for one-line status output.
const (
	FormatHMS                = "countdown"
	FormatTimeRemaining      = "time-remaining"
	FormatNextPrayerTime     = "next-prayer-time"
	FormatNameAndTime        = "name-and-time"
	FormatNameAndRemaining   = "name-and-remaining"
	FormatNameAndCountdown   = "name-and-countdown"
	FormatShortNameAndTime   = "short-name-and-time"
	FormatShortNameAndRemain = "short-name-and-remaining"
	FormatFull               = "full"
)

// FormatData is the data passed to custom Go templates.
type FormatData struct {
	Name      string // Full prayer name, e.g. "Asr"
	ShortName string // Abbreviated name, e.g. "A"
	Time      string // Formatted prayer time, e.g. "15:02" or "3:02 PM"
	Remaining string // e.g. "2h 15m"
	Countdown string // e.g. "02:15:00"
	Hours     int
	Minutes   int
	Seconds   int
}

// FormatCountdown renders d as "HH:MM:SS". Non-positive durations render as
// "00:00:00".
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "00:00:00"
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatRemaining formats a duration as "Xh Ym" or "Ym" if less than an hour.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		return "0m"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// FormatClock renders an "HH:MM" clock using a Go time layout such as
// "15:04" or "3:04 PM". Unparseable input is returned unchanged.
func FormatClock(clock, layout string) string {
	hour, min, err := ParseClock(clock)
	if err != nil {
		return clock
	}
	return time.Date(2000, 1, 1, hour, min, 0, 0, time.UTC).Format(layout)
}

// FormatOutput formats the next prayer of info according to mode.
// timeFormat should be "15:04" for 24h or "3:04 PM" for 12h.
//
// If mode contains "{{", it is treated as a custom Go template string.
// Available template fields: .Name, .ShortName, .Time, .Remaining,
// .Countdown, .Hours, .Minutes, .Seconds
//
// Example: "{{.Name}} in {{.Countdown}}" -> "Asr in 02:15:00"
func FormatOutput(info Info, mode string, timeFormat string) string {
	d := info.Remaining
	remaining := FormatRemaining(d)
	countdown := FormatCountdown(d)
	timeStr := FormatClock(info.NextTime, timeFormat)
	name := string(info.Next)
	short := ShortNames[info.Next]

	if strings.Contains(mode, "{{") {
		return formatCustom(mode, FormatData{
			Name:      name,
			ShortName: short,
			Time:      timeStr,
			Remaining: remaining,
			Countdown: countdown,
			Hours:     int(d.Hours()),
			Minutes:   int(d.Minutes()) % 60,
			Seconds:   int(d.Seconds()) % 60,
		})
	}

	switch mode {
	case FormatHMS:
		return countdown
	case FormatTimeRemaining:
		return remaining
	case FormatNextPrayerTime:
		return timeStr
	case FormatNameAndTime:
		return fmt.Sprintf("%s %s", name, timeStr)
	case FormatNameAndRemaining:
		return fmt.Sprintf("%s %s", name, remaining)
	case FormatNameAndCountdown:
		return fmt.Sprintf("%s %s", name, countdown)
	case FormatShortNameAndTime:
		return fmt.Sprintf("%s %s", short, timeStr)
	case FormatShortNameAndRemain:
		return fmt.Sprintf("%s %s", short, remaining)
	case FormatFull:
		return fmt.Sprintf("%s %s (%s)", name, timeStr, countdown)
	default:
		return fmt.Sprintf("%s %s", name, timeStr)
	}
}

func formatCustom(tmpl string, data FormatData) string {
	t, err := template.New("custom").Parse(tmpl)
	if err != nil {
		return fmt.Sprintf("template-err: %v", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Sprintf("template-err: %v", err)
	}

	return buf.String()
}
