package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/salahnow/internal/countdown"
	"github.com/smokyabdulrahman/salahnow/internal/display"
	"github.com/smokyabdulrahman/salahnow/internal/geo"
	"github.com/smokyabdulrahman/salahnow/internal/prayer"
	"github.com/smokyabdulrahman/salahnow/internal/service"
	"github.com/smokyabdulrahman/salahnow/internal/source"
)

// clock is replaced in tests.
var clock = time.Now

// today is the fetched schedule plus its rendered state.
type today struct {
	loc    geo.Location
	result service.Result
	state  countdown.State
	layout string
}

// loadToday resolves the location, fetches today's schedule and renders it.
func loadToday(cmd *cobra.Command, a *app) (*today, error) {
	ctx := contextOf(cmd)
	loc, err := resolveLocation(ctx, a.cfg, a.svc)
	if err != nil {
		return nil, err
	}

	result, err := a.svc.FetchPrayerTimes(ctx, loc, a.source)
	if err != nil {
		return nil, err
	}

	mode, err := countdown.ParseMode(a.cfg.CountdownMode)
	if err != nil {
		return nil, err
	}
	st, err := countdown.Render(result.Day, mode, clock())
	if err != nil {
		return nil, err
	}
	st.Date, st.Stale = result.Date, result.Stale

	return &today{
		loc:    loc,
		result: result,
		state:  st,
		layout: display.ClockLayout(a.cfg.TimeFormat),
	}, nil
}

func runToday(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	t, err := loadToday(cmd, a)
	if err != nil {
		return err
	}

	if FlagJSON {
		return printTodayJSON(cmd.OutOrStdout(), t)
	}
	printTodayRich(cmd.OutOrStdout(), t)
	return nil
}

// sourceLabel describes the source actually used.
func sourceLabel(res source.Resolution) string {
	label := res.Source.Description()
	if res.Source == source.District && res.DistrictID != "" {
		label += ", district " + res.DistrictID
	}
	if res.Forced {
		label += " (outside Türkiye)"
	}
	return label
}

// printTodayRich renders the colored terminal output for today's schedule.
func printTodayRich(w io.Writer, t *today) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", display.Bold("Prayer Times"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", t.loc)
	fmt.Fprintf(w, "  %s\n", display.Dim(sourceLabel(t.result.Resolution)))
	if tz := t.result.Day.TimeZone; tz != "" {
		fmt.Fprintf(w, "  %s\n", tz)
	}
	fmt.Fprintf(w, "  %s\n", formatDate(t.result.Date))
	if t.result.Stale {
		fmt.Fprintf(w, "  %s\n", display.Warn("offline: showing cached times from "+t.result.Date))
	}
	fmt.Fprintln(w)
	for _, line := range strings.Split(strings.TrimRight(display.PrayerList(t.state, t.layout), "\n"), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", display.StatusLine(t.state, t.layout))
	fmt.Fprintln(w)
}

// formatDate renders a YYYY-MM-DD cache date as "15 June 2024".
func formatDate(date string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return d.Format("02 January 2006")
}

// todayJSON is the JSON output structure for the root command.
type todayJSON struct {
	Location todayJSONLocation `json:"location"`
	Source   string            `json:"source"`
	Forced   bool              `json:"forced,omitempty"`
	Date     string            `json:"date"`
	Stale    bool              `json:"stale,omitempty"`
	Timings  map[string]string `json:"timings"`
	Current  string            `json:"current"`
	Next     todayJSONNext     `json:"next"`
	// Target is the slot Remaining and Countdown run to.
	Target string `json:"target"`
}

type todayJSONLocation struct {
	City        string  `json:"city"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"countryCode,omitempty"`
	DistrictID  string  `json:"districtId,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
}

type todayJSONNext struct {
	Prayer    string `json:"prayer"`
	Time      string `json:"time"`
	Remaining string `json:"remaining"`
	Countdown string `json:"countdown"`
}

// printTodayJSON renders structured JSON output.
func printTodayJSON(w io.Writer, t *today) error {
	timings := make(map[string]string, len(t.state.Items))
	for _, it := range t.state.Items {
		timings[strings.ToLower(string(it.Name))] = prayer.FormatClock(it.Time, t.layout)
	}

	out := todayJSON{
		Location: todayJSONLocation{
			City:        t.loc.City,
			Country:     t.loc.Country,
			CountryCode: t.loc.CountryCode,
			DistrictID:  t.result.Resolution.DistrictID,
			Timezone:    t.result.Day.TimeZone,
			Latitude:    t.loc.Latitude,
			Longitude:   t.loc.Longitude,
		},
		Source:  string(t.result.Resolution.Source),
		Forced:  t.result.Resolution.Forced,
		Date:    t.result.Date,
		Stale:   t.result.Stale,
		Timings: timings,
		Current: strings.ToLower(string(t.state.Current)),
		Next: todayJSONNext{
			Prayer:    strings.ToLower(string(t.state.Next)),
			Time:      prayer.FormatClock(t.state.NextTime, t.layout),
			Remaining: prayer.FormatRemaining(t.state.Remaining),
			Countdown: t.state.Countdown,
		},
		Target: strings.ToLower(string(t.state.Target)),
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
