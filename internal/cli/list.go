package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/salahnow/internal/display"
	"github.com/smokyabdulrahman/salahnow/internal/geo"
	"github.com/smokyabdulrahman/salahnow/internal/prayer"
	"github.com/smokyabdulrahman/salahnow/internal/service"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [days]",
		Short: "Show prayer times for multiple days",
		Long:  fmt.Sprintf("Display a grid of prayer times for N days starting today (default: 7, max: %d).", service.WindowDays),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args, 7)
		},
	}
}

func newWeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "Show prayer times for the next 7 days",
		Long:  "Alias for 'list 7'.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, nil, 7)
		},
	}
}

func newMonthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "month",
		Short: "Show prayer times for the next 30 days",
		Long:  "Alias for 'list 30'. The 30-day schedule is cached and served offline.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, nil, service.WindowDays)
		},
	}
}

// parseDays validates the optional day count argument.
func parseDays(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > service.WindowDays {
		return 0, fmt.Errorf("invalid number of days: %q (must be between 1 and %d)", args[0], service.WindowDays)
	}
	return n, nil
}

// fetchDays returns up to days rows starting today.
func fetchDays(cmd *cobra.Command, a *app, days int) (geo.Location, []prayer.DailyEntry, error) {
	ctx := contextOf(cmd)
	loc, err := resolveLocation(ctx, a.cfg, a.svc)
	if err != nil {
		return geo.Location{}, nil, err
	}
	entries, err := a.svc.FetchWindow(ctx, loc, a.source)
	if err != nil {
		return geo.Location{}, nil, err
	}
	return loc, upcoming(entries, prayer.FormatDate(clock()), days), nil
}

// upcoming drops rows before today and keeps at most days rows. A window
// that no longer contains today (served stale) is returned from its start.
func upcoming(entries []prayer.DailyEntry, today string, days int) []prayer.DailyEntry {
	for i, e := range entries {
		if e.Date == today {
			entries = entries[i:]
			break
		}
	}
	if len(entries) > days {
		entries = entries[:days]
	}
	return entries
}

func runList(cmd *cobra.Command, args []string, defaultDays int) error {
	days, err := parseDays(args, defaultDays)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	loc, entries, err := fetchDays(cmd, a, days)
	if err != nil {
		return err
	}

	layout := display.ClockLayout(a.cfg.TimeFormat)
	if FlagJSON {
		return printListJSON(cmd.OutOrStdout(), loc, entries, layout)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s\n", display.Bold(fmt.Sprintf("Prayer Times: %s", loc)))
	fmt.Fprintln(out)
	fmt.Fprint(out, display.WindowTable(entries, clock(), layout))
	fmt.Fprintln(out)
	return nil
}

type listJSONDay struct {
	Date    string            `json:"date"`
	Timings map[string]string `json:"timings"`
}

type listJSON struct {
	Location string        `json:"location"`
	Days     []listJSONDay `json:"days"`
}

func printListJSON(w io.Writer, loc geo.Location, entries []prayer.DailyEntry, layout string) error {
	out := listJSON{Location: loc.String(), Days: make([]listJSONDay, 0, len(entries))}
	for _, e := range entries {
		timings := make(map[string]string, len(prayer.Names))
		for _, n := range prayer.Names {
			timings[strings.ToLower(string(n))] = prayer.FormatClock(e.Times.Get(n), layout)
		}
		out.Days = append(out.Days, listJSONDay{Date: e.Date, Timings: timings})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
