package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/salahnow/internal/display"
	"github.com/smokyabdulrahman/salahnow/internal/geo"
	"github.com/smokyabdulrahman/salahnow/internal/prayer"
	"github.com/smokyabdulrahman/salahnow/internal/service"
)

var flagQueryDays string

func newQueryCmd() *cobra.Command {
	names := make([]string, len(prayer.Names))
	for i, n := range prayer.Names {
		names[i] = string(n)
	}

	cmd := &cobra.Command{
		Use:   "query <prayer>",
		Short: "Query a specific prayer time",
		Long:  "Query a specific prayer time for today, or across multiple days with --days.\n\nValid prayer names: " + strings.Join(names, ", "),
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}

	cmd.Flags().StringVar(&flagQueryDays, "days", "", "Number of days to show (or 'week'/'month')")

	return cmd
}

// parseQueryDays accepts a positive count, "week" or "month".
func parseQueryDays(v string) (int, error) {
	switch v {
	case "":
		return 1, nil
	case "week":
		return 7, nil
	case "month":
		return service.WindowDays, nil
	}
	days, err := parseDays([]string{v}, 1)
	if err != nil {
		return 0, fmt.Errorf("invalid --days value %q: must be 1-%d, 'week', or 'month'", v, service.WindowDays)
	}
	return days, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	name, err := prayer.ParseName(args[0])
	if err != nil {
		return err
	}
	days, err := parseQueryDays(flagQueryDays)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	layout := display.ClockLayout(a.cfg.TimeFormat)
	if days == 1 {
		return runQuerySingleDay(cmd, a, name, layout)
	}
	return runQueryMultiDay(cmd, a, name, days, layout)
}

type queryJSONSingle struct {
	Prayer    string `json:"prayer"`
	Time      string `json:"time"`
	Date      string `json:"date"`
	Remaining string `json:"remaining"`
	Stale     bool   `json:"stale,omitempty"`
}

func runQuerySingleDay(cmd *cobra.Command, a *app, name prayer.Name, layout string) error {
	ctx := contextOf(cmd)
	loc, err := resolveLocation(ctx, a.cfg, a.svc)
	if err != nil {
		return err
	}
	result, err := a.svc.FetchPrayerTimes(ctx, loc, a.source)
	if err != nil {
		return err
	}

	day := result.Day
	until, err := prayer.TimeUntil(day.Times, day.TomorrowFajr, name, day.TimeZone, clock())
	if err != nil {
		return err
	}
	timeStr := prayer.FormatClock(day.Times.Get(name), layout)

	out := cmd.OutOrStdout()
	if FlagJSON {
		data, err := json.MarshalIndent(queryJSONSingle{
			Prayer:    strings.ToLower(string(name)),
			Time:      timeStr,
			Date:      result.Date,
			Remaining: prayer.FormatRemaining(until),
			Stale:     result.Stale,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "%s %s (in %s)\n", name, timeStr, prayer.FormatRemaining(until))
	return nil
}

func runQueryMultiDay(cmd *cobra.Command, a *app, name prayer.Name, days int, layout string) error {
	loc, entries, err := fetchDays(cmd, a, days)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if FlagJSON {
		return printQueryJSON(out, loc, name, entries, layout)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s\n", display.Bold(fmt.Sprintf("%s Times: %d Days", name, days)))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s\n", loc)
	fmt.Fprintln(out)

	tbl := display.NewTable([]string{"Date", string(name)})
	todayStr := prayer.FormatDate(clock())
	for i, e := range entries {
		label := e.Date
		if d, err := e.Day(); err == nil {
			label = d.Format("Mon 02 Jan")
		}
		tbl.AddRow([]string{label, prayer.FormatClock(e.Times.Get(name), layout)})
		if e.Date == todayStr {
			tbl.SetHighlightRow(i)
		}
	}

	fmt.Fprint(out, tbl.Render())
	fmt.Fprintln(out)
	return nil
}

type queryJSONMulti struct {
	Location string         `json:"location"`
	Prayer   string         `json:"prayer"`
	Days     []queryJSONDay `json:"days"`
}

type queryJSONDay struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func printQueryJSON(w io.Writer, loc geo.Location, name prayer.Name, entries []prayer.DailyEntry, layout string) error {
	out := queryJSONMulti{
		Location: loc.String(),
		Prayer:   strings.ToLower(string(name)),
		Days:     make([]queryJSONDay, 0, len(entries)),
	}
	for _, e := range entries {
		out.Days = append(out.Days, queryJSONDay{
			Date: e.Date,
			Time: prayer.FormatClock(e.Times.Get(name), layout),
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
