package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/salahnow/internal/display"
	"github.com/smokyabdulrahman/salahnow/internal/prayer"
)

var flagFormat string

func newNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next prayer with countdown",
		Long:  "Print one line describing the next prayer, suitable for status bars.",
		RunE:  runNext,
	}

	cmd.Flags().StringVar(&flagFormat, "format", prayer.FormatFull, "Display format: countdown, time-remaining, next-prayer-time, name-and-time, name-and-remaining, name-and-countdown, short-name-and-time, short-name-and-remaining, full, or a custom Go template")

	return cmd
}

func runNext(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

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
	info, err := prayer.Evaluate(day.Times, day.TomorrowFajr, day.TimeZone, clock())
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), prayer.FormatOutput(info, flagFormat, display.ClockLayout(a.cfg.TimeFormat)))
	return nil
}
