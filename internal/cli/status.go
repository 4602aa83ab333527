package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/salahnow/internal/config"
	"github.com/smokyabdulrahman/salahnow/internal/display"
	"github.com/smokyabdulrahman/salahnow/internal/logging"
	"github.com/smokyabdulrahman/salahnow/internal/prayer"
)

// statusPlaceholder is printed when no schedule is available.
const statusPlaceholder = "--:--"

var (
	flagStatusFormat string
	// statusConfigErr holds a config load failure, reported as a placeholder.
	statusConfigErr error
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "One-line next prayer for tmux and other status bars",
		Long:  "Like 'next', but never fails: when no schedule can be fetched or read from\nthe cache it prints " + statusPlaceholder + " and logs the error.",
		Args:  cobra.NoArgs,
		// Replaces the root hook so a broken config still yields a line.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				cfg = &config.Config{}
			}
			loadedConfig, statusConfigErr = cfg, err
			return nil
		},
		RunE: runStatus,
	}
	cmd.Flags().StringVar(&flagStatusFormat, "format", prayer.FormatNameAndTime, "Display format, as for 'next'")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	placeholder := func(err error) error {
		log := logging.New("", cmd.ErrOrStderr())
		log.Warn().Err(err).Msg("status unavailable")
		fmt.Fprint(cmd.OutOrStdout(), statusPlaceholder)
		return nil
	}
	if statusConfigErr != nil {
		return placeholder(fmt.Errorf("failed to load config: %w", statusConfigErr))
	}

	a, err := newApp(cmd)
	if err != nil {
		return placeholder(err)
	}
	defer a.close()

	line, err := statusLine(cmd, a)
	if err != nil {
		a.log.Warn().Err(err).Msg("status unavailable")
		line = statusPlaceholder
	}
	fmt.Fprint(cmd.OutOrStdout(), line)
	return nil
}

func statusLine(cmd *cobra.Command, a *app) (string, error) {
	ctx := contextOf(cmd)
	loc, err := resolveLocation(ctx, a.cfg, a.svc)
	if err != nil {
		return "", err
	}
	result, err := a.svc.FetchPrayerTimes(ctx, loc, a.source)
	if err != nil {
		return "", err
	}

	day := result.Day
	info, err := prayer.Evaluate(day.Times, day.TomorrowFajr, day.TimeZone, clock())
	if err != nil {
		return "", err
	}
	return prayer.FormatOutput(info, flagStatusFormat, display.ClockLayout(a.cfg.TimeFormat)), nil
}

// StatusArgs routes a status-bar binary's arguments to the status command.
// A version request goes to the root instead.
func StatusArgs(args []string) []string {
	for _, a := range args {
		if a == "--version" || a == "-v" {
			return []string{"--version"}
		}
	}
	return append([]string{"status"}, args...)
}
