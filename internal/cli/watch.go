package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/salahnow/internal/countdown"
	"github.com/smokyabdulrahman/salahnow/internal/display"
)

var (
	flagWatchFor  time.Duration
	flagWatchTick time.Duration
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live countdown, updated every second",
		Long:  "Keep a countdown to the next prayer (or the --mode target) on screen until interrupted.\nThe schedule is refetched after midnight.",
		RunE:  runWatch,
	}
	cmd.Flags().DurationVar(&flagWatchFor, "for", 0, "Stop after this long (default: until interrupted)")
	cmd.Flags().DurationVar(&flagWatchTick, "tick", time.Second, "Refresh interval")
	_ = cmd.Flags().MarkHidden("tick")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	mode, err := countdown.ParseMode(a.cfg.CountdownMode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if flagWatchFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flagWatchFor)
		defer cancel()
	}

	loc, err := resolveLocation(ctx, a.cfg, a.svc)
	if err != nil {
		return err
	}

	layout := display.ClockLayout(a.cfg.TimeFormat)
	out := cmd.OutOrStdout()

	var (
		mu      sync.Mutex
		lastErr error
	)
	emit := func(st countdown.State) {
		fmt.Fprint(out, display.ClearLine()+display.StatusLine(st, layout))
		if st.Err != nil && len(st.Items) == 0 {
			mu.Lock()
			lastErr = st.Err
			mu.Unlock()
			stop()
		}
	}

	d := countdown.NewDriver(a.svc, a.log)
	d.SetTickInterval(flagWatchTick)
	d.SetClock(clock)
	d.Start(ctx, countdown.Input{Location: loc, Source: a.source, Mode: mode}, emit)

	<-ctx.Done()
	d.Stop()
	fmt.Fprintln(out)

	mu.Lock()
	defer mu.Unlock()
	return lastErr
}
