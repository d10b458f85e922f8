package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/resy-sniper/internal/schedule"
	"github.com/example/resy-sniper/internal/sniper"
	"github.com/spf13/cobra"
)

func newSnipeCmd() *cobra.Command {
	var (
		f               targetFlags
		intervalSeconds int
		maxAttempts     int
		dryRun          bool
		startAt         string
	)

	c := &cobra.Command{
		Use:   "snipe",
		Short: "Poll continuously and book the best matching slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := f.targets()
			if err != nil {
				return err
			}
			if intervalSeconds < 1 {
				return fmt.Errorf("--interval-seconds must be >= 1")
			}

			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// schedule resolution happens before any polling; a bad or
			// past start time aborts the whole run
			if startAt != "" {
				start, err := schedule.ParseStart(startAt, time.Now(), a.loc)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				if err := waitUntil(ctx, a, start); err != nil {
					return err
				}
			}

			if err := a.ensureSession(ctx); err != nil {
				return err
			}

			sn, err := sniper.New(a.client, a.sessions, sniper.Config{
				Targets:     targets,
				Interval:    time.Duration(intervalSeconds) * time.Second,
				MaxAttempts: maxAttempts,
				DryRun:      dryRun,
			}, a.logger)
			if err != nil {
				return err
			}

			consumed := make(chan struct{})
			go func() {
				defer close(consumed)
				printEvents(sn.Events())
			}()

			out, err := sn.Run(ctx)
			<-consumed
			if err != nil {
				return err
			}
			printOutcome(out)
			return nil
		},
	}

	addTargetFlags(c, &f)
	c.Flags().IntVar(&intervalSeconds, "interval-seconds", 10, "poll interval in seconds")
	c.Flags().IntVar(&maxAttempts, "max-attempts", 0, "stop after N poll cycles (0 = unbounded)")
	c.Flags().BoolVar(&dryRun, "dry-run", false, "report matches without booking")
	c.Flags().StringVar(&startAt, "at", "", "start instant: 'YYYY-MM-DD HH:MM[:SS]' or 'HH:MM[:SS]' (next occurrence)")
	return c
}

// waitUntil blocks until the scheduled start fires or the run is
// interrupted.
func waitUntil(ctx context.Context, a *app, start time.Time) error {
	started := make(chan struct{})
	tmr, err := schedule.At(start, func() { close(started) })
	if err != nil {
		if errors.Is(err, schedule.ErrPastTarget) {
			return fmt.Errorf("--at: %w (%s)", err, start.Format(time.RFC3339))
		}
		return err
	}
	a.logger.Info("waiting for scheduled start", "start", start, "wait", time.Until(start).Round(time.Second))
	select {
	case <-ctx.Done():
		tmr.Cancel()
		return ctx.Err()
	case <-started:
		return nil
	}
}

func printEvents(events <-chan sniper.Event) {
	for e := range events {
		switch e.Type {
		case sniper.EventSlotFound:
			fmt.Fprintf(os.Stdout, "[attempt %d] venue=%s found %s %q\n",
				e.Attempt, e.Target.VenueID, e.Slot.DisplayTime, e.Slot.Type)
		case sniper.EventDryRun:
			fmt.Fprintf(os.Stdout, "[attempt %d] venue=%s dry run, would book %s %q\n",
				e.Attempt, e.Target.VenueID, e.Slot.DisplayTime, e.Slot.Type)
		case sniper.EventCommitFailed:
			fmt.Fprintf(os.Stdout, "[attempt %d] venue=%s commit failed: %v\n",
				e.Attempt, e.Target.VenueID, e.Err)
		case sniper.EventBooked:
			fmt.Fprintf(os.Stdout, "[attempt %d] venue=%s BOOKED %s %q confirmation=%s\n",
				e.Attempt, e.Target.VenueID, e.Slot.DisplayTime, e.Slot.Type, e.ConfirmationID)
		}
	}
}

func printOutcome(out sniper.Outcome) {
	switch out.Status {
	case sniper.StatusBooked:
		fmt.Fprintf(os.Stdout, "booked venue=%s %s on %s for %d, confirmation=%s (attempts=%d)\n",
			out.Target.VenueID, out.Slot.DisplayTime, out.Target.Day, out.Target.PartySize,
			out.ConfirmationID, out.Attempts)
	case sniper.StatusExhausted:
		fmt.Fprintf(os.Stdout, "no booking made: attempts exhausted (attempts=%d)\n", out.Attempts)
	case sniper.StatusStopped:
		fmt.Fprintf(os.Stdout, "stopped without booking (attempts=%d)\n", out.Attempts)
	}
}
