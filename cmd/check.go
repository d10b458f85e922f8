package cmd

import (
	"fmt"
	"os"

	"github.com/example/resy-sniper/internal/reservation"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var f targetFlags

	c := &cobra.Command{
		Use:   "check",
		Short: "Check current availability for one or more venues (never books)",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := f.targets()
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.ensureSession(ctx); err != nil {
				return err
			}

			for _, t := range targets {
				slots, err := a.client.FindSlots(ctx, t)
				if err != nil {
					a.logger.Warn("find failed", "venue", t.VenueID, "error", err)
					continue
				}
				matched := reservation.Match(slots, t.PreferredTimes, t.Types)
				if len(matched) == 0 {
					fmt.Fprintf(os.Stdout, "venue=%s: no matching slots (%d offered)\n", t.VenueID, len(slots))
					continue
				}
				for _, s := range matched {
					fmt.Fprintf(os.Stdout, "venue=%s time=%s type=%q quantity=%d deposit=%.2f\n",
						t.VenueID, s.DisplayTime, s.Type, s.Quantity, s.Deposit)
				}
			}
			return nil
		},
	}

	addTargetFlags(c, &f)
	return c
}
