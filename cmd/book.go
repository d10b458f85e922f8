package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/example/resy-sniper/internal/sniper"
	"github.com/spf13/cobra"
)

func newBookCmd() *cobra.Command {
	var (
		f      targetFlags
		dryRun bool
	)

	c := &cobra.Command{
		Use:   "book",
		Short: "Make a single find-and-book attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := f.targets()
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.ensureSession(ctx); err != nil {
				return err
			}

			sn, err := sniper.New(a.client, a.sessions, sniper.Config{
				Targets:     targets,
				MaxAttempts: 1,
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
	c.Flags().BoolVar(&dryRun, "dry-run", false, "report the match without booking")
	return c
}
