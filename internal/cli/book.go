package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"thsrbook/internal/logger"
	"thsrbook/internal/wizard"
)

func newBookCmd(opts *rootOptions) *cobra.Command {
	var (
		search searchFlags
		loop   loopFlags
	)

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Retry the booking wizard until a seat with the target discount is booked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(opts)
			if err != nil {
				return err
			}
			search.apply(cmd.Flags(), cfg)
			loop.apply(cmd.Flags(), cfg)
			if err := cfg.ValidateBooking(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}

			a, err := start(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.guard(ctx)

			launcher, engine, err := a.engines()
			if err != nil {
				return err
			}
			s, err := a.schedule(ctx, wizard.NewBooker(cfg, launcher, engine), cfg.Watch.NotifyOnExhausted)
			if err != nil {
				return err
			}

			banner(cmd, "THSR Booking Assistant")
			logger.Info("route %s, target %s, %d adult / %d student",
				cfg.Criteria().Route(), cfg.Search.TargetDiscount, cfg.Search.Adults, cfg.Search.Students)

			sum, err := s.Run(ctx)
			if err := a.finish(ctx, err); err != nil {
				return err
			}
			if sum.Booked {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Booked after", sum.Run.Rounds, "rounds")
			} else if sum.Reason != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped after %d rounds: %s\n", sum.Run.Rounds, sum.Reason)
			}
			return nil
		},
	}
	search.register(cmd.Flags())
	loop.register(cmd.Flags())
	return cmd
}

func banner(cmd *cobra.Command, title string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintf(out, "║ %-57s ║\n", title)
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════════════════╝")
}
