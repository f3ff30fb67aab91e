package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obeidat/ledgerline/internal/cli"
	"github.com/obeidat/ledgerline/internal/resolver"
)

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve pending raw events",
		Long: `Sweeps the raw-event audit trail, moving pending events to linked,
ignored, or failed. By default runs continuously on an interval; use
--once for a single sweep.`,
		RunE: runResolve,
	}

	cmd.Flags().Bool("once", false, "run a single sweep and exit")
	cmd.Flags().Duration("interval", resolver.DefaultInterval, "sweep interval")
	cmd.Flags().Duration("staleness", resolver.DefaultStaleness, "age after which an unposted event is marked failed")

	return cmd
}

func runResolve(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	once, _ := cmd.Flags().GetBool("once")
	interval, _ := cmd.Flags().GetDuration("interval")
	staleness, _ := cmd.Flags().GetDuration("staleness")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	r := resolver.New(store, interval, staleness)

	if once {
		stats, err := r.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("resolver sweep failed: %w", err)
		}
		fmt.Println(cli.FormatSuccess(fmt.Sprintf(
			"resolved %d events: %d linked, %d ignored, %d failed",
			stats.Total(), stats.Linked, stats.Ignored, stats.Failed)))
		return nil
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Resolver running every %s", interval)))
	err = r.Run(ctx)
	if err != nil && ctx.Err() != nil {
		// Cancellation is the normal way to stop the loop.
		return nil
	}
	return err
}
