package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obeidat/ledgerline/internal/audit"
)

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Verify ingestion is deterministic",
		Long: `Inside one database transaction: snapshots the recent ledger window,
deletes it, recomputes the expected rows from the recorded raw events,
and compares. Rolls back unless the test passes and --commit is set.
Exits non-zero on failure.`,
		RunE: runReplay,
	}

	cmd.Flags().Int("days", 30, "trailing window in days")
	cmd.Flags().Bool("commit", false, "commit the replayed window when the test passes")

	return cmd
}

func runReplay(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	days, _ := cmd.Flags().GetInt("days")
	commit, _ := cmd.Flags().GetBool("commit")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	result, err := audit.NewReplayer(store, days).Run(ctx, commit)
	if err != nil {
		return fmt.Errorf("replay test failed to run: %w", err)
	}

	fmt.Println(audit.RenderReplay(result))

	if !result.Passed() {
		return fmt.Errorf("replay mismatch: ledger diverges from recorded classifications")
	}
	return nil
}
