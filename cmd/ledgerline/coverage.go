package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obeidat/ledgerline/internal/audit"
)

func coverageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Report ingestion coverage",
		Long: `Compares, day by day, how many financial messages were seen against
how many produced ledger rows. Exits non-zero when the capture rate
falls below the threshold.`,
		RunE: runCoverage,
	}

	cmd.Flags().Int("days", 30, "trailing window in days")
	cmd.Flags().Float64("threshold", audit.DefaultCaptureThreshold, "minimum acceptable capture rate")

	return cmd
}

func runCoverage(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	days, _ := cmd.Flags().GetInt("days")
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	report, err := audit.BuildCoverageReport(ctx, store, days, threshold)
	if err != nil {
		return fmt.Errorf("failed to build coverage report: %w", err)
	}

	fmt.Println(audit.RenderCoverage(report))

	if !report.Passed() {
		return fmt.Errorf("capture rate %.2f%% below threshold %.2f%%",
			report.CaptureRate*100, report.Threshold*100)
	}
	return nil
}
