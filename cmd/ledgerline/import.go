package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obeidat/ledgerline/internal/bnpl"
	"github.com/obeidat/ledgerline/internal/classify"
	"github.com/obeidat/ledgerline/internal/cli"
	"github.com/obeidat/ledgerline/internal/importer"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import messages into the ledger",
		Long: `Reads bank and merchant messages from the message store, classifies
them, and posts new transactions to the ledger. Re-running is safe:
already-imported messages are skipped.`,
		RunE: runImport,
	}

	cmd.Flags().Int("days", 365, "how many days of messages to scan")
	cmd.Flags().Bool("dry-run", false, "classify and count without writing anything")
	cmd.Flags().BoolP("verbose", "v", false, "log every message outcome")

	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	days, _ := cmd.Flags().GetInt("days")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verbose, _ := cmd.Flags().GetBool("verbose")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	msgStore, err := initMessageStore()
	if err != nil {
		return fmt.Errorf("failed to open message store: %w", err)
	}
	defer msgStore.Close()

	patterns, err := loadPatternConfig()
	if err != nil {
		return err
	}
	classifier, err := classify.NewClassifier(patterns)
	if err != nil {
		return err
	}
	accounts := classify.NewAccountResolver(patterns)

	tz, err := ledgerTimezone()
	if err != nil {
		return err
	}

	imp := importer.New(store, classifier, accounts, msgStore, importer.Options{
		DaysBack:         days,
		DryRun:           dryRun,
		Verbose:          verbose,
		Timezone:         tz,
		PairingTolerance: pairingTolerance(),
		ShowProgress:     true,
	})

	stats, err := imp.Run(ctx)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Println(renderImportStats(stats, dryRun))

	if dryRun {
		return nil
	}

	// Second phase: installment plans and their settlements.
	engine := bnpl.New(store, msgStore, bnpl.DefaultProviders(), tz, bnplAmountTolerance())

	purchases, err := engine.ImportPurchases(ctx, days)
	if err != nil {
		return fmt.Errorf("installment import failed: %w", err)
	}
	settlements, err := engine.MatchSettlements(ctx)
	if err != nil {
		return fmt.Errorf("settlement matching failed: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"installments: %d plans created, %d duplicates, %d settlements matched (%d completed)",
		purchases.Created, purchases.Duplicates, settlements.Matched, settlements.Completed)))

	return nil
}

func renderImportStats(stats *importer.Stats, dryRun bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Messages scanned: %d\n\n", stats.Total)
	fmt.Fprintf(&b, "Imported:    %d\n", stats.Imported)
	fmt.Fprintf(&b, "Duplicates:  %d\n", stats.Duplicates)
	fmt.Fprintf(&b, "Excluded:    %d\n", stats.Excluded)
	fmt.Fprintf(&b, "Declined:    %d\n", stats.Declined)
	fmt.Fprintf(&b, "No match:    %d\n", stats.NoMatch)
	fmt.Fprintf(&b, "No account:  %d\n", stats.NoAccount)
	fmt.Fprintf(&b, "Errors:      %d\n", stats.Errors)

	if len(stats.ByIntent) > 0 {
		b.WriteString("\nBy intent:\n")
		for intent, count := range stats.ByIntent {
			fmt.Fprintf(&b, "  %s: %d\n", intent, count)
		}
	}

	title := "Import"
	if dryRun {
		title = "Import (dry-run)"
	}
	return cli.RenderBox(title, b.String())
}
