package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obeidat/ledgerline/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			defer store.Close()

			fmt.Println(cli.FormatSuccess("database schema is up to date"))
			return nil
		},
	}
}
