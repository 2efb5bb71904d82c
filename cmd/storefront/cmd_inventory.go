package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/database"
	"github.com/shashiranjanraj/storefront/pkg/storage"
)

// storefront sizes:migrate
var sizesMigrateCmd = &cobra.Command{
	Use:   "sizes:migrate",
	Short: "Give products without size rows the default size run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		report, err := services.NewInventoryService(database.DB).MigrateSizes(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d products (%d size rows).\n", report.Products, report.RowsCreated)
		return nil
	},
}

// storefront ledger:backfill
var ledgerBackfillCmd = &cobra.Command{
	Use:   "ledger:backfill",
	Short: "Insert missing order entries into the transactions ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		storage.Connect()

		report, err := services.NewLedgerService(database.DB, storage.Default()).Backfill(cmd.Context())
		out := cmd.OutOrStdout()
		for _, line := range report.Log {
			fmt.Fprintln(out, "  "+line)
		}
		if err != nil {
			return err
		}
		if report.ArchivedAt != "" {
			fmt.Fprintf(out, "Report saved to %s\n", report.ArchivedAt)
		}
		fmt.Fprintln(out, strings.Repeat("-", 40))
		fmt.Fprintf(out, "inserted=%d skipped_missing_fk=%d skipped_exists=%d\n",
			report.Inserted, report.SkippedMissingFK, report.SkippedAlreadyExists)
		return nil
	},
}
