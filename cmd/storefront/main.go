// Command storefront runs the shop API and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Migrations register themselves in init().
	_ "github.com/shashiranjanraj/storefront/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "Fashion storefront API and maintenance commands",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	// Inventory and ledger
	rootCmd.AddCommand(sizesMigrateCmd)
	rootCmd.AddCommand(ledgerBackfillCmd)

	// Workers
	rootCmd.AddCommand(queueWorkCmd)

	// Auth
	rootCmd.AddCommand(authTokenCmd)
}
