package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Applies the embedded schema migrations. Safe to run repeatedly: only
pending migrations are executed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
