package main

import (
	"fmt"
	"os"

	"sdm-platform-be/internal/config"
	"sdm-platform-be/pkg/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "sdmctl",
	Short: "Operate the decision-support conversation engine",
	Long: `sdmctl runs maintenance tasks against the engine's database.

Available commands:
  migrate       - Create extensions, tables and indexes
  history       - Print the dialogue history of a thread
  delete-thread - Delete the checkpoints and conversation record of a thread
  forget-user   - Delete a user's profile, insights and journey memories`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(migrateCmd, historyCmd, deleteThreadCmd, forgetUserCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*config.Config, *gorm.DB, error) {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		return nil, nil, fmt.Errorf("DB_CONNECTION_STRING is not set")
	}
	db, err := database.Open(cfg.DatabaseOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}
