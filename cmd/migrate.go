package cmd

import (
	"github.com/spf13/cobra"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations from database/migrations",
	RunE:  runMigrateUp,
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()
	return database.MigrateUp(cfg.DatabaseURL(), logger)
}

func runMigrateDown(steps int) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()
	return database.MigrateDown(cfg.DatabaseURL(), steps, logger)
}
