package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/application"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/config"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "live-service",
	Short: "Live service: live-commerce sessions, media room credentials, realtime room events",
	Long:  `HTTP + WebSocket API. Commands: api, migrate, seed, command.`,
	RunE:  runAPI, // default: run API (same as "live-service api")
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

// Execute runs the root command and returns the error (for main to log.Fatal).
func Execute() error {
	return rootCmd.Execute()
}

// bootstrap loads and validates config and builds the logger shared by all commands.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger, err := application.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}
