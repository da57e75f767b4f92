// Package cmd wires configuration, storage and the reconciliation engine into
// the settlesphere command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/Govind-619/SettleSphere/config"
	"github.com/Govind-619/SettleSphere/utils"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var Version = "dev"

// Execute runs the root command
func Execute() {
	rootCmd := &cobra.Command{
		Use:     "settlesphere",
		Short:   "SettleSphere - payment gateway reconciliation service",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.InitLogger(); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			utils.SyncLogger()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(logsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and opens the database
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("Error loading config: %v", err)
		return nil, nil, err
	}

	db, err := config.InitDB(cfg.DB)
	if err != nil {
		utils.LogError("Error connecting to database: %v", err)
		return nil, nil, err
	}
	return cfg, db, nil
}
