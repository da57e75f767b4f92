package cmd

import (
	"github.com/Govind-619/SettleSphere/config"
	"github.com/Govind-619/SettleSphere/utils"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := bootstrap()
			if err != nil {
				return err
			}
			if err := config.Migrate(db); err != nil {
				return err
			}
			utils.LogInfo("Database migrated")
			return nil
		},
	}
}
