package cli

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move the legacy session into the preference store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().MigrateSession(cmd.Context())
	},
}

var migrateValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compare the legacy session with the preference store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ValidateMigration(cmd.Context())
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Clear the migrated preference session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RollbackMigration(cmd.Context())
	},
}

func init() {
	migrateCmd.AddCommand(migrateValidateCmd, migrateRollbackCmd)
}
