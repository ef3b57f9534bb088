package cli

import (
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowSettings(cmd.Context())
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowSettings(cmd.Context())
	},
}

var settingsSetCmd = &cobra.Command{
	Use:       "set <theme|language|notifications|biometric|offer-type|coins> <value>",
	Short:     "Change one setting",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"theme", "language", "notifications", "biometric", "offer-type", "coins"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().UpdateSetting(cmd.Context(), args[0], args[1])
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
}
