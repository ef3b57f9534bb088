package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"p2p-exchange-client/internal/app"
)

var (
	alertInput     app.AlertInput
	simulateNotify bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage offer alerts",
}

var alertsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertInput.TargetRate == "" {
			return errors.New("--rate is required")
		}
		return getApp().AddAlert(cmd.Context(), alertInput)
	},
}

var alertsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace an alert's criteria",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().UpdateAlert(cmd.Context(), id, alertInput)
	},
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListAlerts(cmd.Context())
	},
}

var alertsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().DeleteAlert(cmd.Context(), id)
	},
}

var alertsEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().SetAlertActive(cmd.Context(), id, true)
	},
}

var alertsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().SetAlertActive(cmd.Context(), id, false)
	},
}

var alertsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the alert job once in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().CheckAlerts(cmd.Context())
	},
}

var alertsSimulateCmd = &cobra.Command{
	Use:   "simulate <id>",
	Short: "Evaluate an alert against live offers without recording it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().SimulateAlert(cmd.Context(), id, simulateNotify)
	},
}

func alertFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&alertInput.Name, "name", "", "Alert name")
	cmd.Flags().StringVar(&alertInput.Coin, "coin", "", "Coin symbol")
	cmd.Flags().StringVar(&alertInput.OfferType, "type", "both", "buy, sell or both")
	cmd.Flags().StringVar(&alertInput.MinAmount, "min", "", "Minimum offer amount")
	cmd.Flags().StringVar(&alertInput.MaxAmount, "max", "", "Maximum offer amount")
	cmd.Flags().StringVar(&alertInput.TargetRate, "rate", "", "Target receive amount")
	cmd.Flags().StringVar(&alertInput.Comparison, "when", "greater", "greater, less or equal")
	cmd.Flags().BoolVar(&alertInput.OnlyKYC, "kyc-only", false, "Only match KYC offers")
	cmd.Flags().BoolVar(&alertInput.OnlyVIP, "vip-only", false, "Only match VIP offers")
	cmd.Flags().IntVar(&alertInput.IntervalMinute, "every", 15, "Check interval in minutes (minimum 15)")
	cmd.Flags().BoolVar(&alertInput.Inactive, "disabled", false, "Store the alert disabled")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("coin")
}

func init() {
	alertFlags(alertsAddCmd)
	alertFlags(alertsUpdateCmd)
	alertsSimulateCmd.Flags().BoolVar(&simulateNotify, "notify", false, "Send the first match through the notifier")

	alertsCmd.AddCommand(alertsAddCmd, alertsUpdateCmd, alertsListCmd, alertsDeleteCmd, alertsEnableCmd, alertsDisableCmd, alertsCheckCmd, alertsSimulateCmd)
}
