package cli

import (
	"github.com/spf13/cobra"
)

var runMetricsListen string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the background alert worker until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := getApp()
		if cmd.Flags().Changed("metrics-listen") {
			app.Config.Metrics.Enabled = runMetricsListen != ""
			app.Config.Metrics.Listen = runMetricsListen
		}
		return app.Run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVar(&runMetricsListen, "metrics-listen", "", "serve /metrics on this address (empty disables)")
}
