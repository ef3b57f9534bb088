package cli

import (
	"github.com/spf13/cobra"

	"p2p-exchange-client/internal/app"
)

var (
	exportMine      bool
	exportCoin      string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cached offers as CSV and/or a PNG price chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Mine:      exportMine,
			Coin:      exportCoin,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportMine, "mine", false, "Export your own offers instead of the marketplace")
	exportCmd.Flags().StringVar(&exportCoin, "coin", "", "Only export offers for this coin")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
