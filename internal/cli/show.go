package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"p2p-exchange-client/internal/app"
)

var (
	showLimit  int
	showMine   bool
	showSearch string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display cached offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:  showLimit,
			Mine:   showMine,
			Search: showSearch,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of offers to display")
	showCmd.Flags().BoolVar(&showMine, "mine", false, "Show your own offers instead of the marketplace")
	showCmd.Flags().StringVar(&showSearch, "search", "", "Search your offers by coin, amount or message")
}
