package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"p2p-exchange-client/internal/app"
	"p2p-exchange-client/internal/model"
)

var (
	syncMine   bool
	syncMarket bool
	syncType   string
	syncCoin   string
	syncMin    string
	syncMax    string
	syncVIP    bool
	syncMaxAge string

	evictMaxAge string

	createInput app.OfferInput

	listMine  bool
	listLimit int
)

var offersCmd = &cobra.Command{
	Use:   "offers",
	Short: "Sync and act on P2P offers",
}

var offersSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the offer cache from the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := marketFilter()
		if err != nil {
			return err
		}
		opts := app.SyncOptions{Mine: syncMine, Marketplace: syncMarket, Filter: filter}
		if syncMaxAge != "" {
			if opts.MaxAge, err = parseAge(syncMaxAge); err != nil {
				return err
			}
		}
		return getApp().SyncOffers(cmd.Context(), opts)
	},
}

var offersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{Mine: listMine, Limit: listLimit})
	},
}

var offersSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search your cached offers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{Search: args[0], Limit: listLimit})
	},
}

var offersEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Delete cached offers not synced recently",
	RunE: func(cmd *cobra.Command, args []string) error {
		age, err := parseAge(evictMaxAge)
		if err != nil {
			return err
		}
		return getApp().EvictStale(cmd.Context(), app.SyncOptions{MaxAge: age})
	},
}

var offersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a new offer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().CreateOffer(cmd.Context(), createInput)
	},
}

var offersCancelCmd = &cobra.Command{
	Use:   "cancel <uuid>",
	Short: "Cancel one of your offers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().CancelOffer(cmd.Context(), args[0])
	},
}

var offersApplyCmd = &cobra.Command{
	Use:   "apply <uuid>",
	Short: "Take a marketplace offer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ApplyOffer(cmd.Context(), args[0])
	},
}

func marketFilter() (model.OfferFilter, error) {
	filter := model.OfferFilter{Coin: syncCoin, VIP: syncVIP}
	if syncType != "" {
		t, err := model.ParseOfferType(syncType)
		if err != nil {
			return filter, err
		}
		if t != model.OfferTypeBoth {
			filter.Type = t
		}
	}
	for _, bound := range []struct {
		flag string
		text string
		dst  **decimal.Decimal
	}{{"--min", syncMin, &filter.Min}, {"--max", syncMax, &filter.Max}} {
		if bound.text == "" {
			continue
		}
		d, err := decimal.NewFromString(bound.text)
		if err != nil {
			return filter, fmt.Errorf("invalid %s value: %w", bound.flag, err)
		}
		*bound.dst = &d
	}
	return filter, nil
}

func init() {
	offersSyncCmd.Flags().BoolVar(&syncMine, "mine", false, "Refresh your own offers")
	offersSyncCmd.Flags().BoolVar(&syncMarket, "market", false, "Refresh marketplace offers")
	offersSyncCmd.Flags().StringVar(&syncType, "type", "", "Marketplace filter: buy or sell")
	offersSyncCmd.Flags().StringVar(&syncCoin, "coin", "", "Marketplace filter: coin symbol")
	offersSyncCmd.Flags().StringVar(&syncMin, "min", "", "Marketplace filter: minimum amount")
	offersSyncCmd.Flags().StringVar(&syncMax, "max", "", "Marketplace filter: maximum amount")
	offersSyncCmd.Flags().BoolVar(&syncVIP, "vip", false, "Marketplace filter: VIP offers only")
	offersSyncCmd.Flags().StringVar(&syncMaxAge, "evict-older-than", "", "Also evict offers not synced within this age (e.g. 7d, 48h)")

	offersListCmd.Flags().BoolVar(&listMine, "mine", false, "List your own offers instead of the marketplace")
	offersListCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum offers to list")
	offersSearchCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum offers to list")

	offersEvictCmd.Flags().StringVar(&evictMaxAge, "older-than", "7d", "Evict offers not synced within this age")

	offersCreateCmd.Flags().StringVar(&createInput.Type, "type", "", "buy or sell")
	offersCreateCmd.Flags().StringVar(&createInput.Coin, "coin", "", "Coin symbol")
	offersCreateCmd.Flags().StringVar(&createInput.Amount, "amount", "", "Amount offered")
	offersCreateCmd.Flags().StringVar(&createInput.Receive, "receive", "", "Amount asked in return")
	offersCreateCmd.Flags().StringArrayVar(&createInput.Details, "detail", nil, "Payment detail as name=value, repeatable")
	offersCreateCmd.Flags().StringVar(&createInput.Message, "message", "", "Message shown to counterparties")
	offersCreateCmd.Flags().BoolVar(&createInput.OnlyKYC, "kyc-only", false, "Only KYC-verified counterparties")
	offersCreateCmd.Flags().BoolVar(&createInput.Private, "private", false, "Hide from the public marketplace")
	offersCreateCmd.Flags().BoolVar(&createInput.OnlyVIP, "vip-only", false, "Only VIP counterparties")
	offersCreateCmd.Flags().StringVar(&createInput.Webhook, "webhook", "", "Webhook URL notified on status changes")
	_ = offersCreateCmd.MarkFlagRequired("type")
	_ = offersCreateCmd.MarkFlagRequired("coin")
	_ = offersCreateCmd.MarkFlagRequired("amount")
	_ = offersCreateCmd.MarkFlagRequired("receive")

	offersCmd.AddCommand(offersSyncCmd, offersListCmd, offersSearchCmd, offersEvictCmd, offersCreateCmd, offersCancelCmd, offersApplyCmd)
}
