package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"p2p-exchange-client/internal/model"
)

// Show prints cached offers.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	return a.withComponents(ctx, func(c *Components) error {
		var (
			offers []model.Offer
			err    error
		)
		switch {
		case opts.Search != "":
			offers, err = c.Offers.Search(ctx, opts.Search)
		case opts.Mine:
			offers, err = c.Offers.MyOffers(ctx)
		default:
			offers, err = c.Offers.Marketplace(ctx)
		}
		if err != nil {
			return err
		}
		if opts.Limit > 0 && len(offers) > opts.Limit {
			offers = offers[:opts.Limit]
		}
		a.printOffers(offers)
		return nil
	})
}

func (a *App) printOffers(offers []model.Offer) {
	if len(offers) == 0 {
		fmt.Fprintln(a.Out, "no offers found")
		return
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "UUID\tType\tCoin\tAmount\tReceive\tRate\tStatus\tKYC\tVIP\tSynced (UTC)\tMessage")

	for _, offer := range offers {
		synced := ""
		if !offer.LastSync.IsZero() {
			synced = offer.LastSync.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			offer.UUID,
			offer.Type,
			offer.Coin,
			offer.Amount,
			offer.Receive,
			formatRate(offer),
			offer.EffectiveStatus(),
			yesNo(offer.OnlyKYC.IsSet()),
			yesNo(offer.OnlyVIP.IsSet()),
			synced,
			sanitizeInline(offer.Message),
		)
	}

	writer.Flush()
}

func formatRate(offer model.Offer) string {
	rate, ok := offerRate(offer)
	if !ok {
		return "-"
	}
	return rate.StringFixed(4)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
