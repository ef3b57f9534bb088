package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/repository"
	"p2p-exchange-client/internal/throttle"
)

// SyncOffers refreshes the offer cache from the API.
func (a *App) SyncOffers(ctx context.Context, opts SyncOptions) error {
	if !opts.Mine && !opts.Marketplace {
		opts.Mine, opts.Marketplace = true, true
	}

	return a.withComponents(ctx, func(c *Components) error {
		failed := 0
		if opts.Mine {
			n, err := c.Offers.RefreshMyOffers(ctx)
			if err := a.reportSync("mine", n, err); err != nil {
				failed++
			}
		}
		if opts.Marketplace {
			filter := a.marketplaceFilter(c, opts.Filter)
			n, err := c.Offers.RefreshMarketplace(ctx, filter)
			if err := a.reportSync("marketplace", n, err); err != nil {
				failed++
			}
		}

		if opts.MaxAge > 0 {
			removed, err := c.Offers.EvictStale(ctx, opts.MaxAge)
			if err != nil {
				return err
			}
			a.Logger.Info().Int64("removed", removed).Dur("max_age", opts.MaxAge).Msg("stale offers evicted")
		}

		if failed > 0 {
			return errors.New("offer sync incomplete, see log for details")
		}
		return nil
	})
}

// marketplaceFilter falls back to the saved offer type filter when the
// caller did not pick one.
func (a *App) marketplaceFilter(c *Components, filter model.OfferFilter) model.OfferFilter {
	if filter.Type != "" {
		if err := c.Prefs.UpdateFiltersLastUsed(time.Now().UTC()); err != nil {
			a.Logger.Warn().Err(err).Msg("record filter use")
		}
		return filter
	}
	prefs, err := c.Prefs.App()
	if err != nil {
		return filter
	}
	if t, err := model.ParseOfferType(prefs.OfferTypeFilter); err == nil && t != model.OfferTypeBoth {
		filter.Type = t
	}
	return filter
}

func (a *App) reportSync(which string, n int, err error) error {
	var blocked *throttle.BlockedError
	switch {
	case errors.As(err, &blocked):
		fmt.Fprintf(a.Out, "%s: skipped, retry in %s\n", which, blocked.Remaining.Round(time.Millisecond))
		return nil
	case errors.Is(err, repository.ErrNoSession):
		fmt.Fprintf(a.Out, "%s: skipped, not logged in\n", which)
		return nil
	case err != nil:
		a.Logger.Error().Err(err).Str("partition", which).Msg("offer sync failed")
		return err
	}
	fmt.Fprintf(a.Out, "%s: %d offers cached\n", which, n)
	return nil
}

// EvictStale deletes cached offers not synced within maxAge.
func (a *App) EvictStale(ctx context.Context, opts SyncOptions) error {
	if opts.MaxAge <= 0 {
		return errors.New("max age must be greater than zero")
	}
	return a.withComponents(ctx, func(c *Components) error {
		removed, err := c.Offers.EvictStale(ctx, opts.MaxAge)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "removed %d cached offers\n", removed)
		return nil
	})
}
