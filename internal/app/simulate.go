package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"p2p-exchange-client/internal/alerting"
	"p2p-exchange-client/internal/repository"
	"p2p-exchange-client/internal/scheduler"
)

// CheckAlerts runs one pass of the alert job with timestamps and
// notifications, outside the scheduler.
func (a *App) CheckAlerts(ctx context.Context) error {
	return a.withComponents(ctx, func(c *Components) error {
		outcome := a.newAlertService(c).Check(ctx)
		fmt.Fprintf(a.Out, "alert check finished: %s\n", outcome)
		if outcome == scheduler.OutcomeRetry {
			return errors.New("alert check needs a retry, see log for details")
		}
		return nil
	})
}

// SimulateAlert evaluates one alert against live offers without touching
// its timestamps. With notify set the first match is sent through the
// configured notifier.
func (a *App) SimulateAlert(ctx context.Context, id int64, notify bool) error {
	return a.withComponents(ctx, func(c *Components) error {
		alert, err := c.Alerts.ByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load alert %d: %w", id, err)
		}
		if c.Sessions.AccessToken(ctx) == "" {
			return repository.ErrNoSession
		}

		svc := a.newAlertService(c)
		matches, err := svc.Evaluate(ctx, alert)
		if err != nil {
			return err
		}

		fmt.Fprintf(a.Out, "alert %d (%s): %d matching offers\n", alert.ID, alert.Name, len(matches))
		a.printOffers(matches)

		if !notify || len(matches) == 0 {
			return nil
		}
		note := alerting.NewNotification(alert, matches[0], time.Now().UTC())
		return a.newNotifier().Notify(ctx, note)
	})
}
