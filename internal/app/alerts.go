package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"p2p-exchange-client/internal/model"
)

// AlertInput carries alert fields as entered on the command line. Empty
// strings leave optional fields unset.
type AlertInput struct {
	Name           string
	Coin           string
	OfferType      string
	MinAmount      string
	MaxAmount      string
	TargetRate     string
	Comparison     string
	OnlyKYC        bool
	OnlyVIP        bool
	IntervalMinute int
	Inactive       bool
}

// Alert converts the input into a model alert.
func (in AlertInput) Alert() (model.Alert, error) {
	offerType, err := model.ParseOfferType(in.OfferType)
	if err != nil {
		return model.Alert{}, err
	}
	cmp := model.CompareGreater
	if in.Comparison != "" {
		if cmp, err = model.ParseRateComparison(in.Comparison); err != nil {
			return model.Alert{}, err
		}
	}
	target, err := decimal.NewFromString(in.TargetRate)
	if err != nil {
		return model.Alert{}, fmt.Errorf("parse target rate %q: %w", in.TargetRate, err)
	}
	lo, err := optionalDecimal("min amount", in.MinAmount)
	if err != nil {
		return model.Alert{}, err
	}
	hi, err := optionalDecimal("max amount", in.MaxAmount)
	if err != nil {
		return model.Alert{}, err
	}
	return model.Alert{
		Name:                 in.Name,
		CoinType:             in.Coin,
		OfferType:            offerType,
		MinAmount:            lo,
		MaxAmount:            hi,
		TargetRate:           target,
		RateComparison:       cmp,
		OnlyKYC:              in.OnlyKYC,
		OnlyVIP:              in.OnlyVIP,
		Active:               !in.Inactive,
		CheckIntervalMinutes: in.IntervalMinute,
	}, nil
}

func optionalDecimal(what, v string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("parse %s %q: %w", what, v, err)
	}
	return &d, nil
}

// AddAlert stores a new alert.
func (a *App) AddAlert(ctx context.Context, in AlertInput) error {
	alert, err := in.Alert()
	if err != nil {
		return err
	}
	return a.withComponents(ctx, func(c *Components) error {
		created, err := c.Alerts.Create(ctx, alert)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "alert %d created, checked every %d minutes\n", created.ID, created.CheckIntervalMinutes)
		return nil
	})
}

// UpdateAlert replaces the editable fields of an existing alert.
func (a *App) UpdateAlert(ctx context.Context, id int64, in AlertInput) error {
	alert, err := in.Alert()
	if err != nil {
		return err
	}
	return a.withComponents(ctx, func(c *Components) error {
		existing, err := c.Alerts.ByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load alert %d: %w", id, err)
		}
		alert.ID = existing.ID
		alert.CreatedAt = existing.CreatedAt
		alert.LastCheckedAt = existing.LastCheckedAt
		alert.LastTriggeredAt = existing.LastTriggeredAt
		if err := c.Alerts.Update(ctx, alert); err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "alert %d updated\n", id)
		return nil
	})
}

// DeleteAlert removes an alert.
func (a *App) DeleteAlert(ctx context.Context, id int64) error {
	return a.withComponents(ctx, func(c *Components) error {
		if err := c.Alerts.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "alert %d deleted\n", id)
		return nil
	})
}

// SetAlertActive enables or disables an alert.
func (a *App) SetAlertActive(ctx context.Context, id int64, active bool) error {
	return a.withComponents(ctx, func(c *Components) error {
		if err := c.Alerts.SetActive(ctx, id, active); err != nil {
			return err
		}
		state := "disabled"
		if active {
			state = "enabled"
		}
		fmt.Fprintf(a.Out, "alert %d %s\n", id, state)
		return nil
	})
}

// ListAlerts prints every alert.
func (a *App) ListAlerts(ctx context.Context) error {
	return a.withComponents(ctx, func(c *Components) error {
		alerts, err := c.Alerts.List(ctx)
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Fprintln(a.Out, "no alerts configured")
			return nil
		}

		writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "ID\tName\tCoin\tType\tAmount\tRate\tKYC\tVIP\tEvery\tActive\tLast checked\tLast triggered")
		for _, alert := range alerts {
			fmt.Fprintf(
				writer,
				"%d\t%s\t%s\t%s\t%s\t%s %s\t%s\t%s\t%dm\t%s\t%s\t%s\n",
				alert.ID,
				sanitizeInline(alert.Name),
				alert.CoinType,
				alert.OfferType,
				amountRange(alert),
				alert.RateComparison,
				alert.TargetRate.String(),
				yesNo(alert.OnlyKYC),
				yesNo(alert.OnlyVIP),
				alert.CheckIntervalMinutes,
				yesNo(alert.Active),
				formatOptionalTime(alert.LastCheckedAt),
				formatOptionalTime(alert.LastTriggeredAt),
			)
		}
		return writer.Flush()
	})
}

func amountRange(alert model.Alert) string {
	lo, hi := "*", "*"
	if alert.MinAmount != nil {
		lo = alert.MinAmount.String()
	}
	if alert.MaxAmount != nil {
		hi = alert.MaxAmount.String()
	}
	return lo + ".." + hi
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
