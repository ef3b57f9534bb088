package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"p2p-exchange-client/internal/model"
)

// ShowSettings prints user settings and app preferences.
func (a *App) ShowSettings(ctx context.Context) error {
	return a.withComponents(ctx, func(c *Components) error {
		s, err := c.Settings.Settings(ctx)
		if err != nil {
			return err
		}
		prefs, err := c.Prefs.App()
		if err != nil {
			return err
		}

		writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(writer, "Theme\t%s\n", s.Theme)
		fmt.Fprintf(writer, "Language\t%s\n", s.Language)
		fmt.Fprintf(writer, "Notifications\t%s\n", yesNo(s.NotificationsEnabled))
		fmt.Fprintf(writer, "Biometric unlock\t%s\n", yesNo(s.BiometricEnabled))
		fmt.Fprintf(writer, "Offer type filter\t%s\n", prefs.OfferTypeFilter)
		fmt.Fprintf(writer, "Selected coins\t%s\n", strings.Join(prefs.SelectedCoins, ","))
		fmt.Fprintf(writer, "Last sync\t%s\n", formatOptionalTime(prefs.LastSync))
		fmt.Fprintf(writer, "App version\t%s\n", prefs.AppVersion)
		return writer.Flush()
	})
}

// UpdateSetting changes one setting. key is theme, language, notifications,
// biometric, offer-type or coins.
func (a *App) UpdateSetting(ctx context.Context, key, value string) error {
	return a.withComponents(ctx, func(c *Components) error {
		var err error
		switch key {
		case "theme":
			err = c.Settings.UpdateTheme(ctx, value)
		case "language":
			err = c.Settings.UpdateLanguage(ctx, value)
		case "notifications", "biometric":
			enabled, perr := strconv.ParseBool(value)
			if perr != nil {
				return fmt.Errorf("%s expects true or false: %w", key, perr)
			}
			if key == "notifications" {
				err = c.Settings.UpdateNotificationsEnabled(ctx, enabled)
			} else {
				err = c.Settings.UpdateBiometricEnabled(ctx, enabled)
			}
		case "offer-type":
			offerType, perr := model.ParseOfferType(value)
			if perr != nil {
				return perr
			}
			err = c.Prefs.UpdateOfferTypeFilter(string(offerType))
		case "coins":
			var coins []string
			for _, coin := range strings.Split(value, ",") {
				if coin = strings.TrimSpace(coin); coin != "" {
					coins = append(coins, coin)
				}
			}
			err = c.Prefs.UpdateSelectedCoins(coins)
		default:
			return fmt.Errorf("unknown setting %q", key)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "%s updated\n", key)
		return nil
	})
}
