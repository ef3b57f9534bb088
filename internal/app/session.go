package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/version"
)

// Login authenticates against the API and stores the session.
func (a *App) Login(ctx context.Context, email, password, code string) error {
	return a.withComponents(ctx, func(c *Components) error {
		user, err := c.Sessions.Login(ctx, email, password, code)
		if err != nil {
			return err
		}
		if err := c.Prefs.UpdateAppVersion(version.Version); err != nil {
			a.Logger.Warn().Err(err).Msg("record app version")
		}
		if err := c.Prefs.SetFirstLaunchCompleted(); err != nil {
			a.Logger.Warn().Err(err).Msg("record first launch")
		}
		fmt.Fprintf(a.Out, "logged in as %s\n", user.DisplayName())
		return nil
	})
}

// Logout clears the session and cached identity.
func (a *App) Logout(ctx context.Context) error {
	return a.withComponents(ctx, func(c *Components) error {
		if err := c.Sessions.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.Out, "logged out")
		return nil
	})
}

// WhoAmI prints the session and the cached profile.
func (a *App) WhoAmI(ctx context.Context, refresh bool) error {
	return a.withComponents(ctx, func(c *Components) error {
		session, err := c.Sessions.Session()
		if err != nil {
			return err
		}
		if !session.Active {
			fmt.Fprintln(a.Out, "not logged in")
			return nil
		}

		var user *model.User
		if refresh {
			u, err := c.Sessions.RefreshUserProfile(ctx)
			if err != nil {
				return err
			}
			user = &u
		} else if user, err = c.Sessions.CurrentUser(ctx); err != nil {
			return err
		}

		writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(writer, "User ID\t%d\n", session.UserID)
		fmt.Fprintf(writer, "UUID\t%s\n", session.UserUUID)
		fmt.Fprintf(writer, "Token type\t%s\n", session.TokenType)
		expires := "never"
		if session.ExpiresAt != nil {
			expires = session.ExpiresAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(writer, "Expires\t%s\n", expires)
		if session.Expired(time.Now()) {
			fmt.Fprintln(writer, "Status\texpired, log in again")
		}
		if user != nil {
			fmt.Fprintf(writer, "Name\t%s\n", user.DisplayName())
			fmt.Fprintf(writer, "Email\t%s\n", user.Email)
			fmt.Fprintf(writer, "Balance\t%s\n", user.Balance.String())
			fmt.Fprintf(writer, "Frozen\t%s\n", user.FrozenBalance.String())
			fmt.Fprintf(writer, "KYC\t%s\n", yesNo(user.IsKYC))
			fmt.Fprintf(writer, "VIP\t%s\n", yesNo(user.IsVIP))
			fmt.Fprintf(writer, "Can buy/sell\t%s/%s\n", user.CanBuy, user.CanSell)
			fmt.Fprintf(writer, "Can deposit/withdraw\t%s/%s\n", user.CanDeposit, user.CanWithdraw)
		} else {
			fmt.Fprintln(writer, "Profile\tunavailable")
		}
		return writer.Flush()
	})
}
