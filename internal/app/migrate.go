package app

import (
	"context"
	"fmt"
	"strings"
)

// MigrateSession copies the legacy session row into the preference store.
// Unlike the startup migration it runs even when a session already exists.
func (a *App) MigrateSession(ctx context.Context) error {
	return a.withComponents(ctx, func(c *Components) error {
		res := c.Migration.Migrate(ctx)
		if res.Err != nil {
			return res.Err
		}
		fmt.Fprintf(a.Out, "migration %s", res.Kind)
		if res.Message != "" {
			fmt.Fprintf(a.Out, ": %s", res.Message)
		}
		fmt.Fprintln(a.Out)
		return nil
	})
}

// ValidateMigration compares the legacy row with the preference store.
func (a *App) ValidateMigration(ctx context.Context) error {
	return a.withComponents(ctx, func(c *Components) error {
		v := c.Migration.Validate(ctx)
		fmt.Fprintf(a.Out, "validation %s", v.Kind)
		if len(v.Fields) > 0 {
			fmt.Fprintf(a.Out, " [%s]", strings.Join(v.Fields, ", "))
		}
		if v.Reason != "" {
			fmt.Fprintf(a.Out, ": %s", v.Reason)
		}
		fmt.Fprintln(a.Out)
		return nil
	})
}

// RollbackMigration clears the preference session.
func (a *App) RollbackMigration(ctx context.Context) error {
	return a.withComponents(ctx, func(c *Components) error {
		if err := c.Migration.Rollback(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.Out, "preference session rolled back")
		return nil
	})
}
