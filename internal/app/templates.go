package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// SaveTemplate snapshots a cached offer as a named template.
func (a *App) SaveTemplate(ctx context.Context, name, offerUUID string) error {
	return a.withComponents(ctx, func(c *Components) error {
		offer, err := c.Offers.Offer(ctx, offerUUID)
		if err != nil {
			return fmt.Errorf("load offer %s: %w", offerUUID, err)
		}
		tpl, err := c.Templates.FromOffer(ctx, name, offer)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "template %q saved\n", tpl.Name)
		return nil
	})
}

// ListTemplates prints stored templates.
func (a *App) ListTemplates(ctx context.Context) error {
	return a.withComponents(ctx, func(c *Components) error {
		list, err := c.Templates.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(a.Out, "no templates saved")
			return nil
		}
		writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Name\tType\tCoin\tAmount\tReceive\tKYC\tPrivate\tVIP\tDetails")
		for _, t := range list {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				sanitizeInline(t.Name), t.Type, t.Coin, t.Amount, t.Receive,
				yesNo(t.OnlyKYC), yesNo(t.Private), yesNo(t.OnlyVIP), len(t.Details))
		}
		return writer.Flush()
	})
}

// DeleteTemplate removes a template by name.
func (a *App) DeleteTemplate(ctx context.Context, name string) error {
	return a.withComponents(ctx, func(c *Components) error {
		if err := c.Templates.Delete(ctx, name); err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "template %q deleted\n", name)
		return nil
	})
}

// ExportTemplates writes every template to path as YAML.
func (a *App) ExportTemplates(ctx context.Context, path string) error {
	return a.withComponents(ctx, func(c *Components) error {
		if err := ensureDir(path); err != nil {
			return err
		}
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()

		n, err := c.Templates.Export(ctx, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "exported %d templates to %s\n", n, path)
		return nil
	})
}

// ImportTemplates loads templates from a YAML file.
func (a *App) ImportTemplates(ctx context.Context, path string, overwrite bool) error {
	return a.withComponents(ctx, func(c *Components) error {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		n, err := c.Templates.Import(ctx, file, overwrite)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "imported %d templates from %s\n", n, path)
		return nil
	})
}
