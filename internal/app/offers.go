package app

import (
	"context"
	"fmt"
	"strings"

	"p2p-exchange-client/internal/model"
)

// OfferInput carries a new offer as entered on the command line. Details
// are name=value pairs.
type OfferInput struct {
	Type    string
	Coin    string
	Amount  string
	Receive string
	Details []string
	Message string
	OnlyKYC bool
	Private bool
	OnlyVIP bool
	Webhook string
}

// Request converts the input into a create payload.
func (in OfferInput) Request() (model.CreateOfferRequest, error) {
	offerType, err := model.ParseOfferType(in.Type)
	if err != nil {
		return model.CreateOfferRequest{}, err
	}
	pairs := make([]model.DetailPair, 0, len(in.Details))
	for _, raw := range in.Details {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return model.CreateOfferRequest{}, fmt.Errorf("detail %q must be name=value", raw)
		}
		pairs = append(pairs, model.DetailPair{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}
	details, err := model.EncodeDetails(pairs)
	if err != nil {
		return model.CreateOfferRequest{}, err
	}
	return model.CreateOfferRequest{
		Type:    offerType,
		Coin:    strings.TrimSpace(in.Coin),
		Amount:  strings.TrimSpace(in.Amount),
		Receive: strings.TrimSpace(in.Receive),
		Details: details,
		Message: in.Message,
		OnlyKYC: model.FlagOf(in.OnlyKYC),
		Private: model.FlagOf(in.Private),
		OnlyVIP: model.FlagOf(in.OnlyVIP),
		Webhook: in.Webhook,
	}, nil
}

// CreateOffer publishes a new offer.
func (a *App) CreateOffer(ctx context.Context, in OfferInput) error {
	req, err := in.Request()
	if err != nil {
		return err
	}
	return a.withComponents(ctx, func(c *Components) error {
		offer, err := c.Offers.CreateOffer(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "offer %s created (%s)\n", offer.UUID, offer.Status)
		return nil
	})
}

// CreateFromTemplate publishes an offer from a saved template.
func (a *App) CreateFromTemplate(ctx context.Context, name string) error {
	return a.withComponents(ctx, func(c *Components) error {
		offer, err := c.Offers.CreateFromTemplate(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "offer %s created from template %q\n", offer.UUID, name)
		return nil
	})
}

// CancelOffer cancels one of the user's offers.
func (a *App) CancelOffer(ctx context.Context, uuid string) error {
	return a.withComponents(ctx, func(c *Components) error {
		resp, err := c.Offers.CancelOffer(ctx, uuid)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "offer %s cancelled: %s\n", uuid, resp.Message)
		return nil
	})
}

// ApplyOffer takes a marketplace offer.
func (a *App) ApplyOffer(ctx context.Context, uuid string) error {
	return a.withComponents(ctx, func(c *Components) error {
		resp, err := c.Offers.ApplyOffer(ctx, uuid)
		if err != nil {
			return err
		}
		msg := resp.Message
		if resp.TransactionID != "" {
			msg = fmt.Sprintf("%s (transaction %s)", msg, resp.TransactionID)
		}
		fmt.Fprintf(a.Out, "offer %s applied: %s\n", uuid, msg)
		return nil
	})
}
