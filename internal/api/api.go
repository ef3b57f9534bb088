package api

import (
	"context"

	"p2p-exchange-client/internal/model"
)

// OfferFetcher lists marketplace offers matching a filter.
type OfferFetcher interface {
	ListOffers(ctx context.Context, token string, filter model.OfferFilter) (model.Page, error)
}

// ProfileFetcher loads the authenticated user's profile.
type ProfileFetcher interface {
	Profile(ctx context.Context, token string) (model.User, error)
}

// Authenticator exchanges credentials for a session.
type Authenticator interface {
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
}

// OfferActions mutates offers on the server.
type OfferActions interface {
	CreateOffer(ctx context.Context, token string, req model.CreateOfferRequest) (OfferResponse, error)
	ApplyOffer(ctx context.Context, token, uuid string) (ApplyResponse, error)
	CancelOffer(ctx context.Context, token, uuid string) (CancelResponse, error)
}

// Service is the full remote surface used by the client.
type Service interface {
	Authenticator
	ProfileFetcher
	OfferFetcher
	OfferActions
}

var _ Service = (*Client)(nil)
