package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"p2p-exchange-client/internal/api"
	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/prefs"
	"p2p-exchange-client/internal/storage"
	"p2p-exchange-client/internal/throttle"
)

// Throttle keys guarding user-triggered refreshes.
const (
	KeyRefreshMyOffers   = "offers.refresh.my"
	KeyRefreshMarketplace = "offers.refresh.marketplace"
)

// OfferAPI is the remote surface used by the offer repository.
type OfferAPI interface {
	ListAllOffers(ctx context.Context, token string, filter model.OfferFilter, maxPages int) ([]model.Offer, error)
	api.OfferActions
}

// TokenSource yields the current access token, "" when logged out.
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

// OfferOptions tune the offer repository.
type OfferOptions struct {
	MaxPages int
	PerPage  int
}

// OfferRepository keeps the offer cache in step with the marketplace.
type OfferRepository struct {
	cache     *storage.OfferCache
	templates *storage.TemplateStore
	prefs     *prefs.Store
	remote    OfferAPI
	tokens    TokenSource
	guard     *throttle.Guard
	opts      OfferOptions
	now       func() time.Time
	logger    zerolog.Logger
}

// NewOfferRepository wires the offer repository.
func NewOfferRepository(
	cache *storage.OfferCache,
	templates *storage.TemplateStore,
	store *prefs.Store,
	remote OfferAPI,
	tokens TokenSource,
	guard *throttle.Guard,
	opts OfferOptions,
	logger zerolog.Logger,
) *OfferRepository {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	return &OfferRepository{
		cache:     cache,
		templates: templates,
		prefs:     store,
		remote:    remote,
		tokens:    tokens,
		guard:     guard,
		opts:      opts,
		now:       time.Now,
		logger:    logger.With().Str("component", "offer_repository").Logger(),
	}
}

// RefreshMyOffers replaces the user's partition with the server's view.
func (r *OfferRepository) RefreshMyOffers(ctx context.Context) (int, error) {
	token := r.tokens.AccessToken(ctx)
	if token == "" {
		return 0, ErrNoSession
	}
	return r.refresh(ctx, KeyRefreshMyOffers, token, model.OfferFilter{My: true, PerPage: r.opts.PerPage}, true)
}

// RefreshMarketplace replaces the marketplace partition with offers
// matching filter. Authentication is optional.
func (r *OfferRepository) RefreshMarketplace(ctx context.Context, filter model.OfferFilter) (int, error) {
	filter.My = false
	if filter.PerPage == 0 {
		filter.PerPage = r.opts.PerPage
	}
	return r.refresh(ctx, KeyRefreshMarketplace, r.tokens.AccessToken(ctx), filter, false)
}

func (r *OfferRepository) refresh(ctx context.Context, key, token string, filter model.OfferFilter, mine bool) (int, error) {
	var offers []model.Offer
	err := r.guard.Run(key, func() error {
		var err error
		offers, err = r.remote.ListAllOffers(ctx, token, filter, r.opts.MaxPages)
		return err
	})
	if err != nil {
		return 0, err
	}

	now := r.now().UTC()
	if mine {
		err = r.cache.ReplaceMyOffers(ctx, offers, now)
	} else {
		err = r.cache.ReplaceMarketplaceOffers(ctx, offers, now)
	}
	if err != nil {
		return 0, err
	}

	if r.prefs != nil {
		if err := r.prefs.UpdateLastSync(now); err != nil {
			r.logger.Warn().Err(err).Msg("record last sync")
		}
	}
	r.logger.Info().Bool("mine", mine).Int("count", len(offers)).Msg("offers refreshed")
	return len(offers), nil
}

// MyOffers lists the cached user's offers.
func (r *OfferRepository) MyOffers(ctx context.Context) ([]model.Offer, error) {
	return r.cache.MyOffers(ctx)
}

// Marketplace lists cached marketplace offers.
func (r *OfferRepository) Marketplace(ctx context.Context) ([]model.Offer, error) {
	return r.cache.MarketplaceOffers(ctx)
}

// Search matches text against the user's cached offers.
func (r *OfferRepository) Search(ctx context.Context, text string) ([]model.Offer, error) {
	return r.cache.SearchMyOffers(ctx, text)
}

// Offer returns one cached offer.
func (r *OfferRepository) Offer(ctx context.Context, uuid string) (model.Offer, error) {
	return r.cache.OfferByUUID(ctx, uuid)
}

// CancelOffer marks the offer as cancelling, asks the server to cancel it
// and settles the cached status. On failure the local mark is removed.
func (r *OfferRepository) CancelOffer(ctx context.Context, uuid string) (api.CancelResponse, error) {
	token := r.tokens.AccessToken(ctx)
	if token == "" {
		return api.CancelResponse{}, ErrNoSession
	}

	r.markLocal(ctx, uuid, model.LocalStatusCancelling)
	resp, err := r.remote.CancelOffer(ctx, token, uuid)
	if err != nil {
		r.markLocal(ctx, uuid, "")
		return api.CancelResponse{}, fmt.Errorf("cancel offer %s: %w", uuid, err)
	}

	status := resp.Status
	if status == "" && resp.Offer != nil {
		status = resp.Offer.Status
	}
	if status == "" {
		status = "cancelled"
	}
	r.settle(ctx, uuid, status)
	return resp, nil
}

// ApplyOffer takes the other side of a marketplace offer.
func (r *OfferRepository) ApplyOffer(ctx context.Context, uuid string) (api.ApplyResponse, error) {
	token := r.tokens.AccessToken(ctx)
	if token == "" {
		return api.ApplyResponse{}, ErrNoSession
	}

	r.markLocal(ctx, uuid, model.LocalStatusApplying)
	resp, err := r.remote.ApplyOffer(ctx, token, uuid)
	if err != nil {
		r.markLocal(ctx, uuid, "")
		return api.ApplyResponse{}, fmt.Errorf("apply offer %s: %w", uuid, err)
	}

	status := "applied"
	if resp.Offer != nil && resp.Offer.Status != "" {
		status = resp.Offer.Status
	}
	r.settle(ctx, uuid, status)
	return resp, nil
}

// CreateOffer publishes a new offer and caches it as the user's.
func (r *OfferRepository) CreateOffer(ctx context.Context, req model.CreateOfferRequest) (model.Offer, error) {
	token := r.tokens.AccessToken(ctx)
	if token == "" {
		return model.Offer{}, ErrNoSession
	}
	if req.Type != model.OfferTypeBuy && req.Type != model.OfferTypeSell {
		return model.Offer{}, fmt.Errorf("offer type must be buy or sell, got %q", req.Type)
	}
	if strings.TrimSpace(req.Coin) == "" {
		return model.Offer{}, errors.New("offer coin is required")
	}
	if req.Details == "" {
		req.Details = "[]"
	}

	resp, err := r.remote.CreateOffer(ctx, token, req)
	if err != nil {
		return model.Offer{}, fmt.Errorf("create offer: %w", err)
	}
	if resp.Offer == nil {
		return model.Offer{}, errors.New("create offer: response carried no offer")
	}

	offer := *resp.Offer
	offer.IsMine = true
	offer.LastSync = r.now().UTC()
	if err := r.cache.UpsertOffer(ctx, offer); err != nil {
		return model.Offer{}, err
	}
	return offer, nil
}

// CreateFromTemplate publishes an offer built from a stored template.
func (r *OfferRepository) CreateFromTemplate(ctx context.Context, name string) (model.Offer, error) {
	tpl, err := r.templates.ByName(ctx, name)
	if err != nil {
		return model.Offer{}, fmt.Errorf("load template %q: %w", name, err)
	}
	req, err := tpl.Request()
	if err != nil {
		return model.Offer{}, err
	}
	return r.CreateOffer(ctx, req)
}

// EvictStale drops offers not synced within maxAge.
func (r *OfferRepository) EvictStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("max age must be positive")
	}
	return r.cache.DeleteOldOffers(ctx, r.now().UTC().Add(-maxAge))
}

func (r *OfferRepository) markLocal(ctx context.Context, uuid, status string) {
	var value *string
	if status != "" {
		value = &status
	}
	if err := r.cache.UpdateLocalStatus(ctx, uuid, value); err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn().Err(err).Str("uuid", uuid).Msg("update local status")
	}
}

func (r *OfferRepository) settle(ctx context.Context, uuid, status string) {
	if err := r.cache.UpdateOfferStatus(ctx, uuid, status, r.now().UTC()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn().Err(err).Str("uuid", uuid).Msg("update offer status")
	}
	r.markLocal(ctx, uuid, "")
}
