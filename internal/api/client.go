package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/version"
)

const (
	loginPath   = "/auth/login"
	profilePath = "/user/profile"
	offersPath  = "/p2p/index"
	createPath  = "/p2p/create"
	applyPath   = "/p2p/apply"
	cancelPath  = "/p2p/cancel"

	maxBodyBytes = 4 << 20
)

// Observer receives one call per completed request.
type Observer func(endpoint string, status int, elapsed time.Duration)

// Options parameterise the marketplace client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	Observer          Observer
}

// Client talks to the marketplace REST API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient constructs a marketplace client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "api_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Login exchanges credentials for an access token and profile.
func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return LoginResponse{}, errors.New("email and password are required")
	}
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, loginPath, "", nil, req, &out); err != nil {
		return LoginResponse{}, err
	}
	if out.AccessToken == "" {
		return LoginResponse{}, errors.New("login response carried no access token")
	}
	if out.TokenType == "" {
		out.TokenType = "Bearer"
	}
	return out, nil
}

// Profile loads the authenticated user's profile. Both a bare user object
// and a {"data": user} envelope are accepted.
func (c *Client) Profile(ctx context.Context, token string) (model.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, profilePath, token, nil, nil, &raw); err != nil {
		return model.User{}, err
	}
	payload := []byte(raw)
	if data := gjson.GetBytes(payload, "data"); data.IsObject() {
		payload = []byte(data.Raw)
	}
	var user model.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return model.User{}, fmt.Errorf("decode profile: %w", err)
	}
	if user.UUID == "" {
		return model.User{}, errors.New("profile response carried no uuid")
	}
	return user, nil
}

// ListOffers fetches one page of offers.
func (c *Client) ListOffers(ctx context.Context, token string, filter model.OfferFilter) (model.Page, error) {
	var page model.Page
	if err := c.do(ctx, http.MethodGet, offersPath, token, offerQuery(filter), nil, &page); err != nil {
		return model.Page{}, err
	}
	return page, nil
}

// ListAllOffers follows pagination up to maxPages (0 means unbounded).
func (c *Client) ListAllOffers(ctx context.Context, token string, filter model.OfferFilter, maxPages int) ([]model.Offer, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	var all []model.Offer
	for fetched := 0; maxPages <= 0 || fetched < maxPages; fetched++ {
		page, err := c.ListOffers(ctx, token, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasMore() || len(page.Data) == 0 {
			break
		}
		filter.Page = page.CurrentPage + 1
	}
	return all, nil
}

// CreateOffer publishes a new offer.
func (c *Client) CreateOffer(ctx context.Context, token string, req model.CreateOfferRequest) (OfferResponse, error) {
	var out OfferResponse
	if err := c.do(ctx, http.MethodPost, createPath, token, nil, req, &out); err != nil {
		return OfferResponse{}, err
	}
	return out, nil
}

// ApplyOffer takes the other side of an offer.
func (c *Client) ApplyOffer(ctx context.Context, token, offerUUID string) (ApplyResponse, error) {
	var out ApplyResponse
	if err := c.do(ctx, http.MethodPost, applyPath, token, nil, uuidRequest{UUID: offerUUID}, &out); err != nil {
		return ApplyResponse{}, err
	}
	return out, nil
}

// CancelOffer withdraws one of the user's offers.
func (c *Client) CancelOffer(ctx context.Context, token, offerUUID string) (CancelResponse, error) {
	var out CancelResponse
	if err := c.do(ctx, http.MethodPost, cancelPath, token, nil, uuidRequest{UUID: offerUUID}, &out); err != nil {
		return CancelResponse{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, body, out any) error {
	if c.baseURL == "" {
		return errors.New("api base url not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for request budget: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", version.UserAgent())
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(path, 0, start)
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.observe(path, resp.StatusCode, start)
	if err != nil {
		return err
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(payload)}
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) observe(path string, status int, start time.Time) {
	if c.opts.Observer != nil {
		c.opts.Observer(path, status, time.Since(start))
	}
}

func offerQuery(f model.OfferFilter) url.Values {
	q := url.Values{}
	if f.Type != "" && f.Type != model.OfferTypeBoth {
		q.Set("type", string(f.Type))
	}
	if f.Min != nil {
		q.Set("min", f.Min.String())
	}
	if f.Max != nil {
		q.Set("max", f.Max.String())
	}
	if f.Coin != "" {
		q.Set("coin", f.Coin)
	}
	if f.My {
		q.Set("my", "1")
	}
	if f.VIP {
		q.Set("vip", "1")
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(f.PerPage))
	}
	return q
}
