package repository

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2p-exchange-client/internal/api"
	"p2p-exchange-client/internal/config"
	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/prefs"
	"p2p-exchange-client/internal/storage"
	"p2p-exchange-client/internal/throttle"
)

type fakeRemote struct {
	mu sync.Mutex

	loginResp  api.LoginResponse
	loginErr   error
	profile    model.User
	profileErr error

	mine      []model.Offer
	market    []model.Offer
	listCalls int
	lastToken string

	cancelResp api.CancelResponse
	cancelErr  error
	createResp api.OfferResponse
	created    []model.CreateOfferRequest

	// observed is called while the remote call is in flight.
	observed func()
}

func (f *fakeRemote) Login(_ context.Context, _ api.LoginRequest) (api.LoginResponse, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeRemote) Profile(_ context.Context, token string) (model.User, error) {
	f.lastToken = token
	return f.profile, f.profileErr
}

func (f *fakeRemote) ListAllOffers(_ context.Context, token string, filter model.OfferFilter, _ int) ([]model.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.lastToken = token
	if filter.My {
		return f.mine, nil
	}
	return f.market, nil
}

func (f *fakeRemote) CreateOffer(_ context.Context, _ string, req model.CreateOfferRequest) (api.OfferResponse, error) {
	f.created = append(f.created, req)
	return f.createResp, nil
}

func (f *fakeRemote) ApplyOffer(_ context.Context, _, uuid string) (api.ApplyResponse, error) {
	if f.observed != nil {
		f.observed()
	}
	return api.ApplyResponse{TransactionID: "tx-" + uuid}, nil
}

func (f *fakeRemote) CancelOffer(_ context.Context, _, _ string) (api.CancelResponse, error) {
	if f.observed != nil {
		f.observed()
	}
	return f.cancelResp, f.cancelErr
}

type fixture struct {
	store  *storage.Store
	prefs  *prefs.Store
	remote *fakeRemote
	now    time.Time

	sessions  *SessionRepository
	settings  *SettingsRepository
	offers    *OfferRepository
	templates *TemplateRepository
	alerts    *AlertRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(dir, "cache.db"),
	}, zerolog.Nop())
	require.NoError(t, err)
	store := storage.NewStore(db, zerolog.Nop())
	t.Cleanup(func() { _ = store.Close() })

	p, err := prefs.Open(prefs.Options{Path: filepath.Join(dir, "prefs.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	f := &fixture{
		store:  store,
		prefs:  p,
		remote: &fakeRemote{},
		now:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	guard := throttle.New(zerolog.Nop(), throttle.WithClock(clock))

	f.sessions = NewSessionRepository(p, store.Sessions, store.Users, f.remote, zerolog.Nop())
	f.sessions.now = clock
	f.settings = NewSettingsRepository(store.Settings, p, zerolog.Nop())
	f.settings.now = clock
	f.offers = NewOfferRepository(store.Offers, store.Templates, p, f.remote, f.sessions, guard, OfferOptions{}, zerolog.Nop())
	f.offers.now = clock
	f.templates = NewTemplateRepository(store.Templates)
	f.alerts = NewAlertRepository(store.Alerts)
	f.alerts.now = clock
	return f
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	f.remote.loginResp = api.LoginResponse{
		AccessToken: "opaque-token",
		TokenType:   "Bearer",
		Me:          model.User{ID: 7, UUID: "user-7", Username: "alice", Balance: decimal.RequireFromString("12.5")},
	}
	_, err := f.sessions.Login(context.Background(), "alice@example.com", "secret", "")
	require.NoError(t, err)
}

func offer(uuid string) model.Offer {
	return model.Offer{
		UUID:      uuid,
		Type:      model.OfferTypeSell,
		Coin:      "USDT",
		Amount:    "100",
		Receive:   "0.98",
		Details:   "[]",
		Status:    "active",
		CreatedAt: "2025-05-30 10:00:00",
	}
}

func TestLoginPersistsSessionAndUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	assert.Equal(t, "opaque-token", f.sessions.AccessToken(ctx))

	session, err := f.sessions.Session()
	require.NoError(t, err)
	assert.True(t, session.Active)
	assert.Equal(t, "user-7", session.UserUUID)

	user, err := f.sessions.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, decimal.RequireFromString("12.5").Equal(user.Balance))
}

func TestLoginFailureLeavesSessionEmpty(t *testing.T) {
	f := newFixture(t)
	f.remote.loginErr = &api.HTTPError{StatusCode: 401, Body: `{"message":"bad credentials"}`}

	_, err := f.sessions.Login(context.Background(), "a", "b", "")
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.Empty(t, f.sessions.AccessToken(context.Background()))
}

func TestCurrentUserRefreshesMissingProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	require.NoError(t, f.store.Users.DeleteAll(ctx))

	f.remote.profile = model.User{ID: 7, UUID: "user-7", Username: "alice-renamed"}
	user, err := f.sessions.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice-renamed", user.Username)
	assert.Equal(t, "opaque-token", f.remote.lastToken)
}

func TestCurrentUserNilWhenRefreshFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	require.NoError(t, f.store.Users.DeleteAll(ctx))
	f.remote.profileErr = errors.New("offline")

	user, err := f.sessions.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestRefreshUserProfileKeepsRowOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	f.remote.profileErr = errors.New("boom")

	_, err := f.sessions.RefreshUserProfile(ctx)
	require.Error(t, err)

	user, err := f.store.Users.ByUUID(ctx, "user-7")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	require.NoError(t, f.sessions.Logout(ctx))
	require.NoError(t, f.sessions.Logout(ctx))

	assert.Empty(t, f.sessions.AccessToken(ctx))
	user, err := f.sessions.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
	_, err = f.store.Users.ByUUID(ctx, "user-7")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExpiredTokenIsNotUsable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	exp := f.now.Add(time.Minute)
	require.NoError(t, f.prefs.SaveSessionWithMeta(prefs.SessionInput{
		UserID: 7, UUID: "user-7", Username: "alice", AccessToken: "short-lived", ExpiresAt: &exp,
	}))

	assert.Equal(t, "short-lived", f.sessions.AccessToken(ctx))
	f.now = f.now.Add(2 * time.Minute)
	assert.Empty(t, f.sessions.AccessToken(ctx))
}

func TestSettingsFirstReadPersistsDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.settings.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeSystem, first.Theme)
	assert.Equal(t, "en", first.Language)
	assert.True(t, first.NotificationsEnabled)

	stored, err := f.store.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeSystem, stored.Theme)

	f.now = f.now.Add(time.Hour)
	second, err := f.settings.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt), "created %s then %s", first.CreatedAt, second.CreatedAt)
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))

	mirrored, err := f.prefs.Settings()
	require.NoError(t, err)
	assert.True(t, mirrored.Initialized)
	assert.Equal(t, model.ThemeSystem, mirrored.Theme)
}

func TestUpdateThemeMaterialisesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.settings.UpdateTheme(ctx, "dark"))

	stored, err := f.store.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeDark, stored.Theme)
	assert.Equal(t, "en", stored.Language)
	assert.True(t, stored.NotificationsEnabled)
	assert.False(t, stored.BiometricEnabled)

	mirrored, err := f.prefs.Settings()
	require.NoError(t, err)
	assert.True(t, mirrored.Initialized)
	assert.Equal(t, model.ThemeDark, mirrored.Theme)
}

func TestUpdateThemeRejectsUnknown(t *testing.T) {
	f := newFixture(t)
	require.Error(t, f.settings.UpdateTheme(context.Background(), "sepia"))
}

func TestRefreshMyOffersReplacesPartition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	f.remote.mine = []model.Offer{offer("a"), offer("b")}
	n, err := f.offers.RefreshMyOffers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f.now = f.now.Add(time.Minute)
	f.remote.mine = []model.Offer{offer("b")}
	_, err = f.offers.RefreshMyOffers(ctx)
	require.NoError(t, err)

	mine, err := f.offers.MyOffers(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "b", mine[0].UUID)
	assert.True(t, mine[0].IsMine)

	app, err := f.prefs.App()
	require.NoError(t, err)
	require.NotNil(t, app.LastSync)
	assert.True(t, f.now.Equal(*app.LastSync))
}

func TestRefreshIsThrottled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	_, err := f.offers.RefreshMyOffers(ctx)
	require.NoError(t, err)
	_, err = f.offers.RefreshMyOffers(ctx)

	var blocked *throttle.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, KeyRefreshMyOffers, blocked.Key)
	assert.Equal(t, 1, f.remote.listCalls)
}

func TestRefreshMyOffersNeedsSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.offers.RefreshMyOffers(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRefreshMarketplaceWithoutSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.market = []model.Offer{offer("m1")}

	n, err := f.offers.RefreshMarketplace(ctx, model.OfferFilter{Coin: "USDT"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.remote.lastToken)

	market, err := f.offers.Marketplace(ctx)
	require.NoError(t, err)
	require.Len(t, market, 1)
	assert.False(t, market[0].IsMine)
}

func TestRefreshMarketplaceKeepsOwnOffers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	f.remote.mine = []model.Offer{offer("a")}
	_, err := f.offers.RefreshMyOffers(ctx)
	require.NoError(t, err)

	f.remote.market = []model.Offer{offer("a"), offer("m1")}
	_, err = f.offers.RefreshMarketplace(ctx, model.OfferFilter{})
	require.NoError(t, err)

	mine, err := f.offers.MyOffers(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "a", mine[0].UUID)
	assert.True(t, mine[0].IsMine)

	market, err := f.offers.Marketplace(ctx)
	require.NoError(t, err)
	require.Len(t, market, 1)
	assert.Equal(t, "m1", market[0].UUID)
}

func TestCancelOfferMarksThenSettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	f.remote.mine = []model.Offer{offer("c1")}
	_, err := f.offers.RefreshMyOffers(ctx)
	require.NoError(t, err)

	var during *string
	f.remote.observed = func() {
		o, err := f.store.Offers.OfferByUUID(ctx, "c1")
		require.NoError(t, err)
		during = o.LocalStatus
	}
	f.remote.cancelResp = api.CancelResponse{Status: "cancelled"}

	_, err = f.offers.CancelOffer(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, during)
	assert.Equal(t, model.LocalStatusCancelling, *during)

	o, err := f.offers.Offer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", o.Status)
	assert.Nil(t, o.LocalStatus)
	assert.True(t, o.IsMine)
}

func TestCancelOfferFailureClearsMark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	f.remote.mine = []model.Offer{offer("c2")}
	_, err := f.offers.RefreshMyOffers(ctx)
	require.NoError(t, err)
	f.remote.cancelErr = errors.New("connection refused")

	_, err = f.offers.CancelOffer(ctx, "c2")
	require.Error(t, err)

	o, err := f.offers.Offer(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "active", o.Status)
	assert.Nil(t, o.LocalStatus)
}

func TestCreateFromTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	_, err := f.templates.Save(ctx, model.Template{
		Name:    "weekly-sell",
		Type:    model.OfferTypeSell,
		Coin:    "USDT",
		Amount:  "250",
		Receive: "0.99",
		Details: []model.DetailPair{{Name: "bank", Value: "ACME"}},
		OnlyKYC: true,
	})
	require.NoError(t, err)

	created := offer("new-1")
	f.remote.createResp = api.OfferResponse{Offer: &created}

	got, err := f.offers.CreateFromTemplate(ctx, "weekly-sell")
	require.NoError(t, err)
	assert.True(t, got.IsMine)

	require.Len(t, f.remote.created, 1)
	req := f.remote.created[0]
	assert.Equal(t, "250", req.Amount)
	assert.Equal(t, model.Flag(1), req.OnlyKYC)
	assert.JSONEq(t, `[{"name":"bank","value":"ACME"}]`, req.Details)

	mine, err := f.offers.MyOffers(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "new-1", mine[0].UUID)
}

func TestEvictStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.market = []model.Offer{offer("old")}
	_, err := f.offers.RefreshMarketplace(ctx, model.OfferFilter{})
	require.NoError(t, err)

	f.now = f.now.Add(48 * time.Hour)
	n, err := f.offers.EvictStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.offers.EvictStale(ctx, 0)
	assert.Error(t, err)
}

func TestTemplateExportImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.templates.Save(ctx, model.Template{Name: "a", Type: model.OfferTypeBuy, Coin: "USDT", Amount: "10"})
	require.NoError(t, err)
	_, err = f.templates.Save(ctx, model.Template{Name: "b", Type: model.OfferTypeSell, Coin: "BTC", Amount: "1"})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := f.templates.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), "name: a")

	other := newFixture(t)
	_, err = other.templates.Save(ctx, model.Template{Name: "a", Type: model.OfferTypeBuy, Coin: "USDT", Amount: "99"})
	require.NoError(t, err)

	n, err = other.templates.Import(ctx, bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	kept, err := other.templates.ByName(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "99", kept.Amount)

	n, err = other.templates.Import(ctx, bytes.NewReader(buf.Bytes()), true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	replaced, err := other.templates.ByName(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "10", replaced.Amount)
}

func TestTemplateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.templates.Save(context.Background(), model.Template{Name: " ", Type: model.OfferTypeBuy, Coin: "USDT"})
	assert.Error(t, err)
	_, err = f.templates.Save(context.Background(), model.Template{Name: "x", Type: model.OfferTypeBoth, Coin: "USDT"})
	assert.Error(t, err)
}

func TestAlertCreateClampsInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.alerts.Create(ctx, model.Alert{
		Name:                 "cheap usdt",
		CoinType:             "USDT",
		TargetRate:           decimal.RequireFromString("0.97"),
		RateComparison:       model.CompareLess,
		Active:               true,
		CheckIntervalMinutes: 5,
	})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Equal(t, model.MinCheckIntervalMinutes, a.CheckIntervalMinutes)
	assert.Equal(t, model.OfferTypeBoth, a.OfferType)
	assert.True(t, f.now.Equal(a.CreatedAt))
}

func TestScheduleInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, ok, err := f.alerts.ScheduleInterval(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	mk := func(name string, minutes int, active bool) {
		_, err := f.alerts.Create(ctx, model.Alert{
			Name: name, CoinType: "USDT", Active: active, CheckIntervalMinutes: minutes,
		})
		require.NoError(t, err)
	}
	mk("hourly", 60, true)
	mk("half-hour", 30, true)
	mk("paused", 15, false)

	interval, ok, err := f.alerts.ScheduleInterval(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Minute, interval)
}
