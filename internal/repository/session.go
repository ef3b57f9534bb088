package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"p2p-exchange-client/internal/api"
	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/prefs"
	"p2p-exchange-client/internal/storage"
	"p2p-exchange-client/internal/stream"
)

// ErrNoSession is returned when an operation needs a usable access token.
var ErrNoSession = errors.New("no active session")

// SessionAPI is the remote surface used for authentication.
type SessionAPI interface {
	api.Authenticator
	api.ProfileFetcher
}

// SessionRepository owns the login session and the cached user profile.
type SessionRepository struct {
	prefs  *prefs.Store
	legacy *storage.SessionStore
	users  *storage.UserStore
	remote SessionAPI
	now    func() time.Time
	logger zerolog.Logger

	current *stream.Stream[*model.User]
}

// NewSessionRepository wires the session repository. legacy may be nil.
func NewSessionRepository(store *prefs.Store, legacy *storage.SessionStore, users *storage.UserStore, remote SessionAPI, logger zerolog.Logger) *SessionRepository {
	return &SessionRepository{
		prefs:   store,
		legacy:  legacy,
		users:   users,
		remote:  remote,
		now:     time.Now,
		logger:  logger.With().Str("component", "session_repository").Logger(),
		current: stream.New[*model.User](),
	}
}

// Login authenticates and persists the resulting session.
func (r *SessionRepository) Login(ctx context.Context, email, password, code string) (model.User, error) {
	resp, err := r.remote.Login(ctx, api.LoginRequest{Email: email, Password: password, Code: code})
	if err != nil {
		return model.User{}, fmt.Errorf("login: %w", err)
	}
	if err := r.SaveLoginSession(ctx, resp); err != nil {
		return model.User{}, err
	}
	return resp.Me, nil
}

// SaveLoginSession stores the session and the embedded profile. A failed
// profile write is only logged: CurrentUser re-fetches a missing profile.
func (r *SessionRepository) SaveLoginSession(ctx context.Context, resp api.LoginResponse) error {
	me := resp.Me
	err := r.prefs.SaveSessionWithMeta(prefs.SessionInput{
		UserID:       me.ID,
		UUID:         me.UUID,
		Username:     me.Username,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresAt:    resp.ExpiresAt(),
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	me.UpdatedAt = r.now().UTC()
	if err := r.users.Upsert(ctx, me); err != nil {
		r.logger.Warn().Err(err).Str("uuid", me.UUID).Msg("persist user after login; will refresh on next read")
		r.current.Publish(nil)
		return nil
	}
	r.current.Publish(&me)
	return nil
}

// Session returns the stored session, which may be inactive.
func (r *SessionRepository) Session() (model.Session, error) {
	snap, err := r.prefs.Session()
	if err != nil {
		return model.Session{}, err
	}
	return snap.Model(), nil
}

// AccessToken returns a usable token, or "" when logged out or expired.
func (r *SessionRepository) AccessToken(_ context.Context) string {
	session, err := r.Session()
	if err != nil {
		r.logger.Warn().Err(err).Msg("read session")
		return ""
	}
	if !session.Usable(r.now()) {
		return ""
	}
	return session.AccessToken
}

// CurrentUser follows the active session to its cached profile. It returns
// nil without error when nobody is logged in or the profile cannot be
// resolved.
func (r *SessionRepository) CurrentUser(ctx context.Context) (*model.User, error) {
	snap, err := r.prefs.Session()
	if err != nil {
		return nil, err
	}
	if !snap.IsLoggedIn || snap.UUID == "" {
		return nil, nil
	}

	user, err := r.users.ByUUID(ctx, snap.UUID)
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, storage.ErrNotFound):
		refreshed, err := r.RefreshUserProfile(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Str("uuid", snap.UUID).Msg("profile missing and refresh failed")
			return nil, nil
		}
		return &refreshed, nil
	default:
		return nil, fmt.Errorf("load user: %w", err)
	}
}

// CurrentUserStream observes the logged-in user. nil means logged out.
func (r *SessionRepository) CurrentUserStream(ctx context.Context) (<-chan *model.User, func(), error) {
	if _, ok := r.current.Latest(); !ok {
		user, err := r.CurrentUser(ctx)
		if err != nil {
			return nil, nil, err
		}
		r.current.Publish(user)
	}
	ch, cancel := r.current.Subscribe()
	return ch, cancel, nil
}

// RefreshUserProfile fetches the profile and upserts the cached copy. On
// failure the cached copy is left untouched.
func (r *SessionRepository) RefreshUserProfile(ctx context.Context) (model.User, error) {
	token := r.AccessToken(ctx)
	if token == "" {
		return model.User{}, ErrNoSession
	}
	user, err := r.remote.Profile(ctx, token)
	if err != nil {
		return model.User{}, fmt.Errorf("fetch profile: %w", err)
	}
	user.UpdatedAt = r.now().UTC()
	if err := r.users.Upsert(ctx, user); err != nil {
		return model.User{}, err
	}
	r.current.Publish(&user)
	return user, nil
}

// Logout clears the session, any legacy session row and cached profiles.
// Calling it while logged out is a no-op.
func (r *SessionRepository) Logout(ctx context.Context) error {
	if err := r.prefs.ClearSession(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if r.legacy != nil {
		if err := r.legacy.Clear(ctx); err != nil {
			return fmt.Errorf("clear legacy session: %w", err)
		}
	}
	if err := r.users.DeleteAll(ctx); err != nil {
		return err
	}
	r.current.Publish(nil)
	return nil
}
