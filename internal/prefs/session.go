package prefs

import (
	"time"

	"p2p-exchange-client/internal/model"
)

const (
	keySessionUserID       = "session.user_id"
	keySessionUUID         = "session.uuid"
	keySessionUsername     = "session.username"
	keySessionAccessToken  = "session.access_token"
	keySessionRefreshToken = "session.refresh_token"
	keySessionTokenType    = "session.token_type"
	keySessionLoggedIn     = "session.is_logged_in"
	keySessionExpiresAt    = "session.expires_at"
	keySessionCreatedAt    = "session.created_at"
	keySessionUpdatedAt    = "session.updated_at"
)

var sessionIdentityKeys = []string{
	keySessionUserID,
	keySessionUUID,
	keySessionUsername,
	keySessionAccessToken,
	keySessionRefreshToken,
	keySessionTokenType,
	keySessionExpiresAt,
	keySessionCreatedAt,
}

// SessionSnapshot is the current session namespace.
type SessionSnapshot struct {
	UserID       int64
	UUID         string
	Username     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	IsLoggedIn   bool
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Model converts the snapshot into a domain session.
func (s SessionSnapshot) Model() model.Session {
	return model.Session{
		UserID:       s.UserID,
		UserUUID:     s.UUID,
		Username:     s.Username,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Active:       s.IsLoggedIn,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		ExpiresAt:    s.ExpiresAt,
	}
}

// SessionInput carries everything written on login.
type SessionInput struct {
	UserID       int64
	UUID         string
	Username     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
	// CreatedAt and UpdatedAt default to the store clock when zero.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session reads the session namespace.
func (s *Store) Session() (SessionSnapshot, error) {
	var snap SessionSnapshot
	err := s.view(func(r *reader) error {
		var err error
		if snap.UserID, err = r.integer(keySessionUserID); err != nil {
			return err
		}
		snap.UUID = r.str(keySessionUUID)
		snap.Username = r.str(keySessionUsername)
		if snap.AccessToken, err = r.secret(keySessionAccessToken); err != nil {
			return err
		}
		if snap.RefreshToken, err = r.secret(keySessionRefreshToken); err != nil {
			return err
		}
		snap.TokenType = r.str(keySessionTokenType)
		if snap.IsLoggedIn, err = r.flag(keySessionLoggedIn, false); err != nil {
			return err
		}
		if snap.ExpiresAt, err = r.timestamp(keySessionExpiresAt); err != nil {
			return err
		}
		created, err := r.timestamp(keySessionCreatedAt)
		if err != nil {
			return err
		}
		updated, err := r.timestamp(keySessionUpdatedAt)
		if err != nil {
			return err
		}
		snap.CreatedAt, snap.UpdatedAt = orZero(created), orZero(updated)
		return nil
	})
	return degrade(s, "session", snap, err, SessionSnapshot{})
}

// SessionStream observes the session namespace.
func (s *Store) SessionStream() (<-chan SessionSnapshot, func()) {
	return s.sessions.Subscribe()
}

// SaveSession stores identity and tokens and marks the user logged in.
func (s *Store) SaveSession(id int64, uuid, username, accessToken, refreshToken string) error {
	return s.SaveSessionWithMeta(SessionInput{
		UserID:       id,
		UUID:         uuid,
		Username:     username,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// SaveSessionWithMeta is SaveSession plus token type and expiry.
func (s *Store) SaveSessionWithMeta(in SessionInput) error {
	now := s.now()
	created, updated := in.CreatedAt, in.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}
	return s.update(func(w *writer) error {
		if err := w.delete(sessionIdentityKeys...); err != nil {
			return err
		}
		if err := w.putInt(keySessionUserID, in.UserID); err != nil {
			return err
		}
		if err := w.putString(keySessionUUID, in.UUID); err != nil {
			return err
		}
		if err := w.putString(keySessionUsername, in.Username); err != nil {
			return err
		}
		if err := w.putSecret(keySessionAccessToken, in.AccessToken); err != nil {
			return err
		}
		if err := w.putSecret(keySessionRefreshToken, in.RefreshToken); err != nil {
			return err
		}
		tokenType := in.TokenType
		if tokenType == "" {
			tokenType = "Bearer"
		}
		if err := w.putString(keySessionTokenType, tokenType); err != nil {
			return err
		}
		if in.ExpiresAt != nil {
			if err := w.putTime(keySessionExpiresAt, *in.ExpiresAt); err != nil {
				return err
			}
		}
		if err := w.putBool(keySessionLoggedIn, true); err != nil {
			return err
		}
		if err := w.putTime(keySessionCreatedAt, created); err != nil {
			return err
		}
		return w.putTime(keySessionUpdatedAt, updated)
	}, nsSession)
}

// UpdateAccessToken replaces the access token of the current session.
func (s *Store) UpdateAccessToken(token string) error {
	now := s.now()
	return s.update(func(w *writer) error {
		if err := w.putSecret(keySessionAccessToken, token); err != nil {
			return err
		}
		return w.putTime(keySessionUpdatedAt, now)
	}, nsSession)
}

// UpdateLoginStatus flips the logged-in flag.
func (s *Store) UpdateLoginStatus(loggedIn bool) error {
	now := s.now()
	return s.update(func(w *writer) error {
		if err := w.putBool(keySessionLoggedIn, loggedIn); err != nil {
			return err
		}
		return w.putTime(keySessionUpdatedAt, now)
	}, nsSession)
}

// ClearSession removes identity keys but keeps an updated timestamp.
func (s *Store) ClearSession() error {
	now := s.now()
	return s.update(func(w *writer) error {
		if err := w.delete(sessionIdentityKeys...); err != nil {
			return err
		}
		if err := w.putBool(keySessionLoggedIn, false); err != nil {
			return err
		}
		return w.putTime(keySessionUpdatedAt, now)
	}, nsSession)
}
