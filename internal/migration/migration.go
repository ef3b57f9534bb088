// Package migration moves the session held in the relational sessions
// table into the preference store. Relational rows are never deleted.
package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/prefs"
	"p2p-exchange-client/internal/storage"
)

// Kind classifies a migration run.
type Kind int

const (
	KindSuccess Kind = iota
	KindPartialSuccess
	KindNoDataToMigrate
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindPartialSuccess:
		return "partial_success"
	case KindNoDataToMigrate:
		return "no_data"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the outcome of Migrate.
type Result struct {
	Kind    Kind
	Message string
	Err     error
}

// ValidationKind classifies a Validate run.
type ValidationKind int

const (
	Valid ValidationKind = iota
	Mismatch
	InconsistentState
)

func (k ValidationKind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Mismatch:
		return "mismatch"
	case InconsistentState:
		return "inconsistent_state"
	default:
		return fmt.Sprintf("validation(%d)", int(k))
	}
}

// Validation is the outcome of Validate. Fields lists mismatched keys.
type Validation struct {
	Kind   ValidationKind
	Fields []string
	Reason string
}

// LegacySessions is the relational session table.
type LegacySessions interface {
	ActiveSession(ctx context.Context) (model.Session, error)
	SaveSession(ctx context.Context, session model.Session) error
}

// LegacyUsers is the relational user table.
type LegacyUsers interface {
	ByUUID(ctx context.Context, uuid string) (model.User, error)
}

// Coordinator runs the session migration.
type Coordinator struct {
	sessions LegacySessions
	users    LegacyUsers
	prefs    *prefs.Store
	logger   zerolog.Logger
}

// New constructs a Coordinator.
func New(sessions LegacySessions, users LegacyUsers, store *prefs.Store, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		sessions: sessions,
		users:    users,
		prefs:    store,
		logger:   logger.With().Str("component", "migration").Logger(),
	}
}

// Migrate copies the active legacy session into the preference store.
// Running it again with unchanged rows rewrites the same values.
func (c *Coordinator) Migrate(ctx context.Context) Result {
	session, err := c.sessions.ActiveSession(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		c.logger.Debug().Msg("no legacy session to migrate")
		c.settle()
		return Result{Kind: KindNoDataToMigrate}
	}
	if err != nil {
		return c.fail("read legacy session", err)
	}

	input := prefs.SessionInput{
		UserID:       session.UserID,
		UUID:         session.UserUUID,
		Username:     session.Username,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		TokenType:    session.TokenType,
		ExpiresAt:    session.ExpiresAt,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	}

	kind := KindSuccess
	message := "session and profile identity migrated"
	user, err := c.users.ByUUID(ctx, session.UserUUID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		kind = KindPartialSuccess
		message = "session migrated; legacy user row missing"
	case err != nil:
		return c.fail("read legacy user", err)
	default:
		input.UserID = user.ID
		input.Username = user.Username
	}

	if err := c.prefs.SaveSessionWithMeta(input); err != nil {
		return c.fail("write preference session", err)
	}
	c.settle()

	c.logger.Info().Stringer("result", kind).Str("uuid", session.UserUUID).Msg(message)
	return Result{Kind: kind, Message: message}
}

// MigrateIfNeeded runs Migrate only when the preference store has no
// session yet and no earlier migration or rollback has settled, so a newer
// login is never overwritten by a stale row.
func (c *Coordinator) MigrateIfNeeded(ctx context.Context) (Result, bool) {
	app, err := c.prefs.App()
	if err != nil {
		return c.fail("read preference flags", err), true
	}
	if app.SessionMigrated {
		return Result{Kind: KindNoDataToMigrate, Message: "migration already settled"}, false
	}
	snap, err := c.prefs.Session()
	if err != nil {
		return c.fail("read preference session", err), true
	}
	if snap.IsLoggedIn || snap.AccessToken != "" {
		c.settle()
		return Result{Kind: KindNoDataToMigrate, Message: "preference session already present"}, false
	}
	return c.Migrate(ctx), true
}

// Validate compares the legacy row with the preference store field by field.
func (c *Coordinator) Validate(ctx context.Context) Validation {
	snap, err := c.prefs.Session()
	if err != nil {
		return Validation{Kind: InconsistentState, Reason: fmt.Sprintf("read preference session: %v", err)}
	}

	session, err := c.sessions.ActiveSession(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if !snap.IsLoggedIn {
			return Validation{Kind: Valid}
		}
		// once migrated, logins write preferences only
		app, err := c.prefs.App()
		if err != nil {
			return Validation{Kind: InconsistentState, Reason: fmt.Sprintf("read migration marker: %v", err)}
		}
		if app.SessionMigrated {
			return Validation{Kind: Valid}
		}
		return Validation{Kind: InconsistentState, Reason: "preference session without a legacy row"}
	case err != nil:
		return Validation{Kind: InconsistentState, Reason: fmt.Sprintf("read legacy session: %v", err)}
	}

	if !snap.IsLoggedIn {
		return Validation{Kind: InconsistentState, Reason: "legacy session not present in preferences"}
	}

	want := session
	if user, err := c.users.ByUUID(ctx, session.UserUUID); err == nil {
		want.UserID = user.ID
		want.Username = user.Username
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Validation{Kind: InconsistentState, Reason: fmt.Sprintf("read legacy user: %v", err)}
	}

	var fields []string
	check := func(name string, equal bool) {
		if !equal {
			fields = append(fields, name)
		}
	}
	check("user_id", want.UserID == snap.UserID)
	check("uuid", want.UserUUID == snap.UUID)
	check("username", want.Username == snap.Username)
	check("access_token", want.AccessToken == snap.AccessToken)
	check("refresh_token", want.RefreshToken == snap.RefreshToken)
	check("token_type", tokenType(want.TokenType) == snap.TokenType)

	if len(fields) > 0 {
		return Validation{Kind: Mismatch, Fields: fields, Reason: "preference session differs from legacy row"}
	}
	return Validation{Kind: Valid}
}

// Rollback clears the preference session. When no legacy row exists it
// re-creates one from the preference values; user rows are not rebuilt.
func (c *Coordinator) Rollback(ctx context.Context) error {
	snap, err := c.prefs.Session()
	if err != nil {
		return fmt.Errorf("read preference session: %w", err)
	}

	_, err = c.sessions.ActiveSession(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if snap.IsLoggedIn && snap.AccessToken != "" {
			restored := snap.Model()
			restored.Active = true
			if err := c.sessions.SaveSession(ctx, restored); err != nil {
				return fmt.Errorf("restore legacy session: %w", err)
			}
			c.logger.Info().Str("uuid", snap.UUID).Msg("legacy session restored from preferences")
		}
	case err != nil:
		return fmt.Errorf("read legacy session: %w", err)
	}

	if err := c.prefs.ClearSession(); err != nil {
		return fmt.Errorf("clear preference session: %w", err)
	}
	c.settle()
	c.logger.Info().Msg("preference session rolled back")
	return nil
}

// settle stops later startup runs from migrating again.
func (c *Coordinator) settle() {
	if err := c.prefs.SetSessionMigrated(true); err != nil {
		c.logger.Warn().Err(err).Msg("record migration state")
	}
}

func (c *Coordinator) fail(what string, err error) Result {
	err = fmt.Errorf("%s: %w", what, err)
	c.logger.Error().Err(err).Msg("session migration failed")
	return Result{Kind: KindError, Message: what, Err: err}
}

func tokenType(t string) string {
	if t == "" {
		return "Bearer"
	}
	return t
}
