package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/prefs"
	"p2p-exchange-client/internal/storage"
)

// SettingsRepository reads and writes the settings row, materialising
// defaults on first access.
type SettingsRepository struct {
	store  *storage.SettingsStore
	prefs  *prefs.Store
	now    func() time.Time
	logger zerolog.Logger

	mu sync.Mutex
}

// NewSettingsRepository wires the settings repository. mirror may be nil.
func NewSettingsRepository(store *storage.SettingsStore, mirror *prefs.Store, logger zerolog.Logger) *SettingsRepository {
	return &SettingsRepository{
		store:  store,
		prefs:  mirror,
		now:    time.Now,
		logger: logger.With().Str("component", "settings_repository").Logger(),
	}
}

// Settings returns the stored row. The first read persists the defaults.
func (r *SettingsRepository) Settings(ctx context.Context) (model.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx, r.now().UTC())
}

// UpdateTheme sets the theme: system, light or dark.
func (r *SettingsRepository) UpdateTheme(ctx context.Context, theme string) error {
	theme = strings.ToLower(strings.TrimSpace(theme))
	switch theme {
	case model.ThemeSystem, model.ThemeLight, model.ThemeDark:
	default:
		return fmt.Errorf("unknown theme %q", theme)
	}
	return r.update(ctx, func(s *model.Settings) { s.Theme = theme })
}

// UpdateLanguage sets the UI language code.
func (r *SettingsRepository) UpdateLanguage(ctx context.Context, language string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		return errors.New("language is required")
	}
	return r.update(ctx, func(s *model.Settings) { s.Language = language })
}

// UpdateNotificationsEnabled toggles alert notifications.
func (r *SettingsRepository) UpdateNotificationsEnabled(ctx context.Context, enabled bool) error {
	return r.update(ctx, func(s *model.Settings) { s.NotificationsEnabled = enabled })
}

// UpdateBiometricEnabled toggles biometric unlock.
func (r *SettingsRepository) UpdateBiometricEnabled(ctx context.Context, enabled bool) error {
	return r.update(ctx, func(s *model.Settings) { s.BiometricEnabled = enabled })
}

func (r *SettingsRepository) update(ctx context.Context, apply func(*model.Settings)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	current, err := r.loadLocked(ctx, now)
	if err != nil {
		return err
	}

	apply(&current)
	current.UpdatedAt = now
	if err := r.store.Save(ctx, current); err != nil {
		return err
	}
	r.mirror(current)
	return nil
}

func (r *SettingsRepository) loadLocked(ctx context.Context, now time.Time) (model.Settings, error) {
	current, err := r.store.Get(ctx)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	current = model.DefaultSettings(now)
	if err := r.store.Save(ctx, current); err != nil {
		return model.Settings{}, fmt.Errorf("initialise settings: %w", err)
	}
	r.mirror(current)
	return current, nil
}

func (r *SettingsRepository) mirror(s model.Settings) {
	if r.prefs == nil {
		return
	}
	if err := r.prefs.SaveSettings(s); err != nil {
		r.logger.Warn().Err(err).Msg("mirror settings into preferences")
	}
}
