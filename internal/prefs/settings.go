package prefs

import (
	"time"

	"p2p-exchange-client/internal/model"
)

const (
	keySettingsTheme         = "settings.theme"
	keySettingsLanguage      = "settings.language"
	keySettingsNotifications = "settings.notifications_enabled"
	keySettingsBiometric     = "settings.biometric_enabled"
	keySettingsCreatedAt     = "settings.created_at"
	keySettingsUpdatedAt     = "settings.updated_at"
)

// SettingsSnapshot is the settings namespace. Initialized is false until
// something has been written.
type SettingsSnapshot struct {
	model.Settings
	Initialized bool
}

func defaultSettingsSnapshot() SettingsSnapshot {
	return SettingsSnapshot{Settings: model.DefaultSettings(time.Time{})}
}

// Settings reads the settings namespace, falling back to defaults.
func (s *Store) Settings() (SettingsSnapshot, error) {
	snap := defaultSettingsSnapshot()
	err := s.view(func(r *reader) error {
		snap.Initialized = r.has(keySettingsTheme) || r.has(keySettingsCreatedAt)
		if v := r.str(keySettingsTheme); v != "" {
			snap.Theme = v
		}
		if v := r.str(keySettingsLanguage); v != "" {
			snap.Language = v
		}
		var err error
		if snap.NotificationsEnabled, err = r.flag(keySettingsNotifications, snap.NotificationsEnabled); err != nil {
			return err
		}
		if snap.BiometricEnabled, err = r.flag(keySettingsBiometric, snap.BiometricEnabled); err != nil {
			return err
		}
		created, err := r.timestamp(keySettingsCreatedAt)
		if err != nil {
			return err
		}
		updated, err := r.timestamp(keySettingsUpdatedAt)
		if err != nil {
			return err
		}
		snap.CreatedAt, snap.UpdatedAt = orZero(created), orZero(updated)
		return nil
	})
	return degrade(s, "settings", snap, err, defaultSettingsSnapshot())
}

// SettingsStream observes the settings namespace.
func (s *Store) SettingsStream() (<-chan SettingsSnapshot, func()) {
	return s.settings.Subscribe()
}

// SaveSettings writes every settings field at once.
func (s *Store) SaveSettings(settings model.Settings) error {
	return s.update(func(w *writer) error {
		if err := w.putString(keySettingsTheme, settings.Theme); err != nil {
			return err
		}
		if err := w.putString(keySettingsLanguage, settings.Language); err != nil {
			return err
		}
		if err := w.putBool(keySettingsNotifications, settings.NotificationsEnabled); err != nil {
			return err
		}
		if err := w.putBool(keySettingsBiometric, settings.BiometricEnabled); err != nil {
			return err
		}
		if err := w.putTime(keySettingsCreatedAt, settings.CreatedAt); err != nil {
			return err
		}
		return w.putTime(keySettingsUpdatedAt, settings.UpdatedAt)
	}, nsSettings)
}

// UpdateTheme sets the theme.
func (s *Store) UpdateTheme(theme string) error {
	return s.setSetting(func(w *writer) error { return w.putString(keySettingsTheme, theme) })
}

// UpdateLanguage sets the language.
func (s *Store) UpdateLanguage(language string) error {
	return s.setSetting(func(w *writer) error { return w.putString(keySettingsLanguage, language) })
}

// UpdateNotificationsEnabled toggles notifications.
func (s *Store) UpdateNotificationsEnabled(enabled bool) error {
	return s.setSetting(func(w *writer) error { return w.putBool(keySettingsNotifications, enabled) })
}

// UpdateBiometricEnabled toggles biometric unlock.
func (s *Store) UpdateBiometricEnabled(enabled bool) error {
	return s.setSetting(func(w *writer) error { return w.putBool(keySettingsBiometric, enabled) })
}

func (s *Store) setSetting(set func(w *writer) error) error {
	now := s.now()
	return s.update(func(w *writer) error {
		if err := set(w); err != nil {
			return err
		}
		if w.bucket.Get([]byte(keySettingsCreatedAt)) == nil {
			if err := w.putTime(keySettingsCreatedAt, now); err != nil {
				return err
			}
		}
		return w.putTime(keySettingsUpdatedAt, now)
	}, nsSettings)
}
