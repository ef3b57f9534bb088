package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"p2p-exchange-client/internal/model"
)

const settingsRowID = 1

// SettingsStore holds the single settings row.
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore wires the settings table onto db.
func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the stored settings or ErrNotFound when none were saved.
func (s *SettingsStore) Get(ctx context.Context) (model.Settings, error) {
	var row SettingsEntity
	if err := s.db.WithContext(ctx).Where("id = ?", settingsRowID).Take(&row).Error; err != nil {
		return model.Settings{}, notFound(err)
	}
	return model.Settings{
		Theme:                row.Theme,
		Language:             row.Language,
		NotificationsEnabled: row.NotificationsEnabled,
		BiometricEnabled:     row.BiometricEnabled,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}, nil
}

// Save writes every field of the settings row.
func (s *SettingsStore) Save(ctx context.Context, settings model.Settings) error {
	row := SettingsEntity{
		ID:                   settingsRowID,
		Theme:                settings.Theme,
		Language:             settings.Language,
		NotificationsEnabled: settings.NotificationsEnabled,
		BiometricEnabled:     settings.BiometricEnabled,
		CreatedAt:            settings.CreatedAt,
		UpdatedAt:            settings.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
