package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"p2p-exchange-client/internal/model"
)

// UserStore caches user profiles keyed by UUID.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore wires the users table onto db.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Upsert inserts or replaces the profile of u.UUID.
func (s *UserStore) Upsert(ctx context.Context, u model.User) error {
	if u.UUID == "" {
		return fmt.Errorf("upsert user: uuid is required")
	}
	row := userToEntity(u)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// ByUUID returns the cached profile or ErrNotFound.
func (s *UserStore) ByUUID(ctx context.Context, uuid string) (model.User, error) {
	var row UserEntity
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).Take(&row).Error; err != nil {
		return model.User{}, notFound(err)
	}
	return userToModel(row)
}

// Delete removes a single profile.
func (s *UserStore) Delete(ctx context.Context, uuid string) error {
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).Delete(&UserEntity{}).Error; err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// DeleteAll drops every cached profile.
func (s *UserStore) DeleteAll(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec(`DELETE FROM users`).Error; err != nil {
		return fmt.Errorf("delete users: %w", err)
	}
	return nil
}
