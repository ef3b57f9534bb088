package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"p2p-exchange-client/internal/model"
)

const clearSessionsSQL = `DELETE FROM sessions`

// SessionStore is the legacy relational session table. It is kept for
// migration into the preference store.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore wires the session table onto db.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// SaveSession replaces every stored session with s in one transaction, so at
// most one row is ever active.
func (s *SessionStore) SaveSession(ctx context.Context, session model.Session) error {
	row := SessionEntity{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		UserID:      session.UserID,
		UserUUID:    session.UserUUID,
		IsActive:    true,
		CreatedAt:   session.CreatedAt,
		ExpiresAt:   session.ExpiresAt,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(clearSessionsSQL).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ActiveSession returns the active session or ErrNotFound.
func (s *SessionStore) ActiveSession(ctx context.Context) (model.Session, error) {
	var row SessionEntity
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id DESC").Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, fmt.Errorf("load active session: %w", err)
	}
	return model.Session{
		UserID:      row.UserID,
		UserUUID:    row.UserUUID,
		AccessToken: row.AccessToken,
		TokenType:   row.TokenType,
		Active:      row.IsActive,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.CreatedAt,
		ExpiresAt:   row.ExpiresAt,
	}, nil
}

// CountActive returns the number of active rows.
func (s *SessionStore) CountActive(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&SessionEntity{}).Where("is_active = ?", true).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// Clear removes every session row.
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec(clearSessionsSQL).Error; err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}
