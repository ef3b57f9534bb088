package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"p2p-exchange-client/internal/model"
)

// columns written by user edits; the check timestamps belong to the alert job
var alertEditableColumns = []string{
	"name",
	"coin_type",
	"offer_type",
	"min_amount",
	"max_amount",
	"target_rate",
	"rate_comparison",
	"only_kyc",
	"only_vip",
	"is_active",
	"check_interval_minutes",
}

// AlertStore persists offer alerts.
type AlertStore struct {
	db *gorm.DB
}

// NewAlertStore wires the alerts table onto db.
func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

// Create inserts alert and returns it with its assigned id.
func (s *AlertStore) Create(ctx context.Context, alert model.Alert) (model.Alert, error) {
	row := alertToEntity(alert)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	alert.ID = row.ID
	return alert, nil
}

// Update rewrites the user-editable fields of alert.
func (s *AlertStore) Update(ctx context.Context, alert model.Alert) error {
	row := alertToEntity(alert)
	res := s.db.WithContext(ctx).Model(&AlertEntity{}).Where("id = ?", alert.ID).
		Select(alertEditableColumns).Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update alert %d: %w", alert.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an alert.
func (s *AlertStore) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&AlertEntity{})
	if res.Error != nil {
		return fmt.Errorf("delete alert %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ByID returns a single alert or ErrNotFound.
func (s *AlertStore) ByID(ctx context.Context, id int64) (model.Alert, error) {
	var row AlertEntity
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return model.Alert{}, notFound(err)
	}
	return alertToModel(row)
}

// List returns every alert ordered by creation.
func (s *AlertStore) List(ctx context.Context) ([]model.Alert, error) {
	return s.find(s.db.WithContext(ctx))
}

// ListActive returns active alerts only.
func (s *AlertStore) ListActive(ctx context.Context) ([]model.Alert, error) {
	return s.find(s.db.WithContext(ctx).Where("is_active = ?", true))
}

// SetActive toggles an alert.
func (s *AlertStore) SetActive(ctx context.Context, id int64, active bool) error {
	return s.set(ctx, id, "is_active", active)
}

// MarkChecked records the last evaluation time.
func (s *AlertStore) MarkChecked(ctx context.Context, id int64, at time.Time) error {
	return s.set(ctx, id, "last_checked_at", at)
}

// MarkTriggered records the last match time.
func (s *AlertStore) MarkTriggered(ctx context.Context, id int64, at time.Time) error {
	return s.set(ctx, id, "last_triggered_at", at)
}

func (s *AlertStore) set(ctx context.Context, id int64, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&AlertEntity{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("update alert %d %s: %w", id, column, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *AlertStore) find(q *gorm.DB) ([]model.Alert, error) {
	var rows []AlertEntity
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	out := make([]model.Alert, 0, len(rows))
	for _, r := range rows {
		a, err := alertToModel(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
