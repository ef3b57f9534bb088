package repository

import (
	"context"
	"time"

	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/storage"
)

// AlertRepository manages user-defined offer alerts.
type AlertRepository struct {
	store *storage.AlertStore
	now   func() time.Time
}

// NewAlertRepository wires the alert repository.
func NewAlertRepository(store *storage.AlertStore) *AlertRepository {
	return &AlertRepository{store: store, now: time.Now}
}

// Create normalises, validates and stores a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert model.Alert) (model.Alert, error) {
	alert.Normalize()
	if err := alert.Validate(); err != nil {
		return model.Alert{}, err
	}
	alert.CreatedAt = r.now().UTC()
	alert.LastCheckedAt, alert.LastTriggeredAt = nil, nil
	return r.store.Create(ctx, alert)
}

// Update rewrites the user-editable fields of an alert.
func (r *AlertRepository) Update(ctx context.Context, alert model.Alert) error {
	alert.Normalize()
	if err := alert.Validate(); err != nil {
		return err
	}
	return r.store.Update(ctx, alert)
}

// Delete removes an alert.
func (r *AlertRepository) Delete(ctx context.Context, id int64) error {
	return r.store.Delete(ctx, id)
}

// ByID loads one alert.
func (r *AlertRepository) ByID(ctx context.Context, id int64) (model.Alert, error) {
	return r.store.ByID(ctx, id)
}

// List returns every alert.
func (r *AlertRepository) List(ctx context.Context) ([]model.Alert, error) {
	return r.store.List(ctx)
}

// SetActive enables or disables an alert.
func (r *AlertRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.store.SetActive(ctx, id, active)
}

// ScheduleInterval is the shortest check interval among active alerts,
// never below the platform floor. ok is false when no alert is active.
func (r *AlertRepository) ScheduleInterval(ctx context.Context) (interval time.Duration, ok bool, err error) {
	active, err := r.store.ListActive(ctx)
	if err != nil {
		return 0, false, err
	}
	if len(active) == 0 {
		return 0, false, nil
	}
	minutes := active[0].CheckIntervalMinutes
	for _, a := range active[1:] {
		if a.CheckIntervalMinutes < minutes {
			minutes = a.CheckIntervalMinutes
		}
	}
	if minutes < model.MinCheckIntervalMinutes {
		minutes = model.MinCheckIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute, true, nil
}
