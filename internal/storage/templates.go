package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"p2p-exchange-client/internal/model"
)

// TemplateStore persists offer templates. Names are unique.
type TemplateStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTemplateStore wires the templates table onto db.
func NewTemplateStore(db *gorm.DB) *TemplateStore {
	return &TemplateStore{db: db, now: time.Now}
}

// Save inserts a new template.
func (s *TemplateStore) Save(ctx context.Context, t model.Template) (model.Template, error) {
	now := s.now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	row, err := templateToEntity(t)
	if err != nil {
		return model.Template{}, err
	}
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Template{}, fmt.Errorf("insert template %q: %w", t.Name, err)
	}
	t.ID = row.ID
	return t, nil
}

// Update rewrites a template and refreshes its updated-at time.
func (s *TemplateStore) Update(ctx context.Context, t model.Template) error {
	t.UpdatedAt = s.now().UTC()
	row, err := templateToEntity(t)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&TemplateEntity{}).Where("id = ?", t.ID).
		Select("name", "type", "coin", "amount", "receive", "details", "only_kyc", "private",
			"only_vip", "message", "webhook", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update template %q: %w", t.Name, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a template by id.
func (s *TemplateStore) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&TemplateEntity{})
	if res.Error != nil {
		return fmt.Errorf("delete template: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ByName returns a template or ErrNotFound.
func (s *TemplateStore) ByName(ctx context.Context, name string) (model.Template, error) {
	var row TemplateEntity
	if err := s.db.WithContext(ctx).Where("name = ?", name).Take(&row).Error; err != nil {
		return model.Template{}, notFound(err)
	}
	return templateToModel(row)
}

// ByID returns a template or ErrNotFound.
func (s *TemplateStore) ByID(ctx context.Context, id int64) (model.Template, error) {
	var row TemplateEntity
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return model.Template{}, notFound(err)
	}
	return templateToModel(row)
}

// List returns templates sorted by name.
func (s *TemplateStore) List(ctx context.Context) ([]model.Template, error) {
	var rows []TemplateEntity
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]model.Template, 0, len(rows))
	for _, r := range rows {
		t, err := templateToModel(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
