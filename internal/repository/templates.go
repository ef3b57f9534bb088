package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/storage"
)

// TemplateRepository manages offer templates.
type TemplateRepository struct {
	store *storage.TemplateStore
}

// NewTemplateRepository wires the template repository.
func NewTemplateRepository(store *storage.TemplateStore) *TemplateRepository {
	return &TemplateRepository{store: store}
}

type templateFile struct {
	Templates []model.Template `yaml:"templates"`
}

// Save validates and inserts a new template.
func (r *TemplateRepository) Save(ctx context.Context, t model.Template) (model.Template, error) {
	if err := validateTemplate(&t); err != nil {
		return model.Template{}, err
	}
	return r.store.Save(ctx, t)
}

// FromOffer snapshots an existing offer under name.
func (r *TemplateRepository) FromOffer(ctx context.Context, name string, offer model.Offer) (model.Template, error) {
	details, err := model.DecodeDetails(offer.Details)
	if err != nil {
		// free-form details are kept as a single pair
		details = []model.DetailPair{{Name: "details", Value: offer.Details}}
	}
	return r.Save(ctx, model.Template{
		Name:    name,
		Type:    offer.Type,
		Coin:    offer.Coin,
		Amount:  offer.Amount,
		Receive: offer.Receive,
		Details: details,
		OnlyKYC: offer.OnlyKYC.IsSet(),
		Private: offer.Private.IsSet(),
		OnlyVIP: offer.OnlyVIP.IsSet(),
		Message: offer.Message,
	})
}

// Update rewrites an existing template.
func (r *TemplateRepository) Update(ctx context.Context, t model.Template) error {
	if err := validateTemplate(&t); err != nil {
		return err
	}
	return r.store.Update(ctx, t)
}

// Delete removes the template called name.
func (r *TemplateRepository) Delete(ctx context.Context, name string) error {
	t, err := r.store.ByName(ctx, name)
	if err != nil {
		return err
	}
	return r.store.Delete(ctx, t.ID)
}

// ByName loads one template.
func (r *TemplateRepository) ByName(ctx context.Context, name string) (model.Template, error) {
	return r.store.ByName(ctx, name)
}

// List returns every template.
func (r *TemplateRepository) List(ctx context.Context) ([]model.Template, error) {
	return r.store.List(ctx)
}

// Export writes every template as YAML.
func (r *TemplateRepository) Export(ctx context.Context, w io.Writer) (int, error) {
	list, err := r.store.List(ctx)
	if err != nil {
		return 0, err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(templateFile{Templates: list}); err != nil {
		return 0, fmt.Errorf("encode templates: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return len(list), nil
}

// Import reads YAML templates. Existing names are skipped unless overwrite
// is set.
func (r *TemplateRepository) Import(ctx context.Context, rd io.Reader, overwrite bool) (int, error) {
	var file templateFile
	if err := yaml.NewDecoder(rd).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("decode templates: %w", err)
	}

	imported := 0
	for _, t := range file.Templates {
		existing, err := r.store.ByName(ctx, t.Name)
		switch {
		case err == nil:
			if !overwrite {
				continue
			}
			t.ID = existing.ID
			if err := r.Update(ctx, t); err != nil {
				return imported, err
			}
		case errors.Is(err, storage.ErrNotFound):
			if _, err := r.Save(ctx, t); err != nil {
				return imported, err
			}
		default:
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func validateTemplate(t *model.Template) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return errors.New("template name is required")
	}
	if t.Type != model.OfferTypeBuy && t.Type != model.OfferTypeSell {
		return fmt.Errorf("template %q: type must be buy or sell", t.Name)
	}
	if strings.TrimSpace(t.Coin) == "" {
		return fmt.Errorf("template %q: coin is required", t.Name)
	}
	return nil
}
