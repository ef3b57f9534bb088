package model

import "time"

// Theme values accepted by the settings layer.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// Settings is the single logical settings row.
type Settings struct {
	Theme                string
	Language             string
	NotificationsEnabled bool
	BiometricEnabled     bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DefaultSettings returns the values materialised on first access.
func DefaultSettings(now time.Time) Settings {
	return Settings{
		Theme:                ThemeSystem,
		Language:             "en",
		NotificationsEnabled: true,
		BiometricEnabled:     false,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Template snapshots the fields needed to re-create an offer.
type Template struct {
	ID        int64        `yaml:"-"`
	Name      string       `yaml:"name"`
	Type      OfferType    `yaml:"type"`
	Coin      string       `yaml:"coin"`
	Amount    string       `yaml:"amount"`
	Receive   string       `yaml:"receive"`
	Details   []DetailPair `yaml:"details,omitempty"`
	OnlyKYC   bool         `yaml:"only_kyc"`
	Private   bool         `yaml:"private"`
	OnlyVIP   bool         `yaml:"only_vip"`
	Message   string       `yaml:"message,omitempty"`
	Webhook   string       `yaml:"webhook,omitempty"`
	CreatedAt time.Time    `yaml:"-"`
	UpdatedAt time.Time    `yaml:"-"`
}

// Request converts the template into a create payload.
func (t Template) Request() (CreateOfferRequest, error) {
	details, err := EncodeDetails(t.Details)
	if err != nil {
		return CreateOfferRequest{}, err
	}
	return CreateOfferRequest{
		Type:    t.Type,
		Coin:    t.Coin,
		Amount:  t.Amount,
		Receive: t.Receive,
		Details: details,
		Message: t.Message,
		OnlyKYC: FlagOf(t.OnlyKYC),
		Private: FlagOf(t.Private),
		OnlyVIP: FlagOf(t.OnlyVIP),
		Webhook: t.Webhook,
	}, nil
}
