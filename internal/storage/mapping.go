package storage

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"p2p-exchange-client/internal/model"
)

// ToEntity converts a domain offer into its cached form.
func ToEntity(o model.Offer) (OfferEntity, error) {
	coin, err := encodeBlob(o.CoinInfo)
	if err != nil {
		return OfferEntity{}, fmt.Errorf("encode coin of %s: %w", o.UUID, err)
	}
	owner, err := encodeBlob(o.Owner)
	if err != nil {
		return OfferEntity{}, fmt.Errorf("encode owner of %s: %w", o.UUID, err)
	}
	peer, err := encodeBlob(o.PeerProfile)
	if err != nil {
		return OfferEntity{}, fmt.Errorf("encode peer of %s: %w", o.UUID, err)
	}

	return OfferEntity{
		UUID:            o.UUID,
		Type:            string(o.Type),
		Coin:            o.Coin,
		PeerID:          o.PeerID,
		Amount:          o.Amount,
		Receive:         o.Receive,
		Details:         o.Details,
		Message:         o.Message,
		OnlyKYC:         int(o.OnlyKYC),
		Private:         int(o.Private),
		OnlyVIP:         int(o.OnlyVIP),
		Status:          o.Status,
		TransactionID:   o.TransactionID,
		ServerCreatedAt: o.CreatedAt,
		ServerUpdatedAt: o.UpdatedAt,
		CoinJSON:        coin,
		OwnerJSON:       owner,
		PeerJSON:        peer,
		LastSync:        o.LastSync,
		IsMine:          o.IsMine,
		LocalStatus:     o.LocalStatus,
	}, nil
}

// ToModel converts a cached row back into a domain offer.
func ToModel(e OfferEntity) (model.Offer, error) {
	o := model.Offer{
		UUID:          e.UUID,
		Type:          model.OfferType(e.Type),
		Coin:          e.Coin,
		PeerID:        e.PeerID,
		Amount:        e.Amount,
		Receive:       e.Receive,
		Details:       e.Details,
		Message:       e.Message,
		OnlyKYC:       model.Flag(e.OnlyKYC),
		Private:       model.Flag(e.Private),
		OnlyVIP:       model.Flag(e.OnlyVIP),
		Status:        e.Status,
		TransactionID: e.TransactionID,
		CreatedAt:     e.ServerCreatedAt,
		UpdatedAt:     e.ServerUpdatedAt,
		LastSync:      e.LastSync,
		IsMine:        e.IsMine,
		LocalStatus:   e.LocalStatus,
	}
	var err error
	if o.CoinInfo, err = decodeBlob[model.Coin](e.CoinJSON); err != nil {
		return model.Offer{}, fmt.Errorf("decode coin of %s: %w", e.UUID, err)
	}
	if o.Owner, err = decodeBlob[model.ProfileSummary](e.OwnerJSON); err != nil {
		return model.Offer{}, fmt.Errorf("decode owner of %s: %w", e.UUID, err)
	}
	if o.PeerProfile, err = decodeBlob[model.ProfileSummary](e.PeerJSON); err != nil {
		return model.Offer{}, fmt.Errorf("decode peer of %s: %w", e.UUID, err)
	}
	return o, nil
}

func encodeBlob[T any](v *T) (string, error) {
	if v == nil {
		return "", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeBlob[T any](text string) (*T, error) {
	if text == "" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func userToEntity(u model.User) UserEntity {
	return UserEntity{
		UUID:          u.UUID,
		RemoteID:      u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Avatar:        u.Avatar,
		Phone:         u.Phone,
		Balance:       u.Balance.String(),
		FrozenBalance: u.FrozenBalance.String(),
		CanWithdraw:   u.CanWithdraw.Ptr(),
		CanDeposit:    u.CanDeposit.Ptr(),
		CanTransfer:   u.CanTransfer.Ptr(),
		CanBuy:        u.CanBuy.Ptr(),
		CanSell:       u.CanSell.Ptr(),
		IsKYC:         u.IsKYC,
		IsVIP:         u.IsVIP,
		PhoneVerified: u.PhoneVerified,
		TwoFAEnabled:  u.TwoFAEnabled,
		TwoFASecret:   u.TwoFASecret,
		UpdatedAt:     u.UpdatedAt,
	}
}

func userToModel(e UserEntity) (model.User, error) {
	balance, err := parseDecimal(e.Balance)
	if err != nil {
		return model.User{}, fmt.Errorf("parse balance: %w", err)
	}
	frozen, err := parseDecimal(e.FrozenBalance)
	if err != nil {
		return model.User{}, fmt.Errorf("parse frozen balance: %w", err)
	}
	return model.User{
		ID:            e.RemoteID,
		UUID:          e.UUID,
		Username:      e.Username,
		Email:         e.Email,
		FirstName:     e.FirstName,
		LastName:      e.LastName,
		Avatar:        e.Avatar,
		Phone:         e.Phone,
		Balance:       balance,
		FrozenBalance: frozen,
		CanWithdraw:   model.TriOf(e.CanWithdraw),
		CanDeposit:    model.TriOf(e.CanDeposit),
		CanTransfer:   model.TriOf(e.CanTransfer),
		CanBuy:        model.TriOf(e.CanBuy),
		CanSell:       model.TriOf(e.CanSell),
		IsKYC:         e.IsKYC,
		IsVIP:         e.IsVIP,
		PhoneVerified: e.PhoneVerified,
		TwoFAEnabled:  e.TwoFAEnabled,
		TwoFASecret:   e.TwoFASecret,
		UpdatedAt:     e.UpdatedAt,
	}, nil
}

func alertToEntity(a model.Alert) AlertEntity {
	return AlertEntity{
		ID:                   a.ID,
		Name:                 a.Name,
		CoinType:             a.CoinType,
		OfferType:            string(a.OfferType),
		MinAmount:            decimalText(a.MinAmount),
		MaxAmount:            decimalText(a.MaxAmount),
		TargetRate:           a.TargetRate.String(),
		RateComparison:       string(a.RateComparison),
		OnlyKYC:              a.OnlyKYC,
		OnlyVIP:              a.OnlyVIP,
		IsActive:             a.Active,
		CheckIntervalMinutes: a.CheckIntervalMinutes,
		CreatedAt:            a.CreatedAt,
		LastCheckedAt:        a.LastCheckedAt,
		LastTriggeredAt:      a.LastTriggeredAt,
	}
}

func alertToModel(e AlertEntity) (model.Alert, error) {
	target, err := parseDecimal(e.TargetRate)
	if err != nil {
		return model.Alert{}, fmt.Errorf("parse target rate of alert %d: %w", e.ID, err)
	}
	minAmount, err := parseDecimalPtr(e.MinAmount)
	if err != nil {
		return model.Alert{}, fmt.Errorf("parse min amount of alert %d: %w", e.ID, err)
	}
	maxAmount, err := parseDecimalPtr(e.MaxAmount)
	if err != nil {
		return model.Alert{}, fmt.Errorf("parse max amount of alert %d: %w", e.ID, err)
	}
	return model.Alert{
		ID:                   e.ID,
		Name:                 e.Name,
		CoinType:             e.CoinType,
		OfferType:            model.OfferType(e.OfferType),
		MinAmount:            minAmount,
		MaxAmount:            maxAmount,
		TargetRate:           target,
		RateComparison:       model.RateComparison(e.RateComparison),
		OnlyKYC:              e.OnlyKYC,
		OnlyVIP:              e.OnlyVIP,
		Active:               e.IsActive,
		CheckIntervalMinutes: e.CheckIntervalMinutes,
		CreatedAt:            e.CreatedAt,
		LastCheckedAt:        e.LastCheckedAt,
		LastTriggeredAt:      e.LastTriggeredAt,
	}, nil
}

func templateToEntity(t model.Template) (TemplateEntity, error) {
	details, err := model.EncodeDetails(t.Details)
	if err != nil {
		return TemplateEntity{}, err
	}
	return TemplateEntity{
		ID:        t.ID,
		Name:      t.Name,
		Type:      string(t.Type),
		Coin:      t.Coin,
		Amount:    t.Amount,
		Receive:   t.Receive,
		Details:   details,
		OnlyKYC:   t.OnlyKYC,
		Private:   t.Private,
		OnlyVIP:   t.OnlyVIP,
		Message:   t.Message,
		Webhook:   t.Webhook,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}, nil
}

func templateToModel(e TemplateEntity) (model.Template, error) {
	details, err := model.DecodeDetails(e.Details)
	if err != nil {
		return model.Template{}, fmt.Errorf("template %q: %w", e.Name, err)
	}
	return model.Template{
		ID:        e.ID,
		Name:      e.Name,
		Type:      model.OfferType(e.Type),
		Coin:      e.Coin,
		Amount:    e.Amount,
		Receive:   e.Receive,
		Details:   details,
		OnlyKYC:   e.OnlyKYC,
		Private:   e.Private,
		OnlyVIP:   e.OnlyVIP,
		Message:   e.Message,
		Webhook:   e.Webhook,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

func parseDecimal(text string) (decimal.Decimal, error) {
	if text == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(text)
}

func parseDecimalPtr(text *string) (*decimal.Decimal, error) {
	if text == nil || *text == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*text)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
