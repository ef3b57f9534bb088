package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TriState distinguishes "not reported" from an explicit false.
type TriState int8

const (
	TriUnknown TriState = iota
	TriFalse
	TriTrue
)

// TriOf converts a nullable bool.
func TriOf(b *bool) TriState {
	if b == nil {
		return TriUnknown
	}
	if *b {
		return TriTrue
	}
	return TriFalse
}

// Ptr converts back to a nullable bool.
func (t TriState) Ptr() *bool {
	switch t {
	case TriTrue:
		v := true
		return &v
	case TriFalse:
		v := false
		return &v
	default:
		return nil
	}
}

func (t TriState) String() string {
	switch t {
	case TriTrue:
		return "yes"
	case TriFalse:
		return "no"
	default:
		return "unknown"
	}
}

// UnmarshalJSON accepts booleans, 0/1 and null.
func (t *TriState) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch raw {
	case "null", "":
		*t = TriUnknown
	case "true", "1":
		*t = TriTrue
	case "false", "0":
		*t = TriFalse
	default:
		return fmt.Errorf("invalid tri-state value %s", string(data))
	}
	return nil
}

// MarshalJSON emits null, true or false.
func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case TriTrue:
		return []byte("true"), nil
	case TriFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// User is the authenticated profile returned by the API.
type User struct {
	ID            int64           `json:"id"`
	UUID          string          `json:"uuid"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Avatar        string          `json:"avatar"`
	Phone         string          `json:"phone"`
	Balance       decimal.Decimal `json:"balance"`
	FrozenBalance decimal.Decimal `json:"frozen_balance"`
	CanWithdraw   TriState        `json:"can_withdraw"`
	CanDeposit    TriState        `json:"can_deposit"`
	CanTransfer   TriState        `json:"can_transfer"`
	CanBuy        TriState        `json:"can_buy"`
	CanSell       TriState        `json:"can_sell"`
	IsKYC         bool            `json:"is_kyc"`
	IsVIP         bool            `json:"is_vip"`
	PhoneVerified bool            `json:"phone_verified"`
	TwoFAEnabled  bool            `json:"google2fa_enabled"`
	TwoFASecret   string          `json:"google2fa_secret"`
	UpdatedAt     time.Time       `json:"-"`
}

// DisplayName prefers the real name over the handle.
func (u User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return u.Username
}

// Session is the authenticated session.
type Session struct {
	UserID       int64
	UserUUID     string
	Username     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    *time.Time
}

// Expired reports whether the session has a known expiry in the past.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Usable reports whether the session can authenticate requests.
func (s Session) Usable(now time.Time) bool {
	return s.Active && s.AccessToken != "" && !s.Expired(now)
}
