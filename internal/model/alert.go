package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MinCheckIntervalMinutes is the floor applied to alert check intervals.
const MinCheckIntervalMinutes = 15

// RateComparison selects how an offer rate is compared with the target.
type RateComparison string

const (
	CompareGreater RateComparison = "greater"
	CompareLess    RateComparison = "less"
	CompareEqual   RateComparison = "equal"
)

// ParseRateComparison validates user input.
func ParseRateComparison(v string) (RateComparison, error) {
	switch RateComparison(strings.ToLower(strings.TrimSpace(v))) {
	case CompareGreater, ">", "gt":
		return CompareGreater, nil
	case CompareLess, "<", "lt":
		return CompareLess, nil
	case CompareEqual, "=", "eq":
		return CompareEqual, nil
	default:
		return "", fmt.Errorf("unknown rate comparison %q", v)
	}
}

// Alert is a user-defined rule matched against live offers.
type Alert struct {
	ID                   int64
	Name                 string
	CoinType             string
	OfferType            OfferType
	MinAmount            *decimal.Decimal
	MaxAmount            *decimal.Decimal
	TargetRate           decimal.Decimal
	RateComparison       RateComparison
	OnlyKYC              bool
	OnlyVIP              bool
	Active               bool
	CheckIntervalMinutes int
	CreatedAt            time.Time
	LastCheckedAt        *time.Time
	LastTriggeredAt      *time.Time
}

// Normalize clamps the interval and fills defaults.
func (a *Alert) Normalize() {
	if a.CheckIntervalMinutes < MinCheckIntervalMinutes {
		a.CheckIntervalMinutes = MinCheckIntervalMinutes
	}
	if a.OfferType == "" {
		a.OfferType = OfferTypeBoth
	}
	if a.RateComparison == "" {
		a.RateComparison = CompareGreater
	}
	a.CoinType = strings.TrimSpace(a.CoinType)
}

// Validate checks the alert can be evaluated.
func (a Alert) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("alert name is required")
	}
	if a.CoinType == "" {
		return errors.New("alert coin is required")
	}
	if a.MinAmount != nil && a.MaxAmount != nil && a.MinAmount.GreaterThan(*a.MaxAmount) {
		return errors.New("alert min amount exceeds max amount")
	}
	if a.TargetRate.IsNegative() {
		return errors.New("alert target rate cannot be negative")
	}
	return nil
}

// Filter builds the server-side query for this alert.
func (a Alert) Filter() OfferFilter {
	f := OfferFilter{
		Coin: a.CoinType,
		Min:  a.MinAmount,
		Max:  a.MaxAmount,
		VIP:  a.OnlyVIP,
	}
	if a.OfferType != OfferTypeBoth {
		f.Type = a.OfferType
	}
	return f
}
