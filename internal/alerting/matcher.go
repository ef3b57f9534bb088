package alerting

import (
	"github.com/shopspring/decimal"

	"p2p-exchange-client/internal/model"
)

// equalTolerance absorbs rounding in the textual receive amount.
var equalTolerance = decimal.RequireFromString("0.01")

// Match reports whether offer satisfies every criterion of alert.
func Match(alert model.Alert, offer model.Offer) bool {
	if alert.OfferType != model.OfferTypeBoth && alert.OfferType != "" && offer.Type != alert.OfferType {
		return false
	}
	if offer.Coin != alert.CoinType {
		return false
	}

	if alert.MinAmount != nil || alert.MaxAmount != nil {
		amount, err := offer.AmountDecimal()
		if err != nil {
			return false
		}
		if alert.MinAmount != nil && amount.LessThan(*alert.MinAmount) {
			return false
		}
		if alert.MaxAmount != nil && amount.GreaterThan(*alert.MaxAmount) {
			return false
		}
	}

	rate, err := offer.ReceiveDecimal()
	if err != nil {
		return false
	}
	if !CompareRate(rate, alert.TargetRate, alert.RateComparison) {
		return false
	}

	if alert.OnlyKYC && !offer.OnlyKYC.IsSet() {
		return false
	}
	if alert.OnlyVIP && !offer.OnlyVIP.IsSet() {
		return false
	}
	return true
}

// CompareRate applies cmp to rate against target.
func CompareRate(rate, target decimal.Decimal, cmp model.RateComparison) bool {
	switch cmp {
	case model.CompareGreater:
		return rate.GreaterThan(target)
	case model.CompareLess:
		return rate.LessThan(target)
	case model.CompareEqual:
		return rate.Sub(target).Abs().LessThan(equalTolerance)
	default:
		return false
	}
}

// Matches filters offers down to those satisfying alert.
func Matches(alert model.Alert, offers []model.Offer) []model.Offer {
	var out []model.Offer
	for _, o := range offers {
		if Match(alert, o) {
			out = append(out, o)
		}
	}
	return out
}
