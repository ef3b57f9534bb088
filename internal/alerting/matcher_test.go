package alerting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"p2p-exchange-client/internal/model"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func btcSellAlert() model.Alert {
	return model.Alert{
		CoinType:       "BTC",
		OfferType:      model.OfferTypeSell,
		MinAmount:      dec("10"),
		MaxAmount:      dec("100"),
		TargetRate:     decimal.NewFromInt(50),
		RateComparison: model.CompareGreater,
	}
}

func btcSellOffer() model.Offer {
	return model.Offer{Type: model.OfferTypeSell, Coin: "BTC", Amount: "20", Receive: "55", OnlyKYC: 1}
}

func TestMatchRateGreater(t *testing.T) {
	alert, offer := btcSellAlert(), btcSellOffer()
	assert.True(t, Match(alert, offer))

	offer.Receive = "45"
	assert.False(t, Match(alert, offer))
}

func TestMatchRateEqualTolerance(t *testing.T) {
	alert := model.Alert{CoinType: "BTC", OfferType: model.OfferTypeBoth, TargetRate: decimal.RequireFromString("10.00"), RateComparison: model.CompareEqual}
	offer := model.Offer{Type: model.OfferTypeBuy, Coin: "BTC", Amount: "1", Receive: "10.005"}
	assert.True(t, Match(alert, offer))

	offer.Receive = "10.02"
	assert.False(t, Match(alert, offer))

	offer.Receive = "10.01"
	assert.False(t, Match(alert, offer), "tolerance is strict")
}

func TestMatchCriteria(t *testing.T) {
	cases := []struct {
		name  string
		alter func(a *model.Alert, o *model.Offer)
		want  bool
	}{
		{"type mismatch", func(a *model.Alert, o *model.Offer) { o.Type = model.OfferTypeBuy }, false},
		{"both accepts any type", func(a *model.Alert, o *model.Offer) { a.OfferType = model.OfferTypeBoth; o.Type = model.OfferTypeBuy }, true},
		{"coin is exact", func(a *model.Alert, o *model.Offer) { o.Coin = "btc" }, false},
		{"below min", func(a *model.Alert, o *model.Offer) { o.Amount = "9.99" }, false},
		{"min inclusive", func(a *model.Alert, o *model.Offer) { o.Amount = "10" }, true},
		{"above max", func(a *model.Alert, o *model.Offer) { o.Amount = "100.01" }, false},
		{"no bounds ignore amount", func(a *model.Alert, o *model.Offer) { a.MinAmount, a.MaxAmount = nil, nil; o.Amount = "n/a" }, true},
		{"bad amount with bounds", func(a *model.Alert, o *model.Offer) { o.Amount = "n/a" }, false},
		{"bad receive", func(a *model.Alert, o *model.Offer) { o.Receive = "" }, false},
		{"less comparison", func(a *model.Alert, o *model.Offer) { a.RateComparison = model.CompareLess; o.Receive = "49.5" }, true},
		{"kyc required and set", func(a *model.Alert, o *model.Offer) { a.OnlyKYC = true }, true},
		{"kyc required but unset", func(a *model.Alert, o *model.Offer) { a.OnlyKYC = true; o.OnlyKYC = 0 }, false},
		{"vip required but unset", func(a *model.Alert, o *model.Offer) { a.OnlyVIP = true }, false},
		{"vip required and set", func(a *model.Alert, o *model.Offer) { a.OnlyVIP = true; o.OnlyVIP = 1 }, true},
		{"unknown comparison", func(a *model.Alert, o *model.Offer) { a.RateComparison = "between" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alert, offer := btcSellAlert(), btcSellOffer()
			tc.alter(&alert, &offer)
			assert.Equal(t, tc.want, Match(alert, offer))
		})
	}
}

func TestMatchesFilters(t *testing.T) {
	good, bad := btcSellOffer(), btcSellOffer()
	good.UUID, bad.UUID = "good", "bad"
	bad.Receive = "1"
	got := Matches(btcSellAlert(), []model.Offer{bad, good})
	assert.Len(t, got, 1)
	assert.Equal(t, "good", got[0].UUID)
}
