package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OfferType is the direction of a P2P offer.
type OfferType string

const (
	OfferTypeBuy  OfferType = "buy"
	OfferTypeSell OfferType = "sell"
	// OfferTypeBoth is only meaningful as an alert filter.
	OfferTypeBoth OfferType = "both"
)

// ParseOfferType normalises user input into an OfferType.
func ParseOfferType(v string) (OfferType, error) {
	switch OfferType(strings.ToLower(strings.TrimSpace(v))) {
	case OfferTypeBuy:
		return OfferTypeBuy, nil
	case OfferTypeSell:
		return OfferTypeSell, nil
	case OfferTypeBoth, "":
		return OfferTypeBoth, nil
	default:
		return "", fmt.Errorf("unknown offer type %q", v)
	}
}

// Flag is a boolean-ish marker that the API encodes as 0/1.
type Flag int

// IsSet reports whether the flag is enabled.
func (f Flag) IsSet() bool { return f != 0 }

// FlagOf converts a bool into a Flag.
func FlagOf(b bool) Flag {
	if b {
		return 1
	}
	return 0
}

// UnmarshalJSON accepts 0/1, true/false, "0"/"1" and null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch raw {
	case "", "null", "0", "false":
		*f = 0
	case "1", "true":
		*f = 1
	default:
		return fmt.Errorf("invalid flag value %s", string(data))
	}
	return nil
}

// Local statuses set before the server confirms an action.
const (
	LocalStatusCancelling = "cancelling"
	LocalStatusApplying   = "applying"
)

// Coin describes the asset an offer trades.
type Coin struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Icon     string `json:"icon,omitempty"`
	Decimals int    `json:"decimals"`
}

// ProfileSummary is the owner/peer blob embedded in an offer.
type ProfileSummary struct {
	ID       int64  `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	IsKYC    Flag   `json:"is_kyc"`
	IsVIP    Flag   `json:"is_vip"`
}

// Offer is a P2P buy/sell listing. Amount and Receive stay textual so the
// wire value survives caching untouched.
type Offer struct {
	UUID          string          `json:"uuid"`
	Type          OfferType       `json:"type"`
	Coin          string          `json:"coin"`
	PeerID        *int64          `json:"peer_id"`
	Amount        string          `json:"amount"`
	Receive       string          `json:"receive"`
	Details       string          `json:"details"`
	Message       string          `json:"message"`
	OnlyKYC       Flag            `json:"only_kyc"`
	Private       Flag            `json:"private"`
	OnlyVIP       Flag            `json:"only_vip"`
	Status        string          `json:"status"`
	TransactionID *string         `json:"transaction_id"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
	CoinInfo      *Coin           `json:"coin_info,omitempty"`
	Owner         *ProfileSummary `json:"owner,omitempty"`
	PeerProfile   *ProfileSummary `json:"peer,omitempty"`

	// Local-only metadata, never sent to the server.
	LastSync    time.Time `json:"-"`
	IsMine      bool      `json:"-"`
	LocalStatus *string   `json:"-"`
}

// AmountDecimal parses the textual amount.
func (o Offer) AmountDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(o.Amount))
}

// ReceiveDecimal parses the textual receive amount.
func (o Offer) ReceiveDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(o.Receive))
}

// EffectiveStatus prefers the local override when one is pending.
func (o Offer) EffectiveStatus() string {
	if o.LocalStatus != nil && *o.LocalStatus != "" {
		return *o.LocalStatus
	}
	return o.Status
}

// OfferFilter maps onto the /p2p/index query parameters.
type OfferFilter struct {
	Type    OfferType
	Coin    string
	Min     *decimal.Decimal
	Max     *decimal.Decimal
	My      bool
	VIP     bool
	Page    int
	PerPage int
}

// Page is the paginated envelope returned by /p2p/index.
type Page struct {
	CurrentPage int     `json:"current_page"`
	Data        []Offer `json:"data"`
	Total       int     `json:"total"`
	LastPage    int     `json:"last_page"`
	PerPage     int     `json:"per_page"`
	From        *int    `json:"from"`
	To          *int    `json:"to"`
}

// HasMore reports whether another page follows.
func (p Page) HasMore() bool {
	return p.CurrentPage < p.LastPage
}

// DetailPair is an arbitrary name/value entry attached to an offer.
type DetailPair struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// EncodeDetails renders detail pairs as the structured text the API expects.
func EncodeDetails(pairs []DetailPair) (string, error) {
	if len(pairs) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("encode details: %w", err)
	}
	return string(raw), nil
}

// DecodeDetails is the inverse of EncodeDetails. Empty text yields no pairs.
func DecodeDetails(text string) ([]DetailPair, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var pairs []DetailPair
	if err := json.Unmarshal([]byte(text), &pairs); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return pairs, nil
}

// CreateOfferRequest is the payload for POST /p2p/create.
type CreateOfferRequest struct {
	Type    OfferType `json:"type"`
	Coin    string    `json:"coin"`
	Amount  string    `json:"amount"`
	Receive string    `json:"receive"`
	Details string    `json:"details"`
	Message string    `json:"message,omitempty"`
	OnlyKYC Flag      `json:"only_kyc"`
	Private Flag      `json:"private"`
	OnlyVIP Flag      `json:"only_vip"`
	Webhook string    `json:"webhook,omitempty"`
}
