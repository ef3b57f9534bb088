package api

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"p2p-exchange-client/internal/model"
)

// LoginRequest is the POST /auth/login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

// LoginResponse carries the issued token and the embedded profile.
type LoginResponse struct {
	AccessToken  string     `json:"accessToken"`
	TokenType    string     `json:"token_type"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Me           model.User `json:"me"`
}

// ExpiresAt reads the exp claim of the access token, if it is a JWT.
func (r LoginResponse) ExpiresAt() *time.Time {
	return TokenExpiry(r.AccessToken)
}

// OfferResponse is returned by POST /p2p/create.
type OfferResponse struct {
	Message string       `json:"message"`
	Offer   *model.Offer `json:"offer"`
}

// ApplyResponse is returned by POST /p2p/apply.
type ApplyResponse struct {
	Message       string       `json:"message"`
	TransactionID string       `json:"transaction_id"`
	Offer         *model.Offer `json:"offer"`
}

// CancelResponse is returned by POST /p2p/cancel.
type CancelResponse struct {
	Message string       `json:"message"`
	Status  string       `json:"status"`
	Offer   *model.Offer `json:"offer"`
}

type uuidRequest struct {
	UUID string `json:"uuid"`
}

// TokenExpiry extracts the expiry of a JWT without verifying its signature.
// Opaque tokens yield nil.
func TokenExpiry(token string) *time.Time {
	if token == "" {
		return nil
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	exp := claims.ExpiresAt.Time.UTC()
	return &exp
}
