package models

import (
	"time"

	"github.com/google/uuid"
)

// OIDCConfig is a stored identity provider registration.
type OIDCConfig struct {
	ID           uuid.UUID `json:"id"`
	Provider     string    `json:"provider"`
	Issuer       string    `json:"issuer"`
	Domain       *string   `json:"domain,omitempty"` // OAuth2 domain when it differs from the issuer (Cognito custom domains)
	ClientID     string    `json:"client_id"`
	ClientSecret *string   `json:"-"`
	RedirectURI  string    `json:"redirect_uri"`
	JWKSUrl      *string   `json:"jwks_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JWTClaims are the identity claims the API reads from a verified token.
type JWTClaims struct {
	Sub           string    `json:"sub"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Name          string    `json:"name"`
	Issuer        string    `json:"iss"`
	Audience      []string  `json:"aud"`
	ExpiresAt     time.Time `json:"exp"`
	IssuedAt      time.Time `json:"iat"`
}
