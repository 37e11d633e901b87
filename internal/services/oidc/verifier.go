package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/thought-capture/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrMissingSubject is returned for a valid token that names no user.
var ErrMissingSubject = errors.New("token missing subject claim")

// Verifier verifies provider-issued JWTs
type Verifier struct {
	jwksManager *JWKSManager
	issuer      string
}

// NewVerifier creates a new JWT verifier
func NewVerifier(jwksManager *JWKSManager, issuer string) *Verifier {
	return &Verifier{
		jwksManager: jwksManager,
		issuer:      issuer,
	}
}

// Verify checks the token signature against the provider's key set, its
// expiry and its issuer, then extracts the identity claims.
func (v *Verifier) Verify(ctx context.Context, tokenString string, jwksURL string) (*models.JWTClaims, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, jwksURL)
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	if token.Subject() == "" {
		return nil, ErrMissingSubject
	}

	return &models.JWTClaims{
		Sub:           token.Subject(),
		Email:         stringClaim(token, "email"),
		EmailVerified: boolClaim(token, "email_verified"),
		Name:          stringClaim(token, "name"),
		Issuer:        token.Issuer(),
		Audience:      token.Audience(),
		ExpiresAt:     token.Expiration(),
		IssuedAt:      token.IssuedAt(),
	}, nil
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// boolClaim accepts both JSON booleans and the "true" strings some providers emit.
func boolClaim(token jwt.Token, name string) bool {
	v, ok := token.Get(name)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	}
	return false
}
