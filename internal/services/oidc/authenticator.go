package oidc

import (
	"context"
	"fmt"

	"github.com/benvon/thought-capture/internal/models"
)

// Authenticator verifies bearer tokens against one configured provider.
type Authenticator struct {
	provider     *Provider
	jwks         *JWKSManager
	providerName string
}

// NewAuthenticator creates an authenticator for the named provider registration.
func NewAuthenticator(provider *Provider, jwks *JWKSManager, providerName string) *Authenticator {
	return &Authenticator{provider: provider, jwks: jwks, providerName: providerName}
}

// ProviderName returns the provider registration tokens are checked against.
func (a *Authenticator) ProviderName() string { return a.providerName }

// VerifyToken resolves the provider config and key set, then verifies the token.
// The config is read on every call so configure CLI changes apply without restart.
func (a *Authenticator) VerifyToken(ctx context.Context, token string) (*models.JWTClaims, error) {
	cfg, err := a.provider.GetConfig(ctx, a.providerName)
	if err != nil {
		return nil, err
	}
	jwksURL, err := a.provider.JWKSURL(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve JWKS url: %w", err)
	}
	return NewVerifier(a.jwks, cfg.Issuer).Verify(ctx, token, jwksURL)
}
