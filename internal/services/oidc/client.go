package oidc

import (
	"strings"

	"github.com/benvon/thought-capture/internal/models"
	"golang.org/x/oauth2"
)

// DefaultScopes are requested on every login.
var DefaultScopes = []string{"openid", "email", "profile"}

// NewOAuth2Config builds the OAuth2 client configuration for a provider.
// Public clients have no secret.
func NewOAuth2Config(cfg *models.OIDCConfig, endpoint oauth2.Endpoint) *oauth2.Config {
	secret := ""
	if cfg.ClientSecret != nil {
		secret = *cfg.ClientSecret
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: secret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       DefaultScopes,
		Endpoint:     endpoint,
	}
}

// issuerEndpoint derives the OAuth2 endpoints from the issuer URL.
func issuerEndpoint(issuer string) oauth2.Endpoint {
	base := strings.TrimSuffix(issuer, "/")
	return oauth2.Endpoint{
		AuthURL:  base + "/oauth2/authorize",
		TokenURL: base + "/oauth2/token",
	}
}

// domainEndpoint derives the endpoints from a Cognito hosted UI domain,
// which Cognito requires instead of the issuer for OAuth2 flows.
func domainEndpoint(domain string) oauth2.Endpoint {
	base := strings.TrimSuffix(domain, "/")
	if !strings.HasPrefix(base, "https://") && !strings.HasPrefix(base, "http://") {
		base = "https://" + base
	}
	return oauth2.Endpoint{
		AuthURL:  base + "/oauth2/authorize",
		TokenURL: base + "/oauth2/token",
	}
}

func isCognito(issuer string) bool {
	return strings.Contains(issuer, "cognito-idp.")
}
