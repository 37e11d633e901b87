package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrNoJWKSURL is returned when neither the stored config nor discovery names a key set.
var ErrNoJWKSURL = errors.New("JWKS URL not configured")

// Provider manages OIDC provider configuration
type Provider struct {
	repo   database.OIDCConfigStore
	client *http.Client
	logger *zap.Logger
}

// NewProvider creates a new OIDC provider manager. A nil client gets a
// short-timeout default for discovery requests.
func NewProvider(repo database.OIDCConfigStore, client *http.Client, logger *zap.Logger) *Provider {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{repo: repo, client: client, logger: logger}
}

// GetConfig retrieves OIDC configuration for a provider
func (p *Provider) GetConfig(ctx context.Context, providerName string) (*models.OIDCConfig, error) {
	config, err := p.repo.GetByProvider(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	return config, nil
}

// LoginConfig contains OIDC login configuration for frontend
type LoginConfig struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	ClientID              string `json:"client_id"`
	RedirectURI           string `json:"redirect_uri"`
	Scope                 string `json:"scope"`
}

// GetLoginConfig returns the configuration needed for frontend OIDC login.
// Endpoints come from the discovery document when it is reachable and
// from the issuer otherwise. A Cognito domain overrides both.
func (p *Provider) GetLoginConfig(ctx context.Context, providerName string) (*LoginConfig, error) {
	config, err := p.GetConfig(ctx, providerName)
	if err != nil {
		return nil, err
	}

	endpoint := issuerEndpoint(config.Issuer)
	if discovered, err := p.discover(ctx, config.Issuer); err != nil {
		p.logger.Debug("oidc_discovery_failed",
			zap.String("provider", providerName),
			zap.Error(err),
		)
	} else {
		if discovered.AuthorizationEndpoint != "" {
			endpoint.AuthURL = discovered.AuthorizationEndpoint
		}
		if discovered.TokenEndpoint != "" {
			endpoint.TokenURL = discovered.TokenEndpoint
		}
	}
	if config.Domain != nil && *config.Domain != "" && isCognito(config.Issuer) {
		endpoint = domainEndpoint(*config.Domain)
	}

	oc := NewOAuth2Config(config, endpoint)
	return &LoginConfig{
		AuthorizationEndpoint: oc.Endpoint.AuthURL,
		TokenEndpoint:         oc.Endpoint.TokenURL,
		ClientID:              oc.ClientID,
		RedirectURI:           oc.RedirectURL,
		Scope:                 strings.Join(oc.Scopes, " "),
	}, nil
}

type discoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

func (p *Provider) discover(ctx context.Context, issuer string) (*discoveryDocument, error) {
	url := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery returned status %d", resp.StatusCode)
	}
	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}
	return &doc, nil
}

// JWKSURL returns the configured key set URL, falling back to the one the
// discovery document publishes.
func (p *Provider) JWKSURL(ctx context.Context, cfg *models.OIDCConfig) (string, error) {
	if cfg.JWKSUrl != nil && *cfg.JWKSUrl != "" {
		return *cfg.JWKSUrl, nil
	}
	doc, err := p.discover(ctx, cfg.Issuer)
	if err != nil {
		return "", err
	}
	if doc.JWKSURI == "" {
		return "", ErrNoJWKSURL
	}
	return doc.JWKSURI, nil
}

// Endpoint exposes the derived endpoints for callers that drive the
// OAuth2 flow server-side (the configure CLI's test command).
func Endpoint(cfg *models.OIDCConfig) oauth2.Endpoint {
	if cfg.Domain != nil && *cfg.Domain != "" && isCognito(cfg.Issuer) {
		return domainEndpoint(*cfg.Domain)
	}
	return issuerEndpoint(cfg.Issuer)
}
