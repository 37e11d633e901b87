package oidc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// DefaultJWKSRefresh is the minimum interval between key set refreshes.
const DefaultJWKSRefresh = 15 * time.Minute

// JWKSManager fetches and caches provider key sets. Each URL is registered
// with the underlying cache on first use and refreshed in the background.
type JWKSManager struct {
	cache   *jwk.Cache
	client  *http.Client
	refresh time.Duration
}

// NewJWKSManager creates a key set cache that lives as long as ctx.
func NewJWKSManager(ctx context.Context, client *http.Client) *JWKSManager {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSManager{
		cache:   jwk.NewCache(ctx),
		client:  client,
		refresh: DefaultJWKSRefresh,
	}
}

// GetJWKS returns the key set published at jwksURL.
func (m *JWKSManager) GetJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	if !m.cache.IsRegistered(jwksURL) {
		err := m.cache.Register(jwksURL,
			jwk.WithHTTPClient(m.client),
			jwk.WithMinRefreshInterval(m.refresh),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to register JWKS url: %w", err)
		}
	}
	keys, err := m.cache.Get(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	return keys, nil
}
