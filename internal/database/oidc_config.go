package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/thought-capture/internal/models"
)

const oidcColumns = `id, provider, issuer, domain, client_id, client_secret, redirect_uri, jwks_url, created_at, updated_at`

// OIDCConfigRepository handles identity provider registrations
type OIDCConfigRepository struct {
	db *DB
}

// NewOIDCConfigRepository creates a new OIDC config repository
func NewOIDCConfigRepository(db *DB) *OIDCConfigRepository {
	return &OIDCConfigRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOIDCConfig(row rowScanner) (*models.OIDCConfig, error) {
	c := &models.OIDCConfig{}
	err := row.Scan(&c.ID, &c.Provider, &c.Issuer, &c.Domain, &c.ClientID, &c.ClientSecret,
		&c.RedirectURI, &c.JWKSUrl, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Upsert creates or replaces the registration for config.Provider
func (r *OIDCConfigRepository) Upsert(ctx context.Context, config *models.OIDCConfig) error {
	query := `
		INSERT INTO oidc_config (` + oidcColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (provider) DO UPDATE SET
			issuer = EXCLUDED.issuer,
			domain = EXCLUDED.domain,
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			redirect_uri = EXCLUDED.redirect_uri,
			jwks_url = EXCLUDED.jwks_url,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		config.ID, config.Provider, config.Issuer, config.Domain, config.ClientID,
		config.ClientSecret, config.RedirectURI, config.JWKSUrl, time.Now(),
	).Scan(&config.ID, &config.CreatedAt, &config.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert OIDC config: %w", err)
	}
	return nil
}

// GetByProvider retrieves a registration by provider name
func (r *OIDCConfigRepository) GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+oidcColumns+` FROM oidc_config WHERE provider = $1`, provider)
	c, err := scanOIDCConfig(row)
	if err != nil {
		return nil, notFound(err, "OIDC config "+provider)
	}
	return c, nil
}

// GetAll retrieves every registration ordered by provider
func (r *OIDCConfigRepository) GetAll(ctx context.Context) ([]*models.OIDCConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+oidcColumns+` FROM oidc_config ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to query OIDC configs: %w", err)
	}
	defer closeRows(rows)

	var configs []*models.OIDCConfig
	for rows.Next() {
		c, err := scanOIDCConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan OIDC config: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating OIDC configs: %w", err)
	}
	return configs, nil
}

// Delete removes a registration by provider
func (r *OIDCConfigRepository) Delete(ctx context.Context, provider string) error {
	return execOne(ctx, r.db, "OIDC config", `DELETE FROM oidc_config WHERE provider = $1`, provider)
}
