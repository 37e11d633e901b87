package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/thought-capture/internal/models"
)

// DefaultConfigKey is the single row key for runtime CORS and rate limit settings.
const DefaultConfigKey = "default"

// CorsConfigRepository stores the runtime CORS policy.
type CorsConfigRepository struct {
	db *DB
}

// NewCorsConfigRepository creates a new CORS config repository.
func NewCorsConfigRepository(db *DB) *CorsConfigRepository {
	return &CorsConfigRepository{db: db}
}

// Get returns the CORS policy, or ErrNotFound when none has been set.
func (r *CorsConfigRepository) Get(ctx context.Context) (*models.CorsConfig, error) {
	c := &models.CorsConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at
		FROM cors_config WHERE config_key = $1
	`, DefaultConfigKey).Scan(&c.ConfigKey, &c.AllowedOrigins, &c.AllowCredentials, &c.MaxAge, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "cors config")
	}
	return c, nil
}

// Set upserts the CORS policy.
func (r *CorsConfigRepository) Set(ctx context.Context, c *models.CorsConfig) error {
	if len(c.Origins()) == 0 {
		return errors.New("allowed_origins cannot be empty")
	}
	c.ConfigKey = DefaultConfigKey
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cors_config (config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, c.ConfigKey, strings.Join(c.Origins(), ","), c.AllowCredentials, c.MaxAge, time.Now()).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set cors config: %w", err)
	}
	return nil
}

// RatelimitConfigRepository stores the runtime request rate.
type RatelimitConfigRepository struct {
	db *DB
}

// NewRatelimitConfigRepository creates a new ratelimit config repository.
func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db}
}

// Get returns the rate, or ErrNotFound when none has been set.
func (r *RatelimitConfigRepository) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	c := &models.RatelimitConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, rate, created_at, updated_at
		FROM ratelimit_config WHERE config_key = $1
	`, DefaultConfigKey).Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "ratelimit config")
	}
	return c, nil
}

// Set upserts the rate. Callers validate the limiter format first.
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	c.Rate = strings.TrimSpace(c.Rate)
	if c.Rate == "" {
		return errors.New("rate cannot be empty")
	}
	c.ConfigKey = DefaultConfigKey
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO ratelimit_config (config_key, rate, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (config_key) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, c.ConfigKey, c.Rate, time.Now()).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set ratelimit config: %w", err)
	}
	return nil
}
