package models

import (
	"strings"
	"time"
)

// CorsConfig is the runtime CORS policy edited through the configure CLI.
type CorsConfig struct {
	ConfigKey        string    `json:"config_key"`
	AllowedOrigins   string    `json:"allowed_origins"` // comma-separated
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Origins splits AllowedOrigins, dropping blanks and duplicates.
func (c *CorsConfig) Origins() []string {
	if c == nil {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(c.AllowedOrigins, ",") {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// RatelimitConfig is the runtime request rate, in ulule/limiter notation ("5-S", "100-M").
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
