package config

import (
	"fmt"
	"time"
)

// DefaultJWTExpirationHours is the token lifetime when none is configured.
const DefaultJWTExpirationHours = 24

// JWTConfig holds configuration for API token generation and validation.
// An empty Secret disables token auth.
type JWTConfig struct {
	Secret          string `mapstructure:"jwt_secret"`
	ExpirationHours int    `mapstructure:"jwt_expiration_hours"`
}

// Enabled reports whether a signing secret is configured.
func (c JWTConfig) Enabled() bool {
	return c.Secret != ""
}

// Expiration returns the token lifetime.
func (c JWTConfig) Expiration() time.Duration {
	hours := c.ExpirationHours
	if hours < 1 {
		hours = DefaultJWTExpirationHours
	}
	return time.Duration(hours) * time.Hour
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if len(c.Secret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
