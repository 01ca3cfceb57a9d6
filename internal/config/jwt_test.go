package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-0123456789"

func TestLoad_JWTFromEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_EXPIRATION_HOURS", "12")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Auth.Enabled())
	assert.Equal(t, testSecret, cfg.Auth.Secret)
	assert.Equal(t, 12*time.Hour, cfg.Auth.Expiration())
}

func TestJWTConfig_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		cfg       JWTConfig
		wantInErr string
	}{
		{name: "valid", cfg: JWTConfig{Secret: testSecret, ExpirationHours: 1}},
		{name: "secret not set", cfg: JWTConfig{ExpirationHours: 24}, wantInErr: "JWT_SECRET"},
		{name: "secret too short", cfg: JWTConfig{Secret: "short", ExpirationHours: 24}, wantInErr: "JWT_SECRET"},
		{name: "zero expiration", cfg: JWTConfig{Secret: testSecret}, wantInErr: "JWT_EXPIRATION_HOURS"},
		{name: "negative expiration", cfg: JWTConfig{Secret: testSecret, ExpirationHours: -1}, wantInErr: "JWT_EXPIRATION_HOURS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.normalize()
			if tt.wantInErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantInErr)
		})
	}
}

func TestJWTConfig_DisabledWithoutSecret(t *testing.T) {
	var cfg JWTConfig
	assert.False(t, cfg.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Expiration())
}
