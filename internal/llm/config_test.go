package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultGeminiConfig_TiersAndRetryPolicy(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ProviderGemini, cfg.Provider)
	for tier, want := range map[ModelTier]string{
		TierLite:     "gemini-2.5-flash-lite",
		TierStandard: "gemini-2.5-flash",
		TierAdvanced: "gemini-2.5-pro",
	} {
		assert.Equal(t, want, cfg.GetModel(tier), "tier %s", tier)
	}
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
	assert.Zero(t, cfg.RequestsPerMinute, "pacing is opt-in")
}

func TestGetModel_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		models map[ModelTier]string
		tier   ModelTier
		want   string
	}{
		{name: "exact tier", models: map[ModelTier]string{TierAdvanced: "pro"}, tier: TierAdvanced, want: "pro"},
		{name: "unknown tier uses standard", models: map[ModelTier]string{TierStandard: "flash", TierLite: "lite"}, tier: "unknown", want: "flash"},
		{name: "then lite", models: map[ModelTier]string{TierLite: "lite"}, tier: TierAdvanced, want: "lite"},
		{name: "nothing configured", models: map[ModelTier]string{}, tier: TierAdvanced, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: ProviderGemini, Models: tt.models}
			assert.Equal(t, tt.want, cfg.GetModel(tt.tier))
		})
	}
}

func TestWithModel_CopiesTiers(t *testing.T) {
	base := DefaultConfig()
	lessons := base.WithModel(TierAdvanced, "lesson-writer")

	assert.Equal(t, "gemini-2.5-pro", base.GetModel(TierAdvanced), "original is untouched")
	assert.Equal(t, "lesson-writer", lessons.GetModel(TierAdvanced))
	assert.Equal(t, base.GetModel(TierLite), lessons.GetModel(TierLite))
	assert.Equal(t, base.Timeout, lessons.Timeout)
}

func TestWithDefaults(t *testing.T) {
	cfg := (&Config{MaxAttempts: 2, BaseDelay: time.Second}).withDefaults()

	assert.Equal(t, 2, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BaseDelay)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultMaxDelay, cfg.MaxDelay)
}
