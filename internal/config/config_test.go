package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("FIRST_VIEW_POINTS", "")
	t.Setenv("MAX_VIDEO_MB", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.FirstViewPoints)
	assert.Equal(t, 10, cfg.PointsPerVideo)
	assert.Equal(t, 50, cfg.FirstUploadBonus)
	assert.Equal(t, "video/mp4", cfg.AllowedVideoMIME)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxVideoBytes())
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.False(t, cfg.RedisEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FIRST_VIEW_POINTS", "25")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://arb.example.com ,")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")
	t.Setenv("NOTIFIER_BASE_DELAY", "500ms")
	t.Setenv("REDIS_HOST", "cache")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.FirstViewPoints)
	assert.Equal(t, []string{"http://localhost:3000", "https://arb.example.com"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.CORSAllowCredentials)
	assert.Equal(t, 500*time.Millisecond, cfg.NotifierBaseDelay)
	assert.True(t, cfg.RedisEnabled())
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"FIRST_VIEW_POINTS", "ten"},
		{"FIRST_VIEW_POINTS", "0"},
		{"MAX_VIDEO_MB", "-1"},
		{"ACCESS_TOKEN_TTL", "forever"},
		{"CORS_ALLOW_CREDENTIALS", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
