package app

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testkit "github.com/grantdesk/grantdesk/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	for k, v := range testkit.Env {
		t.Setenv(k, v)
	}
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.OptionsCacheTTL)
	assert.Equal(t, int64(10<<20), cfg.UploadMaxBytes)
	assert.True(t, cfg.WizardDiscardDrafts)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	for k, v := range testkit.Env {
		t.Setenv(k, v)
	}
	t.Setenv("CSRF_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	for k, v := range testkit.Env {
		t.Setenv(k, v)
	}
	t.Setenv("APP_ENV", "production")
	t.Setenv("UPLOAD_MAX_BYTES", "2048")
	t.Setenv("WIZARD_DISCARD_DRAFTS", "false")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, int64(2048), cfg.UploadMaxBytes)
	assert.False(t, cfg.WizardDiscardDrafts)
}

func TestInTestModeFollowsEnvironment(t *testing.T) {
	t.Cleanup(RefreshTestMode)
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func TestNilConfigIsNotProduction(t *testing.T) {
	var cfg *Config
	assert.False(t, cfg.IsProduction())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" WARN "))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}
