package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	unsetenv(t, "STORAGE_DRIVER", "QUEUE_DRIVER", "PORT", "FEEDBACK_WINDOW_DAYS", "RECOMMEND_MIN_RATING", "QUOTA_ALERT_PERCENT", "QUOTA_CHECK_INTERVAL")
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 30, cfg.Feedback.WindowDays)
	assert.InDelta(t, 3.0, cfg.Feedback.MinRating, 1e-9)
	assert.Equal(t, 80, cfg.Quota.WarningPercent)
	assert.Equal(t, time.Hour, cfg.Quota.CheckInterval)
	assert.False(t, cfg.UsesSQLite())
	assert.False(t, cfg.UsesRabbit())
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STORAGE_DRIVER=sqlite\nQUEUE_DRIVER=rabbitmq\nQUOTA_ALERT_PERCENT=75\n"), 0o600))
	// godotenv does not override variables that are already set
	unsetenv(t, "STORAGE_DRIVER", "QUEUE_DRIVER", "QUOTA_ALERT_PERCENT")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.True(t, cfg.UsesSQLite())
	assert.True(t, cfg.UsesRabbit())
	assert.Equal(t, 75, cfg.Quota.WarningPercent)
}

// unsetenv removes keys for the duration of the test.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestValidate(t *testing.T) {
	var cfg AppConfig
	cfg.Storage.Driver = "mysql"
	cfg.Queue.Driver = "redis"
	cfg.Feedback.WindowDays = 30
	cfg.Quota.WarningPercent = 80
	assert.Error(t, cfg.Validate())

	cfg.Storage.Driver = "SQLite"
	assert.NoError(t, cfg.Validate())

	cfg.Queue.Driver = "kafka"
	assert.Error(t, cfg.Validate())

	cfg.Queue.Driver = "redis"
	cfg.Quota.WarningPercent = 120
	assert.Error(t, cfg.Validate())
}
