package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "55", cfg.CountryPrefix)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 10, cfg.ReminderRetryLimit)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("REMINDER_SWEEP_INTERVAL", "30s")
	t.Setenv("REMINDER_RETRY_LIMIT", "5")
	t.Setenv("AUTO_REPLY_RULES_PATH", "/etc/studio/rules.yaml")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 5, cfg.ReminderRetryLimit)
	assert.Equal(t, "/etc/studio/rules.yaml", cfg.AutoReplyRulesPath)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("REMINDER_SWEEP_INTERVAL", "soon")
	t.Setenv("REMINDER_RETRY_LIMIT", "many")

	cfg := LoadConfig()

	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 10, cfg.ReminderRetryLimit)
}
