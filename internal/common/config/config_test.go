package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "*/5 8-23 * * *", cfg.Membership.Cron)
	assert.Equal(t, 30*time.Second, cfg.Membership.WarmupDelay)
	assert.Equal(t, 10*time.Second, cfg.Telegram.RequestTimeout)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBaseURL)
	assert.False(t, cfg.SchedulerEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "1,2,3")
	t.Setenv("TELEGRAM_REQUEST_TIMEOUT", "3s")
	t.Setenv("MEMBERSHIP_CONCURRENCY", "0")
	t.Setenv("MEMBERSHIP_TIMEZONE", "UTC")
	t.Setenv("POSTGRES_HOST", "db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.SchedulerEnabled())
	assert.Equal(t, []int64{1, 2, 3}, cfg.Telegram.AdminIDs)
	assert.Equal(t, 3*time.Second, cfg.Telegram.RequestTimeout)
	assert.Equal(t, 1, cfg.Membership.Concurrency)
	assert.Contains(t, cfg.Postgres.GetDSN(), "host=db")

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Setenv("MEMBERSHIP_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.Error(t, err)
}
