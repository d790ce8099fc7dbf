package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "krma.sqlite3", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 7, cfg.Feeding.AutoLookbackDays)
	assert.Equal(t, "0 21 * * *", cfg.Scheduler.Cron)
	assert.Equal(t, 3.0, cfg.Reorder.TargetMultiple)
	assert.Equal(t, 7, cfg.Reorder.CriticalDays)
	assert.Equal(t, 14, cfg.Reorder.WarningDays)
	assert.False(t, cfg.Cache.Enabled)
	assert.False(t, cfg.WhatsApp.Enabled())
	assert.False(t, cfg.Feeding.WatchDosageTable)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KRMA_DB_PATH", "/var/lib/krma.db")
	t.Setenv("KRMA_AUTO_LOOKBACK_DAYS", "90")
	t.Setenv("KRMA_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("KRMA_TIMEZONE", "Africa/Nairobi")
	t.Setenv("KRMA_DOSAGE_TABLE_WATCH", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/krma.db", cfg.DBPath)
	assert.Equal(t, MaxLookbackDays, cfg.Feeding.AutoLookbackDays, "lookback is capped")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "Africa/Nairobi", cfg.Scheduler.Timezone)
	assert.True(t, cfg.Feeding.WatchDosageTable)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KRMA_REORDER_WARNING_DAYS=21\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("KRMA_REORDER_WARNING_DAYS") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 21, cfg.Reorder.WarningDays)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DBPath:    "x.db",
			Server:    ServerConfig{Addr: ":8080"},
			Feeding:   FeedingConfig{AutoLookbackDays: 7},
			Scheduler: SchedulerConfig{Cron: "0 21 * * *", Timezone: "UTC"},
			Reorder:   ReorderConfig{TargetMultiple: 3, CriticalDays: 7, WarningDays: 14},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero lookback", func(c *Config) { c.Feeding.AutoLookbackDays = 0 }},
		{"bad cron", func(c *Config) { c.Scheduler.Cron = "every night" }},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{"zero multiple", func(c *Config) { c.Reorder.TargetMultiple = 0 }},
		{"warning before critical", func(c *Config) { c.Reorder.WarningDays = 3 }},
		{"cache without redis", func(c *Config) { c.Cache.Enabled = true }},
		{"whatsapp without recipient", func(c *Config) {
			c.WhatsApp = WhatsAppConfig{AccessToken: "t", PhoneNumberID: "1", BaseURL: "u", APIVersion: "v"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}
