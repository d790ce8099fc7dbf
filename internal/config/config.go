package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// MaxLookbackDays bounds how far back auto consumption may reach.
const MaxLookbackDays = 31

// Config is the full application configuration.
type Config struct {
	DBPath    string
	LogLevel  string
	JWTSecret string // empty: use the secret stored in the database

	Server    ServerConfig
	Feeding   FeedingConfig
	Scheduler SchedulerConfig
	Reorder   ReorderConfig
	Cache     CacheConfig
	WhatsApp  WhatsAppConfig
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// FeedingConfig holds consumption and dosage options.
type FeedingConfig struct {
	AutoLookbackDays int
	DosageTable      string // optional YAML override
	WatchDosageTable bool   // reload DosageTable when the file changes
}

// SchedulerConfig controls the nightly auto consumption job.
type SchedulerConfig struct {
	Cron     string
	Timezone string
}

// ReorderConfig tunes the reorder advisor.
type ReorderConfig struct {
	TargetMultiple float64
	CriticalDays   int
	WarningDays    int
}

// CacheConfig selects the reorder report cache.
type CacheConfig struct {
	Enabled    bool
	RedisURL   string
	TTLSeconds int
}

// WhatsAppConfig contains credentials for the Meta WhatsApp Cloud API. Alerts
// are disabled when AccessToken is empty.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	To            string
	BaseURL       string
	APIVersion    string
}

// Enabled reports whether alerts should be sent.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != ""
}

// Load reads the environment (optionally seeded from envFile, or .env when
// envFile is empty) and returns a validated Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvPrefix("KRMA")
	v.AutomaticEnv()

	v.SetDefault("DB_PATH", "krma.sqlite3")
	v.SetDefault("ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("AUTO_LOOKBACK_DAYS", 7)
	v.SetDefault("DOSAGE_TABLE", "")
	v.SetDefault("DOSAGE_TABLE_WATCH", false)
	v.SetDefault("CRON", "0 21 * * *")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("REORDER_TARGET_MULTIPLE", 3.0)
	v.SetDefault("REORDER_CRITICAL_DAYS", 7)
	v.SetDefault("REORDER_WARNING_DAYS", 14)
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CACHE_TTL_SECONDS", 60)
	v.SetDefault("WHATSAPP_TOKEN", "")
	v.SetDefault("WHATSAPP_PHONE_NUMBER_ID", "")
	v.SetDefault("WHATSAPP_TO", "")
	v.SetDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com")
	v.SetDefault("WHATSAPP_API_VERSION", "v20.0")

	cfg := &Config{
		DBPath:    v.GetString("DB_PATH"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		JWTSecret: v.GetString("JWT_SECRET"),
		Server: ServerConfig{
			Addr:        v.GetString("ADDR"),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		Feeding: FeedingConfig{
			AutoLookbackDays: v.GetInt("AUTO_LOOKBACK_DAYS"),
			DosageTable:      v.GetString("DOSAGE_TABLE"),
			WatchDosageTable: v.GetBool("DOSAGE_TABLE_WATCH"),
		},
		Scheduler: SchedulerConfig{
			Cron:     v.GetString("CRON"),
			Timezone: v.GetString("TIMEZONE"),
		},
		Reorder: ReorderConfig{
			TargetMultiple: v.GetFloat64("REORDER_TARGET_MULTIPLE"),
			CriticalDays:   v.GetInt("REORDER_CRITICAL_DAYS"),
			WarningDays:    v.GetInt("REORDER_WARNING_DAYS"),
		},
		Cache: CacheConfig{
			Enabled:    v.GetBool("CACHE_ENABLED"),
			RedisURL:   v.GetString("REDIS_URL"),
			TTLSeconds: v.GetInt("CACHE_TTL_SECONDS"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   v.GetString("WHATSAPP_TOKEN"),
			PhoneNumberID: v.GetString("WHATSAPP_PHONE_NUMBER_ID"),
			To:            v.GetString("WHATSAPP_TO"),
			BaseURL:       v.GetString("WHATSAPP_BASE_URL"),
			APIVersion:    v.GetString("WHATSAPP_API_VERSION"),
		},
	}

	if cfg.Feeding.AutoLookbackDays > MaxLookbackDays {
		cfg.Feeding.AutoLookbackDays = MaxLookbackDays
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the application cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch {
	case c.DBPath == "":
		return errors.New("KRMA_DB_PATH must not be empty")
	case c.Server.Addr == "":
		return errors.New("KRMA_ADDR must not be empty")
	case c.Feeding.AutoLookbackDays < 1 || c.Feeding.AutoLookbackDays > MaxLookbackDays:
		return fmt.Errorf("KRMA_AUTO_LOOKBACK_DAYS must be between 1 and %d", MaxLookbackDays)
	}

	if _, err := cron.ParseStandard(c.Scheduler.Cron); err != nil {
		return fmt.Errorf("KRMA_CRON: %w", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("KRMA_TIMEZONE: %w", err)
	}

	if c.Reorder.TargetMultiple <= 0 {
		return errors.New("KRMA_REORDER_TARGET_MULTIPLE must be positive")
	}
	if c.Reorder.CriticalDays < 0 || c.Reorder.WarningDays < c.Reorder.CriticalDays {
		return errors.New("KRMA_REORDER_WARNING_DAYS must be at least KRMA_REORDER_CRITICAL_DAYS, both non-negative")
	}

	if c.Cache.Enabled && c.Cache.RedisURL == "" {
		return errors.New("KRMA_REDIS_URL must be provided when the cache is enabled")
	}

	if c.WhatsApp.Enabled() {
		switch {
		case c.WhatsApp.PhoneNumberID == "":
			return errors.New("KRMA_WHATSAPP_PHONE_NUMBER_ID must be provided")
		case c.WhatsApp.To == "":
			return errors.New("KRMA_WHATSAPP_TO must be provided")
		case c.WhatsApp.BaseURL == "" || c.WhatsApp.APIVersion == "":
			return errors.New("KRMA_WHATSAPP_BASE_URL and KRMA_WHATSAPP_API_VERSION must not be empty")
		}
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
