package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"sponsor-points-backend"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Postgres Postgres

	Redis struct {
		Enabled  bool   `env:"REDIS_ENABLED" envDefault:"true"`
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Telegram struct {
		// An empty token disables the membership scheduler.
		BotToken       string        `env:"BOT_TOKEN"`
		APIBaseURL     string        `env:"TELEGRAM_API_BASE_URL" envDefault:"https://api.telegram.org"`
		RequestTimeout time.Duration `env:"TELEGRAM_REQUEST_TIMEOUT" envDefault:"10s"`
		AdminIDs       []int64       `env:"ADMIN_IDS" envSeparator:","`
		InitDataTTL    time.Duration `env:"INIT_DATA_TTL" envDefault:"24h"`
	}

	Membership struct {
		Cron              string        `env:"MEMBERSHIP_CRON" envDefault:"*/5 8-23 * * *"`
		Timezone          string        `env:"MEMBERSHIP_TIMEZONE" envDefault:"Local"`
		WarmupDelay       time.Duration `env:"MEMBERSHIP_WARMUP_DELAY" envDefault:"30s"`
		Concurrency       int           `env:"MEMBERSHIP_CONCURRENCY" envDefault:"4"`
		RequestsPerSecond float64       `env:"MEMBERSHIP_RPS" envDefault:"20"`
		Burst             int           `env:"MEMBERSHIP_BURST" envDefault:"5"`
		PairLockTTL       time.Duration `env:"MEMBERSHIP_PAIR_LOCK_TTL" envDefault:"30s"`
		TickLeaseTTL      time.Duration `env:"MEMBERSHIP_TICK_LEASE_TTL" envDefault:"10m"`
	}
}

type Postgres struct {
	Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User            string        `env:"POSTGRES_USER" envDefault:"postgres"`
	Password        string        `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Database        string        `env:"POSTGRES_DB" envDefault:"sponsor_points"`
	SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"POSTGRES_AUTO_MIGRATE" envDefault:"false"`
}

// GetDSN builds a lib/pq connection string.
func (p Postgres) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Location resolves the membership scheduler time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Membership.Timezone == "" || c.Membership.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Membership.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid MEMBERSHIP_TIMEZONE: %w", err)
	}
	return loc, nil
}

// SchedulerEnabled reports whether a bot token is configured.
func (c *Config) SchedulerEnabled() bool {
	return c.Telegram.BotToken != ""
}

func Load() (*Config, error) {
	// .env is optional; in production variables come from the environment.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Membership.Concurrency <= 0 {
		cfg.Membership.Concurrency = 1
	}
	if cfg.Telegram.RequestTimeout <= 0 {
		return nil, fmt.Errorf("TELEGRAM_REQUEST_TIMEOUT must be positive")
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}
