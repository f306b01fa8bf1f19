// config/config.go
package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // COMMUNITY_TIMEZONE must resolve in minimal images

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, read from the environment (and an optional .env file).
type Config struct {
	Port           string   `env:"PORT" envDefault:"5200"`
	DatabaseURL    string   `env:"DATABASE_URL,required,notEmpty"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Identity Gateway
	IdentityJWTSecret string `env:"IDENTITY_JWT_SECRET,required,notEmpty"`
	IdentityIssuer    string `env:"IDENTITY_ISSUER"`
	AdminServiceToken string `env:"ADMIN_SERVICE_TOKEN"`

	IdentitySyncURL      string        `env:"IDENTITY_SYNC_URL"`
	IdentitySyncPath     string        `env:"IDENTITY_SYNC_PATH" envDefault:"/api/v1/public/profiles"`
	IdentitySyncToken    string        `env:"IDENTITY_SYNC_TOKEN"`
	IdentitySyncInterval time.Duration `env:"IDENTITY_SYNC_INTERVAL" envDefault:"1m"`

	// Empty means the in-process hub.
	RedisURL string `env:"REDIS_URL"`

	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	StoreMaxRetries uint          `env:"STORE_MAX_RETRIES" envDefault:"3"`

	StreakCadenceDays    int    `env:"STREAK_CADENCE_DAYS" envDefault:"7"`
	DefaultEventCapacity int    `env:"DEFAULT_EVENT_CAPACITY" envDefault:"20"`
	CommunityTimezone    string `env:"COMMUNITY_TIMEZONE" envDefault:"Europe/Madrid"`

	AttendanceCreditInterval time.Duration `env:"ATTENDANCE_CREDIT_INTERVAL" envDefault:"1h"`
	BadgeReconcileInterval   time.Duration `env:"BADGE_RECONCILE_INTERVAL" envDefault:"15m"`
	SSEKeepalive             time.Duration `env:"SSE_KEEPALIVE" envDefault:"25s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV"`
}

// Load reads .env when present and parses the environment into a Config.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.StreakCadenceDays < 1 {
		return fmt.Errorf("STREAK_CADENCE_DAYS must be positive, got %d", c.StreakCadenceDays)
	}
	if c.DefaultEventCapacity < 1 {
		return fmt.Errorf("DEFAULT_EVENT_CAPACITY must be positive, got %d", c.DefaultEventCapacity)
	}
	if _, err := time.LoadLocation(c.CommunityTimezone); err != nil {
		return fmt.Errorf("COMMUNITY_TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the community time zone used to decide what "today" is.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.CommunityTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
