package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server       ServerConfig       `envPrefix:"LG_SERVER_"`
	Log          LogConfig          `envPrefix:"LG_LOG_"`
	Database     DatabaseConfig     `envPrefix:"LG_DATABASE_"`
	JWT          JWTConfig          `envPrefix:"LG_JWT_"`
	RateLimit    RateLimitConfig    `envPrefix:"LG_RATELIMIT_"`
	Session      SessionConfig      `envPrefix:"LG_SESSION_"`
	RefreshToken RefreshTokenConfig `envPrefix:"LG_REFRESH_TOKEN_"`
	Anomaly      AnomalyConfig      `envPrefix:"LG_ANOMALY_"`
	GeoIP        GeoIPConfig        `envPrefix:"LG_GEOIP_"`
	Alerts       AlertsConfig       `envPrefix:"LG_ALERTS_"`
	Metrics      MetricsConfig      `envPrefix:"LG_METRICS_"`
}

type ServerConfig struct {
	Host string `env:"HOST" envDefault:"localhost"`
	Port string `env:"PORT" envDefault:"8080"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"loginguard.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	Issuer       string        `env:"ISSUER" envDefault:"loginguard"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
}

// RateLimitConfig carries one rule per route class. The auth rule is
// deliberately tight: the login endpoint is the surface being defended.
type RateLimitConfig struct {
	Store         string        `env:"STORE" envDefault:"memory"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	AuthRate      int           `env:"AUTH_RATE" envDefault:"10"`
	AuthPeriod    time.Duration `env:"AUTH_PERIOD" envDefault:"15m"`
	MutateRate    int           `env:"MUTATE_RATE" envDefault:"10"`
	MutatePeriod  time.Duration `env:"MUTATE_PERIOD" envDefault:"1m"`
	GeneralRate   int           `env:"GENERAL_RATE" envDefault:"100"`
	GeneralPeriod time.Duration `env:"GENERAL_PERIOD" envDefault:"1m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
}

type SessionConfig struct {
	MaxConcurrent int `env:"MAX_CONCURRENT" envDefault:"5"`
}

type RefreshTokenConfig struct {
	TokenLength       int           `env:"TOKEN_LENGTH" envDefault:"32"`
	Expiry            time.Duration `env:"EXPIRY" envDefault:"720h"`
	CleanupInterval   time.Duration `env:"CLEANUP_INTERVAL" envDefault:"6h"`
	ExpiredRetention  time.Duration `env:"EXPIRED_RETENTION" envDefault:"168h"`
	ConsumedRetention time.Duration `env:"CONSUMED_RETENTION" envDefault:"720h"`
}

type AnomalyConfig struct {
	FailedLoginWindow    time.Duration `env:"FAILED_LOGIN_WINDOW" envDefault:"15m"`
	FailedLoginMedium    int           `env:"FAILED_LOGIN_MEDIUM" envDefault:"5"`
	FailedLoginCritical  int           `env:"FAILED_LOGIN_CRITICAL" envDefault:"10"`
	CounterSweepInterval time.Duration `env:"COUNTER_SWEEP_INTERVAL" envDefault:"30m"`
	MinTravelDistanceKm  float64       `env:"MIN_TRAVEL_DISTANCE_KM" envDefault:"100"`
	MinTravelElapsed     time.Duration `env:"MIN_TRAVEL_ELAPSED" envDefault:"5m"`
	MaxPlausibleSpeedKmh float64       `env:"MAX_PLAUSIBLE_SPEED_KMH" envDefault:"800"`
	SameCountryCutoffKm  float64       `env:"SAME_COUNTRY_CUTOFF_KM" envDefault:"2000"`
}

type GeoIPConfig struct {
	ProviderURL     string        `env:"PROVIDER_URL" envDefault:"http://ip-api.com/json"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"5s"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"24h"`
	CallsPerMinute  int           `env:"CALLS_PER_MINUTE" envDefault:"40"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
}

type AlertsConfig struct {
	WebhookURL     string        `env:"WEBHOOK_URL"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	MailEnabled    bool          `env:"MAIL_ENABLED" envDefault:"false"`
	MailHost       string        `env:"MAIL_HOST"`
	MailPort       int           `env:"MAIL_PORT" envDefault:"587"`
	MailUsername   string        `env:"MAIL_USERNAME"`
	MailPassword   string        `env:"MAIL_PASSWORD"`
	MailEncryption string        `env:"MAIL_ENCRYPTION" envDefault:"starttls"`
	MailFrom       string        `env:"MAIL_FROM"`
	MailTo         string        `env:"MAIL_TO"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

func LoadConfig(cfg *Config) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	return cfg.Validate()
}

func (c *Config) Validate() error {
	if err := validateRateLimitConfig(&c.RateLimit); err != nil {
		return err
	}
	if err := validateRefreshTokenConfig(&c.RefreshToken); err != nil {
		return err
	}
	if err := validateAnomalyConfig(&c.Anomaly); err != nil {
		return err
	}
	if c.Session.MaxConcurrent < 1 {
		return fmt.Errorf("session max concurrent must be at least 1, got %d", c.Session.MaxConcurrent)
	}
	if c.GeoIP.CallsPerMinute < 1 {
		return fmt.Errorf("geoip calls per minute must be at least 1, got %d", c.GeoIP.CallsPerMinute)
	}
	return nil
}

func validateRefreshTokenConfig(cfg *RefreshTokenConfig) error {
	if cfg.TokenLength < 32 {
		return fmt.Errorf("refresh token length must be at least 32 bytes, got %d", cfg.TokenLength)
	}
	if cfg.Expiry <= 0 {
		return fmt.Errorf("refresh token expiry must be positive, got %s", cfg.Expiry)
	}
	if cfg.ExpiredRetention <= 0 || cfg.ConsumedRetention <= 0 {
		return fmt.Errorf("refresh token retention windows must be positive")
	}
	return nil
}

func validateRateLimitConfig(cfg *RateLimitConfig) error {
	switch cfg.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported rate limit store: %s (supported: memory, redis)", cfg.Store)
	}

	rules := []struct {
		name   string
		rate   int
		period time.Duration
	}{
		{"auth", cfg.AuthRate, cfg.AuthPeriod},
		{"mutate", cfg.MutateRate, cfg.MutatePeriod},
		{"general", cfg.GeneralRate, cfg.GeneralPeriod},
	}

	for _, rule := range rules {
		if rule.rate <= 0 {
			return fmt.Errorf("rate limit %s rate must be positive, got %d", rule.name, rule.rate)
		}
		if rule.period <= 0 {
			return fmt.Errorf("rate limit %s period must be positive, got %s", rule.name, rule.period)
		}
	}

	return nil
}

func validateAnomalyConfig(cfg *AnomalyConfig) error {
	if cfg.FailedLoginMedium <= 0 || cfg.FailedLoginCritical <= 0 {
		return fmt.Errorf("failed login thresholds must be positive")
	}
	if cfg.FailedLoginCritical < cfg.FailedLoginMedium {
		return fmt.Errorf("critical failed login threshold (%d) must not be below the medium threshold (%d)",
			cfg.FailedLoginCritical, cfg.FailedLoginMedium)
	}
	if cfg.MaxPlausibleSpeedKmh <= 0 {
		return fmt.Errorf("max plausible travel speed must be positive, got %v", cfg.MaxPlausibleSpeedKmh)
	}
	return nil
}
