package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	OAuth    OAuthConfig
	Admin    AdminConfig
	Payment  PaymentConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port        string        `envconfig:"SERVER_PORT" default:"8080"`
	Env         string        `envconfig:"APP_ENV" default:"development"`
	ReadTimeout time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	// Analysis calls block for up to the admin-configured API timeout (max 600s).
	WriteTimeout   time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"11m"`
	PublicBaseURL  string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	AllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimit      int           `envconfig:"RATE_LIMIT_REQUESTS" default:"120"`
	RateWindow     time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

type DatabaseConfig struct {
	Driver          string        `envconfig:"DB_DRIVER" default:"sqlite"`
	DSN             string        `envconfig:"DB_DSN" default:"tokenguard.db"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"50"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
}

type JWTConfig struct {
	AccessSecret  string        `envconfig:"JWT_ACCESS_SECRET" default:"change-me-in-production"`
	RefreshSecret string        `envconfig:"JWT_REFRESH_SECRET" default:"change-me-refresh"`
	AccessExpiry  time.Duration `envconfig:"JWT_ACCESS_EXPIRY" default:"30m"`
	RefreshExpiry time.Duration `envconfig:"JWT_REFRESH_EXPIRY" default:"168h"`
	Issuer        string        `envconfig:"JWT_ISSUER" default:"tokenguard"`
}

type OAuthConfig struct {
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL"`
}

// AdminConfig seeds the first administrator when no ADMIN user exists.
type AdminConfig struct {
	Email    string `envconfig:"ADMIN_EMAIL" default:"admin@localhost"`
	Password string `envconfig:"ADMIN_PASSWORD"`
}

type PaymentConfig struct {
	StripeAPIBase        string `envconfig:"STRIPE_API_BASE" default:"https://api.stripe.com"`
	CryptoGatewayAPIBase string `envconfig:"CRYPTO_GATEWAY_API_BASE" default:"https://api.nowpayments.io"`
	MinPurchaseUSD       int64  `envconfig:"PAYMENT_MIN_USD" default:"1"`
	MaxPurchaseUSD       int64  `envconfig:"PAYMENT_MAX_USD" default:"10000"`
}

type LogConfig struct {
	Level string `envconfig:"APP_LOG_LEVEL" default:"info"`
	JSON  bool   `envconfig:"APP_LOG_JSON" default:"false"`
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 || c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("invalid DB_MAX_IDLE_CONNS/DB_MAX_OPEN_CONNS")
	}
	if c.IsProduction() && strings.HasPrefix(c.JWT.AccessSecret, "change-me") {
		return fmt.Errorf("JWT_ACCESS_SECRET must be set in production")
	}
	if c.Payment.MinPurchaseUSD <= 0 || c.Payment.MaxPurchaseUSD < c.Payment.MinPurchaseUSD {
		return fmt.Errorf("invalid PAYMENT_MIN_USD/PAYMENT_MAX_USD")
	}
	return nil
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var cfg Config
	// Sections are processed one by one so the tags above are the exact variable names.
	sections := []interface{}{&cfg.Server, &cfg.Database, &cfg.JWT, &cfg.OAuth, &cfg.Admin, &cfg.Payment, &cfg.Log}
	for _, s := range sections {
		if err := envconfig.Process("", s); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	cfg.Server.PublicBaseURL = strings.TrimRight(cfg.Server.PublicBaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
