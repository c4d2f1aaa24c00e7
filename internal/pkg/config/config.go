package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config carries all webhook-subsystem settings. It is built once at process
// start and treated as immutable afterwards.
type Config struct {
	App     App
	Webhook Webhook
}

type App struct {
	Host string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"APP_PORT" envDefault:"4000"`
	Env  string `env:"APP_ENV" envDefault:"prod"`
}

type Webhook struct {
	// Secret is the shared Shopier signing secret. Empty means signature
	// verification can never succeed outside test mode.
	Secret string `env:"SHOPIER_API_SECRET"`

	// AllowedIPs lists plain IPs and CIDR ranges Shopier delivers from.
	AllowedIPs []string `env:"SHOPIER_ALLOWED_IPS" envSeparator:"," envDefault:"185.93.239.1,185.93.239.0/24"`

	// TestMode disables the IP allowlist and signature verification for the
	// whole process. TEST_-prefixed order refs get the same treatment per
	// delivery regardless of this flag.
	TestMode bool `env:"SHOPIER_TEST_MODE" envDefault:"false"`

	RateLimitMax    int           `env:"WEBHOOK_RATE_LIMIT_MAX" envDefault:"20"`
	RateLimitWindow time.Duration `env:"WEBHOOK_RATE_LIMIT_WINDOW" envDefault:"1h"`

	// SlowThreshold is the processing duration beyond which a delivery is
	// logged as a performance warning.
	SlowThreshold time.Duration `env:"WEBHOOK_SLOW_THRESHOLD" envDefault:"5s"`

	// AdminEmail receives payment notification mails.
	AdminEmail string `env:"PAYMENT_ADMIN_EMAIL" envDefault:"busbuskimkionline@gmail.com"`
}

func New() (*Config, error) {
	if os.Getenv("GO_ENV") == "local" {
		_ = godotenv.Load(".env")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
