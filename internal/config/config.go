package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/laenvidiadelsur/storefront/pkg/config"
)

// Config holds all configuration for the storefront client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Remote commerce API
	APIBaseURL        string `env:"API_BASE_URL" envDefault:"http://localhost:8080/api"`
	APITimeoutSeconds int    `env:"API_TIMEOUT_SECONDS" envDefault:"30"`

	// Payment processor (client-side confirmation endpoint)
	PaymentProcessorURL string `env:"PAYMENT_PROCESSOR_URL" envDefault:"http://localhost:8090"`

	// Durable client state
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Display pricing: amounts in cents, tax rate in basis points (1600 = 16% IVA)
	FreeShippingThresholdCents int64 `env:"FREE_SHIPPING_THRESHOLD_CENTS" envDefault:"50000"`
	FlatShippingFeeCents       int64 `env:"FLAT_SHIPPING_FEE_CENTS" envDefault:"5000"`
	TaxRateBps                 int64 `env:"TAX_RATE_BPS" envDefault:"1600"`

	// Order tracking
	OrderPollIntervalSeconds int `env:"ORDER_POLL_INTERVAL_SECONDS" envDefault:"30"`

	// Metrics endpoint
	MetricsPort int `env:"METRICS_PORT" envDefault:"9464"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}
	if c.TaxRateBps < 0 || c.TaxRateBps > 10_000 {
		return fmt.Errorf("invalid tax rate: %d bps", c.TaxRateBps)
	}
	if c.FreeShippingThresholdCents < 0 || c.FlatShippingFeeCents < 0 {
		return fmt.Errorf("shipping amounts must not be negative")
	}
	if c.OrderPollIntervalSeconds < 1 {
		return fmt.Errorf("invalid order poll interval: %ds", c.OrderPollIntervalSeconds)
	}
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}
	return nil
}

// APITimeout returns the API request timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// OrderPollInterval returns the tracker poll interval as a duration.
func (c *Config) OrderPollInterval() time.Duration {
	return time.Duration(c.OrderPollIntervalSeconds) * time.Second
}
