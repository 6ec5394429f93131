// Package config содержит логику чтения конфигурации сервиса витрины.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса витрины.
type Config struct {
	RunAddress            string        `env:"RUN_ADDRESS"`
	DatabaseURI           string        `env:"DATABASE_URI"`
	PaymentGatewayAddress string        `env:"PAYMENT_GATEWAY_ADDRESS"`
	BrokerURL             string        `env:"BROKER_URL"`
	AuthSecret            string        `env:"AUTH_SECRET"`
	TaxRateBasisPoints    int           `env:"TAX_RATE_BASIS_POINTS" envDefault:"800"`
	CartMinQuantity       int           `env:"CART_MIN_QUANTITY" envDefault:"1"`
	CartMaxQuantity       int           `env:"CART_MAX_QUANTITY" envDefault:"10"`
	NotificationSweep     time.Duration `env:"NOTIFICATION_SWEEP_INTERVAL" envDefault:"60s"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPaymentAddress := cfg.PaymentGatewayAddress
	envBrokerURL := cfg.BrokerURL
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaymentGatewayAddress, "p", "", "payment gateway address")
	flag.StringVar(&cfg.BrokerURL, "b", "", "AMQP broker URL for order events")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing auth tokens")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPaymentAddress != "" {
		cfg.PaymentGatewayAddress = envPaymentAddress
	}
	if envBrokerURL != "" {
		cfg.BrokerURL = envBrokerURL
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "storefront-secret"
	}

	if cfg.TaxRateBasisPoints < 0 {
		return nil, fmt.Errorf("tax rate must not be negative, got %d", cfg.TaxRateBasisPoints)
	}
	if cfg.CartMinQuantity < 1 || cfg.CartMaxQuantity < cfg.CartMinQuantity {
		return nil, fmt.Errorf("invalid cart quantity bounds: min %d, max %d", cfg.CartMinQuantity, cfg.CartMaxQuantity)
	}
	if cfg.NotificationSweep <= 0 {
		return nil, fmt.Errorf("notification sweep interval must be positive, got %s", cfg.NotificationSweep)
	}

	return cfg, nil
}
