// Package config defines the process-wide configuration for the signup
// service. Configuration is loaded once at startup and is immutable
// thereafter, following 12-Factor principles: values come from the OS
// environment, optionally seeded from a .env file next to the process.
//
// Any missing required value causes startup to fail with a non-zero exit.
package config

import (
	"time"

	"subsignup/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used for credentials to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server  ServerConfig
	Billing BillingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port      string `envconfig:"PORT" default:"4242"`
	StaticDir string `envconfig:"STATIC_DIR" validate:"required"`

	// Per-call timeout applied to outbound Stripe requests.
	StripeTimeout time.Duration `envconfig:"STRIPE_TIMEOUT" default:"30s"`
}

// BillingConfig holds the Stripe credentials and the pre-configured plan.
type BillingConfig struct {
	StripeSecretKey      SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripePublishableKey string       `envconfig:"STRIPE_PUBLISHABLE_KEY" validate:"required"`
	StripeWebhookSecret  SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	PlanID               string       `envconfig:"SUBSCRIPTION_PLAN_ID" validate:"required"`
}
