package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/spf13/viper"
)

type Configuration struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Logging   logger.Config   `mapstructure:"logging" validate:"required"`
	Billing   BillingConfig   `mapstructure:"billing" validate:"required"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

// BillingConfig drives the subscription lifecycle engine
type BillingConfig struct {
	// GracePeriodDays is how long a past_due subscription remains
	// functional before non-payment cancellation
	GracePeriodDays int `mapstructure:"grace_period_days" validate:"gte=0"`
	// RetryIntervals is the ordered days-between-retries schedule
	RetryIntervals []int `mapstructure:"retry_intervals"`
	// TrialConversionDays is the notice window before trial end in which
	// conversion is attempted; 0 converts only at trial end
	TrialConversionDays int `mapstructure:"trial_conversion_days" validate:"gte=0"`
	// DefaultCurrency is used when a price lacks an explicit currency
	DefaultCurrency string `mapstructure:"default_currency"`
	// Livemode tags all created records as live or test billing
	Livemode bool `mapstructure:"livemode"`
	// WorkerPoolSize bounds lifecycle phase parallelism
	WorkerPoolSize int `mapstructure:"worker_pool_size"`
}

type WebhookConfig struct {
	// TimestampToleranceSeconds is the replay-protection window
	TimestampToleranceSeconds int `mapstructure:"timestamp_tolerance_seconds"`
	// Secrets maps provider name to its HMAC signing secret. An empty
	// secret disables verification (development only).
	Secrets map[string]string `mapstructure:"secrets"`
	// MaxDeliveryAttempts before an event is dead-lettered
	MaxDeliveryAttempts int `mapstructure:"max_delivery_attempts"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ProvidersConfig struct {
	Stripe      StripeConfig      `mapstructure:"stripe"`
	MercadoPago MercadoPagoConfig `mapstructure:"mercadopago"`
}

type StripeConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type MercadoPagoConfig struct {
	AccessToken   string `mapstructure:"access_token"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	BaseURL       string `mapstructure:"base_url"`
}

type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/qzpay")

	v.SetEnvPrefix("QZPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// config file is optional; env vars and defaults are enough to boot
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, ierr.Wrap(err, ierr.ErrCodeValidation, "failed to read configuration")
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ierr.Wrap(err, ierr.ErrCodeValidation, "failed to unmarshal configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("billing.grace_period_days", 7)
	v.SetDefault("billing.retry_intervals", []int{1, 3, 5})
	v.SetDefault("billing.trial_conversion_days", 0)
	v.SetDefault("billing.default_currency", "usd")
	v.SetDefault("billing.livemode", false)
	v.SetDefault("billing.worker_pool_size", 8)
	v.SetDefault("webhook.timestamp_tolerance_seconds", 300)
	v.SetDefault("webhook.max_delivery_attempts", 5)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
}

func (c *Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return ierr.Wrap(err, ierr.ErrCodeValidation, "invalid configuration")
	}
	// live billing must not run with verification disabled
	if c.Billing.Livemode {
		for provider, secret := range c.Webhook.Secrets {
			if secret == "" {
				return ierr.NewError("webhook secret required in livemode").
					WithHintf("Configure a webhook secret for provider %s", provider).
					Mark(ierr.ErrValidation)
			}
		}
	}
	return nil
}

// ToleranceSeconds returns the webhook timestamp tolerance, defaulted
func (w WebhookConfig) ToleranceSeconds() int {
	if w.TimestampToleranceSeconds <= 0 {
		return 300
	}
	return w.TimestampToleranceSeconds
}
