package billing

import "time"

// Config holds processor and coordinator settings loaded from the environment.
type Config struct {
	Driver        Driver        `env:"BILLING_DRIVER" envDefault:"memory"`
	WebhookSource WebhookSource `env:"BILLING_WEBHOOK_SOURCE"`
	Currency      string        `env:"BILLING_CURRENCY" envDefault:"usd"`
	CatalogPath   string        `env:"BILLING_CATALOG_PATH"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	PaddleWebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`

	RetryMaxRetries uint64        `env:"BILLING_RETRY_MAX_RETRIES" envDefault:"2"`
	RetryBaseDelay  time.Duration `env:"BILLING_RETRY_BASE_DELAY" envDefault:"200ms"`
	RetryMaxDelay   time.Duration `env:"BILLING_RETRY_MAX_DELAY" envDefault:"2s"`
	LockTimeout     time.Duration `env:"BILLING_LOCK_TIMEOUT" envDefault:"10s"`
}

// RetryPolicy returns the configured retry policy.
func (c Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: c.RetryMaxRetries,
		BaseDelay:  c.RetryBaseDelay,
		MaxDelay:   c.RetryMaxDelay,
	}
}
