package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billable/pkg/config"
)

type billingSettings struct {
	Driver      string        `env:"BILLING_DRIVER" envDefault:"memory"`
	Currency    string        `env:"BILLING_CURRENCY" envDefault:"usd"`
	LockTimeout time.Duration `env:"BILLING_LOCK_TIMEOUT" envDefault:"10s"`
	Plans       []string      `env:"BILLING_PLANS" envSeparator:","`
}

type appSettings struct {
	Name    string `env:"APP_NAME,required"`
	Billing billingSettings
}

func writeEnv(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("defaults and nested structs", func(t *testing.T) {
		t.Parallel()
		var cfg appSettings
		err := config.Load(&cfg, config.WithEnvironment(map[string]string{"APP_NAME": "billingd"}))
		require.NoError(t, err)
		assert.Equal(t, "billingd", cfg.Name)
		assert.Equal(t, "memory", cfg.Billing.Driver)
		assert.Equal(t, "usd", cfg.Billing.Currency)
		assert.Equal(t, 10*time.Second, cfg.Billing.LockTimeout)
	})

	t.Run("env files are layered under the environment", func(t *testing.T) {
		t.Parallel()
		base := writeEnv(t, ".env", "APP_NAME=from-file\nBILLING_DRIVER=stripe\nBILLING_PLANS=pro,team\n")
		local := writeEnv(t, ".env.local", "BILLING_CURRENCY=\"eur\"\n")

		var cfg appSettings
		err := config.Load(&cfg,
			config.WithEnvFiles(base, local),
			config.WithEnvironment(map[string]string{"BILLING_DRIVER": "memory"}),
		)
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Name)
		assert.Equal(t, "memory", cfg.Billing.Driver)
		assert.Equal(t, "eur", cfg.Billing.Currency)
		assert.Equal(t, []string{"pro", "team"}, cfg.Billing.Plans)
	})

	t.Run("prefix", func(t *testing.T) {
		t.Parallel()
		var cfg billingSettings
		err := config.Load(&cfg,
			config.WithPrefix("ACME_"),
			config.WithEnvironment(map[string]string{"ACME_BILLING_CURRENCY": "gbp", "BILLING_CURRENCY": "jpy"}),
		)
		require.NoError(t, err)
		assert.Equal(t, "gbp", cfg.Currency)
	})

	t.Run("missing required variable", func(t *testing.T) {
		t.Parallel()
		var cfg appSettings
		err := config.Load(&cfg, config.WithEnvironment(map[string]string{}))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("malformed value", func(t *testing.T) {
		t.Parallel()
		var cfg billingSettings
		err := config.Load(&cfg, config.WithEnvironment(map[string]string{"BILLING_LOCK_TIMEOUT": "soon"}))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("missing env file", func(t *testing.T) {
		t.Parallel()
		var cfg billingSettings
		err := config.Load(&cfg, config.WithEnvFiles(filepath.Join(t.TempDir(), "absent.env")))
		assert.ErrorIs(t, err, config.ErrReadingEnvFile)
	})

	t.Run("nil pointer", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, config.Load[billingSettings](nil), config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		var cfg appSettings
		config.MustLoad(&cfg, config.WithEnvironment(map[string]string{}))
	})
	assert.NotPanics(t, func() {
		var cfg appSettings
		config.MustLoad(&cfg, config.WithEnvironment(map[string]string{"APP_NAME": "billingd"}))
	})
}
