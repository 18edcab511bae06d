package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/billable/pkg/billing"
	"github.com/dmitrymomot/billable/pkg/config"
	"github.com/dmitrymomot/billable/pkg/email"
	"github.com/dmitrymomot/billable/pkg/httpserver"
	"github.com/dmitrymomot/billable/pkg/logger"
)

// storeDriver selects where subscription records and owners live.
type storeDriver string

const (
	storeMemory   storeDriver = "memory"
	storePostgres storeDriver = "postgres"
	storeMongo    storeDriver = "mongo"
)

// lockerDriver selects the per-owner lock implementation.
type lockerDriver string

const (
	lockerMemory lockerDriver = "memory"
	lockerRedis  lockerDriver = "redis"
)

var (
	errUnknownStore  = errors.New("unknown billing store")
	errUnknownLocker = errors.New("unknown billing locker")
)

type appConfig struct {
	Env              string       `env:"APP_ENV" envDefault:"development"`
	Name             string       `env:"APP_NAME" envDefault:"billingd"`
	LogLevel         string       `env:"LOG_LEVEL"`
	Store            storeDriver  `env:"BILLING_STORE" envDefault:"memory"`
	Locker           lockerDriver `env:"BILLING_LOCKER" envDefault:"memory"`
	MetricsNamespace string       `env:"METRICS_NAMESPACE" envDefault:"billable"`

	Billing billing.Config
	HTTP    httpserver.Config
	Email   email.Config
}

func (c appConfig) validate() error {
	switch c.Store {
	case storeMemory, storePostgres, storeMongo:
	default:
		return fmt.Errorf("%w: %q", errUnknownStore, c.Store)
	}
	switch c.Locker {
	case lockerMemory, lockerRedis:
	default:
		return fmt.Errorf("%w: %q", errUnknownLocker, c.Locker)
	}
	return nil
}

func loadAppConfig(envFiles []string) (appConfig, error) {
	var cfg appConfig
	if err := config.Load(&cfg, envOptions(envFiles)...); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

// loadSection parses a driver-specific config, such as pg.Config, that is
// only required when its driver is selected.
func loadSection[T any](envFiles []string) (T, error) {
	var v T
	err := config.Load(&v, envOptions(envFiles)...)
	return v, err
}

func envOptions(envFiles []string) []config.Option {
	if len(envFiles) == 0 {
		return nil
	}
	return []config.Option{config.WithEnvFiles(envFiles...)}
}

func newLogger(cfg appConfig) *slog.Logger {
	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithOutput(os.Stderr),
		logger.WithContextValue("request_id", middleware.RequestIDKey),
	)
	logger.SetAsDefault(log)
	return log
}
