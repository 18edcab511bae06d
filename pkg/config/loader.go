package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when present and no explicit files are given.
const DefaultEnvFile = ".env"

type options struct {
	files   []string
	environ map[string]string
	prefix  string
}

type Option func(*options)

// WithEnvFiles reads the given .env files in order. Later files override
// earlier ones; every file must exist.
func WithEnvFiles(paths ...string) Option {
	return func(o *options) { o.files = append(o.files, paths...) }
}

// WithEnvironment replaces the process environment as the variable source.
func WithEnvironment(environ map[string]string) Option {
	return func(o *options) { o.environ = environ }
}

// WithPrefix requires every variable name to start with prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// Load fills v from .env files and the environment. Real environment
// variables take precedence over values read from files, and files never
// modify the process environment.
//
//	var cfg struct {
//		Billing billing.Config
//		HTTP    httpserver.Config
//	}
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	vars, err := readFiles(o.files)
	if err != nil {
		return err
	}
	environ := o.environ
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}
	for k, val := range environ {
		vars[k] = val
	}

	if err := env.ParseWithOptions(v, env.Options{Environment: vars, Prefix: o.prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad is Load that panics on error. Use it in main for required settings.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func readFiles(files []string) (map[string]string, error) {
	vars := make(map[string]string)
	if len(files) == 0 {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return vars, nil
		}
		files = []string{DefaultEnvFile}
	}
	for _, path := range files {
		read, err := godotenv.Read(path)
		if err != nil {
			return nil, errors.Join(ErrReadingEnvFile, fmt.Errorf("%s: %w", path, err))
		}
		for k, val := range read {
			vars[k] = strings.TrimSpace(val)
		}
	}
	return vars, nil
}
