// Package config loads typed configuration from the environment.
//
// Structs declare their variables with caarlos0/env tags. Load merges values
// from .env files (read with godotenv) under the real process environment and
// parses the result, so a deployment can ship a .env with defaults and
// override any key with an exported variable:
//
//	type Config struct {
//		Billing billing.Config
//		HTTP    httpserver.Config
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg, config.WithEnvFiles(".env", ".env.local"))
//
// Without WithEnvFiles, ./.env is read when it exists. WithEnvironment swaps
// the process environment for a fixed map, which keeps tests independent of
// the host.
package config
