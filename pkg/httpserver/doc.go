// Package httpserver runs the billing HTTP surface with graceful shutdown.
//
// Run blocks until the context is canceled or the process receives SIGINT or
// SIGTERM, then drains in-flight requests within the shutdown timeout and
// runs the cleanup hooks registered with WithCleanup in reverse order:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithCleanup("postgres", func(context.Context) error { pool.Close(); return nil }),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// LivenessHandler and ReadinessHandler back the /health and /ready probes.
// Readiness runs named checks such as pg.Healthcheck or redis.Healthcheck and
// answers 503 when any of them fails.
package httpserver
