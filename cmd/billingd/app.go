package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/billable/modules/billingapi"
	"github.com/dmitrymomot/billable/pkg/billing"
	"github.com/dmitrymomot/billable/pkg/billing/mongostore"
	"github.com/dmitrymomot/billable/pkg/billing/pgstore"
	"github.com/dmitrymomot/billable/pkg/email"
	"github.com/dmitrymomot/billable/pkg/httpserver"
	"github.com/dmitrymomot/billable/pkg/logger"
	"github.com/dmitrymomot/billable/pkg/metrics"
	"github.com/dmitrymomot/billable/pkg/mongo"
	"github.com/dmitrymomot/billable/pkg/pg"
	"github.com/dmitrymomot/billable/pkg/redis"
)

// recordStore is what every store driver provides.
type recordStore interface {
	billing.Store
	billing.OwnerStore
}

// app is the wired service graph behind billingd serve.
type app struct {
	cfg      appConfig
	log      *slog.Logger
	svc      billing.Service
	store    recordStore
	webhooks billing.WebhookParser
	metrics  *metrics.Collector
	checks   []httpserver.Check
	cleanups []cleanup
}

type cleanup struct {
	name string
	fn   func(context.Context) error
}

// buildApp opens the processor, store, locker and notifier selected by cfg.
// On error every resource opened so far is released.
func buildApp(ctx context.Context, cfg appConfig, envFiles []string, log *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.New(cfg.MetricsNamespace)}
	defer func() {
		if err != nil {
			_ = a.close(context.WithoutCancel(ctx))
		}
	}()

	var catalog *billing.Catalog
	if cfg.Billing.CatalogPath != "" {
		if catalog, err = billing.LoadCatalogFile(cfg.Billing.CatalogPath); err != nil {
			return nil, err
		}
	}

	registry := billing.NewRegistry()
	processor, err := registry.OpenProcessor(cfg.Billing)
	if err != nil {
		return nil, err
	}
	if mp, ok := processor.(*billing.MemoryProcessor); ok {
		for _, p := range catalog.Plans() {
			mp.AddPlan(p.PriceID, p.Name)
		}
	}
	if a.webhooks, err = registry.OpenWebhookParser(cfg.Billing); err != nil {
		return nil, err
	}

	if err := a.openStore(ctx, envFiles); err != nil {
		return nil, err
	}

	opts := []billing.ServiceOption{
		billing.WithLogger(log),
		billing.WithCatalog(catalog),
		billing.WithCurrency(cfg.Billing.Currency),
		billing.WithRetryPolicy(cfg.Billing.RetryPolicy()),
		billing.WithLockTimeout(cfg.Billing.LockTimeout),
		billing.WithObserver(a.metrics),
	}
	locker, err := a.openLocker(ctx, envFiles)
	if err != nil {
		return nil, err
	}
	if locker != nil {
		opts = append(opts, billing.WithLocker(locker))
	}

	sender, err := email.NewSender(cfg.Email)
	if err != nil {
		return nil, err
	}
	if sender != nil {
		opts = append(opts, billing.WithNotifier(email.NewNotifier(sender, cfg.Email)))
	} else {
		log.WarnContext(ctx, "email delivery disabled, billing notices are dropped")
	}

	a.svc = billing.NewService(processor, a.store, a.store, opts...)
	log.InfoContext(ctx, "billing service ready",
		slog.String("processor", string(cfg.Billing.Driver)),
		slog.String("store", string(cfg.Store)),
		slog.String("locker", string(cfg.Locker)),
		slog.String("webhooks", string(cfg.Billing.WebhookSource)),
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context, envFiles []string) error {
	switch a.cfg.Store {
	case storePostgres:
		pgCfg, err := loadSection[pg.Config](envFiles)
		if err != nil {
			return err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		a.addCleanup("postgres", func(context.Context) error { pool.Close(); return nil })
		a.checks = append(a.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})
		a.store = pgstore.New(pool)
	case storeMongo:
		mongoCfg, err := loadSection[mongo.Config](envFiles)
		if err != nil {
			return err
		}
		client, err := mongo.New(ctx, mongoCfg)
		if err != nil {
			return err
		}
		a.addCleanup("mongo", client.Disconnect)
		a.checks = append(a.checks, httpserver.Check{Name: "mongo", Fn: mongo.Healthcheck(client)})
		store := mongostore.New(client.Database(mongoCfg.Database))
		if err := store.EnsureIndexes(ctx); err != nil {
			return err
		}
		a.store = store
	default:
		a.store = billing.NewMemoryStore()
	}
	return nil
}

// openLocker returns nil for the in-process locker the service defaults to.
func (a *app) openLocker(ctx context.Context, envFiles []string) (billing.Locker, error) {
	if a.cfg.Locker != lockerRedis {
		return nil, nil
	}
	redisCfg, err := loadSection[redis.Config](envFiles)
	if err != nil {
		return nil, err
	}
	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return nil, err
	}
	a.addCleanup("redis", func(context.Context) error { return client.Close() })
	a.checks = append(a.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	return redis.NewLockerFromConfig(client, redisCfg), nil
}

func (a *app) addCleanup(name string, fn func(context.Context) error) {
	a.cleanups = append(a.cleanups, cleanup{name: name, fn: fn})
}

// close releases resources in reverse order of opening.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for _, c := range slices.Backward(a.cleanups) {
		if err := c.fn(ctx); err != nil {
			a.log.ErrorContext(ctx, "failed to close resource", logger.Component(c.name), logger.Error(err))
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}

// serverOptions hands the resource cleanups to the HTTP server's shutdown.
func (a *app) serverOptions() []httpserver.Option {
	opts := make([]httpserver.Option, 0, len(a.cleanups)+1)
	opts = append(opts, httpserver.WithLogger(a.log))
	for _, c := range a.cleanups {
		opts = append(opts, httpserver.WithCleanup(c.name, c.fn))
	}
	return opts
}

// router mounts probes, metrics and the billing API.
func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, a.metrics.Middleware)

	if p := a.cfg.HTTP.HealthPath; p != "" {
		r.Get(p, httpserver.LivenessHandler())
	}
	if p := a.cfg.HTTP.ReadyPath; p != "" {
		r.Get(p, httpserver.ReadinessHandler(a.log, a.cfg.HTTP.ReadHeaderTimeout, a.checks...))
	}
	if p := a.cfg.HTTP.MetricsPath; p != "" {
		r.Method(http.MethodGet, p, a.metrics.Handler())
	}

	opts := []billingapi.Option{billingapi.WithLogger(a.log)}
	if a.webhooks != nil {
		opts = append(opts, billingapi.WithWebhookParser(a.webhooks))
	}
	r.Mount("/", billingapi.New(a.svc, a.store, opts...).Handle())
	return r
}
