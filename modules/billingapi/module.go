package billingapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/billable/handler"
	"github.com/dmitrymomot/billable/pkg/billing"
	"github.com/dmitrymomot/billable/pkg/binder"
	"github.com/dmitrymomot/billable/pkg/logger"
)

// Module is the HTTP surface of the billing service.
type Module struct {
	svc      billing.Service
	owners   billing.OwnerFinder
	webhooks billing.WebhookParser
	log      *slog.Logger
	errs     handler.ErrorHandler[handler.Context]
}

type Option func(*Module)

// WithWebhookParser enables POST /webhooks.
func WithWebhookParser(p billing.WebhookParser) Option {
	return func(m *Module) { m.webhooks = p }
}

func WithLogger(log *slog.Logger) Option {
	return func(m *Module) {
		if log != nil {
			m.log = log
		}
	}
}

// New creates the module. It panics if svc or owners is nil.
func New(svc billing.Service, owners billing.OwnerFinder, opts ...Option) *Module {
	if svc == nil {
		panic("billingapi: service is required")
	}
	if owners == nil {
		panic("billingapi: owner finder is required")
	}
	m := &Module{svc: svc, owners: owners, log: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("billing_api"))
	m.errs = handler.NewErrorHandler(m.log, ClassifyError)
	return m
}

// Handle returns the router:
//
//	GET    /owners/{owner}/subscription
//	POST   /owners/{owner}/subscription          subscribe
//	PUT    /owners/{owner}/subscription          swap
//	DELETE /owners/{owner}/subscription[?now=1]  cancel
//	POST   /owners/{owner}/subscription/resume
//	POST   /owners/{owner}/customer
//	PUT    /owners/{owner}/card
//	POST   /owners/{owner}/charges
//	POST   /webhooks
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Route("/owners/{owner}", func(r chi.Router) {
		r.Get("/subscription", wrap(m, m.status))
		r.Post("/subscription", wrap(m, m.subscribe))
		r.Put("/subscription", wrap(m, m.swap))
		r.Delete("/subscription", wrap(m, m.cancel))
		r.Post("/subscription/resume", wrap(m, m.resume))
		r.Post("/customer", wrap(m, m.createCustomer))
		r.Put("/card", wrap(m, m.card))
		r.Post("/charges", wrap(m, m.charge))
	})
	if m.webhooks != nil {
		r.Post("/webhooks", m.webhook)
	}
	return r
}

func wrap[R any](m *Module, h handler.HandlerFunc[handler.Context, R]) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](
			binder.Path(chi.URLParam),
			binder.Query(),
			binder.Header(),
			binder.JSON(),
		),
		handler.WithErrorHandler[handler.Context, R](m.errs),
	)
}

// fail defers err to the module's error handler at render time.
func (m *Module) fail(_ handler.Context, err error) handler.Response {
	return errorResponse{err: err, handle: m.errs}
}

type errorResponse struct {
	err    error
	handle handler.ErrorHandler[handler.Context]
}

func (e errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	e.handle(handler.NewContext(w, r), e.err)
	return nil
}

// owner loads the stored owner, or starts a new one when the id is unknown.
func (m *Module) owner(ctx handler.Context, id string) (*billing.Owner, error) {
	o, err := m.owners.FindOwner(ctx, id)
	if errors.Is(err, billing.ErrOwnerNotFound) {
		return &billing.Owner{ID: id}, nil
	}
	if err != nil {
		return nil, errors.Join(billing.ErrFailedToLookupOwner, err)
	}
	return o, nil
}

func (m *Module) result(ctx handler.Context, ownerID string, ok bool) handler.Response {
	st, err := m.svc.Status(ctx, ownerID)
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(resultResponse{OK: ok, Status: &st})
}
