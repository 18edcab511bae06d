// Package handler provides typed HTTP handlers for the billing API.
//
// A HandlerFunc receives a Context and a request struct populated by binders
// (see package binder) and returns a Response. Wrap turns it into an
// http.HandlerFunc:
//
//	r.Post("/owners/{owner}/charges", handler.Wrap(charge,
//	    handler.WithBinders[handler.Context, ChargeRequest](binder.Path(chi.URLParam), binder.Header(), binder.JSON()),
//	    handler.WithErrorHandler[handler.Context, ChargeRequest](errHandler),
//	))
//
// Responses use a single JSON envelope with data, meta and error keys. Errors
// are resolved in this order: ValidationError (422), HTTPError (its own code
// and optional Retry-After), then the ErrorClassifier chain given to
// NewErrorHandler, then 500.
package handler
